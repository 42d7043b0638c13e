package types

import (
	"github.com/charlie0129/vbat/pkg/adccal"
)

// Status summarises the daemon for `vbat status`.
type Status struct {
	Board string `json:"board"`
	// Reading is the latest reading of the sampling loop, nil before the
	// first successful one.
	Reading         *Reading               `json:"reading,omitempty"`
	LastError       string                 `json:"lastError,omitempty"`
	Characteristics adccal.Characteristics `json:"characteristics"`
	VrefGPIO        int                    `json:"vrefGPIO"`
	RadiosAllowed   bool                   `json:"radiosAllowed"`
	Samples         int                    `json:"samples"`
	SampleSchedule  string                 `json:"sampleSchedule"`
	NextSample      string                 `json:"nextSample,omitempty"`
	Recorded        int                    `json:"recorded"`
}
