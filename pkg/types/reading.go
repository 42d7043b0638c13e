package types

import (
	"time"

	"github.com/charlie0129/vbat/pkg/adccal"
)

// Reading is one battery voltage measurement.
// This struct is shared between the daemon and client packages.
type Reading struct {
	Time time.Time `json:"time"`
	// Raw is the (averaged) ADC count at the configured width.
	Raw     int `json:"raw"`
	Samples int `json:"samples"`
	// PinMillivolts is the calibrated voltage at the ADC pin.
	PinMillivolts uint32 `json:"pinMillivolts"`
	// Voltage is the battery voltage in volts, divider undone.
	Voltage float64       `json:"voltage"`
	Scheme  adccal.Scheme `json:"scheme"`
	// InRange is false when the pin voltage lies outside the range the
	// attenuation measures accurately.
	InRange bool `json:"inRange"`
}
