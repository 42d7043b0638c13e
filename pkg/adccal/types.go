package adccal

import (
	"errors"
	"fmt"

	"github.com/charlie0129/vbat/pkg/adc"
)

var (
	// ErrNotSupported is returned by CheckEfuse when the chip carries no
	// data for the scheme.
	ErrNotSupported = errors.New("calibration scheme not supported by eFuse")
)

// Scheme is the source of the calibration data.
type Scheme int

const (
	SchemeTwoPoint Scheme = iota
	SchemeEfuseVref
	SchemeDefaultVref
)

var schemeNames = map[Scheme]string{
	SchemeTwoPoint:    "TwoPoint",
	SchemeEfuseVref:   "EfuseVref",
	SchemeDefaultVref: "DefaultVref",
}

func (s Scheme) String() string {
	if n, ok := schemeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

// Description is the human-readable form used in diagnostics.
func (s Scheme) Description() string {
	switch s {
	case SchemeTwoPoint:
		return "Two Point values from eFuse BLOCK3"
	case SchemeEfuseVref:
		return "reference voltage from eFuse BLOCK0"
	case SchemeDefaultVref:
		return "default reference voltage supplied by configuration"
	}
	return s.String()
}

func (s Scheme) MarshalText() ([]byte, error) {
	if _, ok := schemeNames[s]; !ok {
		return nil, fmt.Errorf("unknown scheme %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Scheme) UnmarshalText(b []byte) error {
	for k, v := range schemeNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown scheme %q", string(b))
}

// Characteristics is the calibration profile of one unit at one
// attenuation and width.
type Characteristics struct {
	Scheme Scheme    `json:"scheme"`
	Unit   adc.Unit  `json:"unit"`
	Atten  adc.Atten `json:"atten"`
	Width  adc.Width `json:"width"`
	// Vref is the reference voltage in mV the curve was derived from.
	// Zero for SchemeTwoPoint.
	Vref uint32 `json:"vref"`
	// CoeffA is the slope in mV per 12-bit count, scaled by 65536.
	CoeffA uint32 `json:"coeffA"`
	// CoeffB is the offset in mV.
	CoeffB uint32 `json:"coeffB"`
}
