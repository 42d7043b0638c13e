package board

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/vbat/pkg/adc"
)

// Board describes how a battery is wired to the ADC of a board.
type Board struct {
	Name string `json:"name"`

	Unit      adc.Unit    `json:"unit"`
	Channel   adc.Channel `json:"channel"`
	SenseGPIO int         `json:"senseGPIO"`
	Width     adc.Width   `json:"width"`
	Atten     adc.Atten   `json:"atten"`

	// ScalingFactor undoes the voltage divider in front of the pin.
	ScalingFactor float64 `json:"scalingFactor"`
	// DefaultVref is the reference voltage in mV used when the chip has
	// no eFuse calibration.
	DefaultVref uint32 `json:"defaultVref"`

	// The range in mV where the attenuation gives accurate results.
	MinPinMillivolts uint32 `json:"minPinMillivolts"`
	MaxPinMillivolts uint32 `json:"maxPinMillivolts"`

	// VrefGPIOs lists the pads the reference may be routed to.
	VrefGPIOs []int `json:"vrefGPIOs"`
}

// Huzzah32 is the Adafruit HUZZAH32 (ESP32 Feather). VBAT is halved by a
// 100k/100k divider and fed to GPIO35 (ADC1 channel 7), which is not
// broken out. 10-bit width gives the steadiest readings on this board.
var Huzzah32 = Board{
	Name:             "huzzah32",
	Unit:             adc.Unit1,
	Channel:          7,
	SenseGPIO:        35,
	Width:            adc.Width10Bit,
	Atten:            adc.Atten11dB,
	ScalingFactor:    2,
	DefaultVref:      1100,
	MinPinMillivolts: 150,
	MaxPinMillivolts: 2450,
	VrefGPIOs:        []int{25, 26, 27},
}

var known = map[string]Board{
	Huzzah32.Name: Huzzah32,
}

// Get returns a known board by name.
func Get(name string) (Board, error) {
	b, ok := known[name]
	if !ok {
		return Board{}, pkgerrors.Wrapf(adc.ErrInvalidArg, "unknown board %q", name)
	}
	return b, nil
}

// Validate checks that the description is usable for measurements.
func (b Board) Validate() error {
	if !b.Unit.Valid() {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "board %s: unknown unit %d", b.Name, int(b.Unit))
	}
	if !b.Width.Valid() {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "board %s: unknown width %d", b.Name, int(b.Width))
	}
	if !b.Atten.Valid() {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "board %s: unknown attenuation %d", b.Name, int(b.Atten))
	}
	gpio, err := b.Channel.GPIO(b.Unit)
	if err != nil {
		return pkgerrors.Wrapf(err, "board %s", b.Name)
	}
	if gpio != b.SenseGPIO {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "board %s: %s channel %d is GPIO%d, not GPIO%d",
			b.Name, b.Unit, int(b.Channel), gpio, b.SenseGPIO)
	}
	if b.ScalingFactor <= 0 {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "board %s: scaling factor must be positive, got %g", b.Name, b.ScalingFactor)
	}
	if b.DefaultVref == 0 {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "board %s: default reference voltage is zero", b.Name)
	}
	if b.MinPinMillivolts >= b.MaxPinMillivolts {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "board %s: empty pin range %d..%d mV", b.Name, b.MinPinMillivolts, b.MaxPinMillivolts)
	}
	for _, g := range b.VrefGPIOs {
		if !adc.IsVrefGPIO(g) {
			return pkgerrors.Wrapf(adc.ErrInvalidArg, "board %s: GPIO%d cannot carry the reference", b.Name, g)
		}
	}
	return nil
}

// CanRouteVref reports whether the reference may be routed to gpio on
// this board.
func (b Board) CanRouteVref(gpio int) bool {
	for _, g := range b.VrefGPIOs {
		if g == gpio {
			return true
		}
	}
	return false
}

// InPinRange reports whether mv lies in the accurate range of the
// attenuation.
func (b Board) InPinRange(mv uint32) bool {
	return mv >= b.MinPinMillivolts && mv <= b.MaxPinMillivolts
}
