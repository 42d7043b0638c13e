package adc

import (
	"fmt"
)

// Unit selects one of the two SAR ADCs of the ESP32.
type Unit int

const (
	Unit1 Unit = 1
	Unit2 Unit = 2
)

func (u Unit) String() string {
	return fmt.Sprintf("ADC%d", int(u))
}

// Valid reports whether u names an existing ADC.
func (u Unit) Valid() bool {
	return u == Unit1 || u == Unit2
}

// Width is the capture width of a conversion. The values follow the
// ESP-IDF adc_bits_width_t enum, so 12 - Bits() is the shift needed to
// scale a reading to 12 bits.
type Width int

const (
	Width9Bit Width = iota
	Width10Bit
	Width11Bit
	Width12Bit
)

// Bits returns the number of bits a reading of this width carries.
func (w Width) Bits() int {
	return int(w) + 9
}

// MaxRaw returns the largest raw reading of this width.
func (w Width) MaxRaw() int {
	return 1<<w.Bits() - 1
}

func (w Width) Valid() bool {
	return w >= Width9Bit && w <= Width12Bit
}

func (w Width) String() string {
	return fmt.Sprintf("%d-bit", w.Bits())
}

// WidthFromBits converts a bit count (9..12) to a Width.
func WidthFromBits(bits int) (Width, error) {
	w := Width(bits - 9)
	if !w.Valid() {
		return 0, fmt.Errorf("%w: unsupported width of %d bits", ErrInvalidArg, bits)
	}
	return w, nil
}

// Atten is the input attenuation of a channel. Higher attenuation
// widens the measurable range at the cost of accuracy.
type Atten int

const (
	Atten0dB Atten = iota
	Atten2_5dB
	Atten6dB
	Atten11dB
)

var attenNames = [...]string{"0dB", "2.5dB", "6dB", "11dB"}

func (a Atten) Valid() bool {
	return a >= Atten0dB && a <= Atten11dB
}

func (a Atten) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Atten(%d)", int(a))
	}
	return attenNames[a]
}

// Channel is an ADC input channel number within a unit.
type Channel int

var (
	adc1GPIOs = [...]int{36, 37, 38, 39, 32, 33, 34, 35}
	adc2GPIOs = [...]int{4, 0, 2, 15, 13, 12, 14, 27, 25, 26}
)

// GPIO returns the pad a channel of the given unit is wired to.
func (c Channel) GPIO(u Unit) (int, error) {
	var pads []int
	switch u {
	case Unit1:
		pads = adc1GPIOs[:]
	case Unit2:
		pads = adc2GPIOs[:]
	default:
		return 0, fmt.Errorf("%w: unknown unit %d", ErrInvalidArg, int(u))
	}
	if c < 0 || int(c) >= len(pads) {
		return 0, fmt.Errorf("%w: %s has no channel %d", ErrInvalidArg, u, int(c))
	}
	return pads[c], nil
}

// VrefGPIOs are the only pads the ADC2 reference can be routed to.
var VrefGPIOs = []int{25, 26, 27}

// IsVrefGPIO reports whether gpio can carry the ADC2 reference output.
func IsVrefGPIO(gpio int) bool {
	for _, g := range VrefGPIOs {
		if g == gpio {
			return true
		}
	}
	return false
}

// Driver is the ADC peripheral as the battery reader consumes it.
// Implementations are not required to be safe for concurrent use; the
// ADC is an exclusive resource and callers serialise access.
type Driver interface {
	// ConfigWidth sets the capture width of a unit.
	ConfigWidth(u Unit, w Width) error
	// ConfigChannelAtten sets the attenuation of a channel.
	ConfigChannelAtten(u Unit, ch Channel, a Atten) error
	// GetRaw takes a single conversion. The result is bounded by the
	// configured width.
	GetRaw(u Unit, ch Channel) (int, error)
	// VrefToGPIO drives the internal ADC2 reference onto a pad.
	// Wi-Fi and Bluetooth must be disabled while it is in use.
	VrefToGPIO(gpio int) error
}
