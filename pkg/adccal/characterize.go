package adccal

import (
	"github.com/charlie0129/vbat/pkg/adc"
	"github.com/charlie0129/vbat/pkg/efuse"
)

const (
	coeffAScale = 65536
	coeffARound = coeffAScale / 2
	res12Bit    = 4096

	tpLowVoltage  = 150
	tpHighVoltage = 850
)

// Per-attenuation corrections, indexed by adc.Atten.
var (
	adc1TPAttenScale  = [4]uint32{65504, 86975, 120389, 224310}
	adc2TPAttenScale  = [4]uint32{65467, 86861, 120416, 224708}
	adc1TPAttenOffset = [4]uint32{0, 1, 27, 54}
	adc2TPAttenOffset = [4]uint32{0, 9, 26, 66}

	adc1VrefAttenScale  = [4]uint32{57431, 76236, 105481, 196602}
	adc2VrefAttenScale  = [4]uint32{57236, 76175, 105678, 197170}
	adc1VrefAttenOffset = [4]uint32{75, 78, 107, 142}
	adc2VrefAttenOffset = [4]uint32{63, 66, 89, 128}
)

// Select picks the best scheme the eFuses support and characterizes the
// curve for the given unit, attenuation and width. defaultVref (mV) is
// only used when neither eFuse record exists.
func Select(f efuse.Fuses, u adc.Unit, atten adc.Atten, width adc.Width, defaultVref uint32) Characteristics {
	c := Characteristics{
		Unit:  u,
		Atten: atten,
		Width: width,
	}

	switch {
	case f.HasTwoPoint():
		low, high := f.TwoPoint(u)
		c.Scheme = SchemeTwoPoint
		c.CoeffA, c.CoeffB = twoPoint(u, atten, high, low)
	case f.HasVref():
		c.Scheme = SchemeEfuseVref
		c.Vref = f.Vref()
		c.CoeffA, c.CoeffB = fromVref(u, atten, c.Vref)
	default:
		c.Scheme = SchemeDefaultVref
		c.Vref = defaultVref
		c.CoeffA, c.CoeffB = fromVref(u, atten, c.Vref)
	}

	return c
}

// twoPoint fits the line through the factory readings at 150 mV and
// 850 mV, then corrects it for attenuation.
func twoPoint(u adc.Unit, atten adc.Atten, high, low uint32) (a, b uint32) {
	scales, offsets := adc1TPAttenScale, adc1TPAttenOffset
	if u == adc.Unit2 {
		scales, offsets = adc2TPAttenScale, adc2TPAttenOffset
	}
	i := attenIndex(atten)

	deltaX := high - low
	deltaV := uint32(tpHighVoltage - tpLowVoltage)
	a = (deltaV*scales[i] + deltaX/2) / deltaX
	b = tpHighVoltage - (deltaV*high+deltaX/2)/deltaX + offsets[i]
	return a, b
}

func fromVref(u adc.Unit, atten adc.Atten, vref uint32) (a, b uint32) {
	scales, offsets := adc1VrefAttenScale, adc1VrefAttenOffset
	if u == adc.Unit2 {
		scales, offsets = adc2VrefAttenScale, adc2VrefAttenOffset
	}
	i := attenIndex(atten)

	return vref * scales[i] / res12Bit, offsets[i]
}

func attenIndex(a adc.Atten) int {
	if !a.Valid() {
		return int(adc.Atten11dB)
	}
	return int(a)
}

// RawToVoltage converts a raw reading of c.Width bits to millivolts at
// the ADC pin.
func (c Characteristics) RawToVoltage(raw int) uint32 {
	if raw < 0 {
		raw = 0
	}
	shift := uint(0)
	if c.Width.Valid() {
		shift = uint(adc.Width12Bit - c.Width)
	}
	r := uint32(raw) << shift
	if r > res12Bit-1 {
		r = res12Bit - 1
	}
	return (c.CoeffA*r+coeffARound)/coeffAScale + c.CoeffB
}

// CheckEfuse reports whether the chip carries data for scheme.
// SchemeDefaultVref has nothing to check and yields adc.ErrInvalidArg.
func CheckEfuse(f efuse.Fuses, scheme Scheme) error {
	switch scheme {
	case SchemeTwoPoint:
		if !f.HasTwoPoint() {
			return ErrNotSupported
		}
	case SchemeEfuseVref:
		if !f.HasVref() {
			return ErrNotSupported
		}
	default:
		return adc.ErrInvalidArg
	}
	return nil
}
