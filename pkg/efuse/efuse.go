// Package efuse decodes the ADC calibration values Espressif burns into
// the ESP32 eFuse blocks during factory test.
//
// Two independent records may be present:
//
//   - BLOCK0 word 4, bits 8..12: the measured ADC reference voltage as a
//     sign-magnitude offset from 1100 mV in steps of 7 mV.
//   - BLOCK3 word 3: two-point readings taken at 150 mV and 850 mV for
//     each ADC, as two's-complement offsets in steps of 4 counts.
//     BLOCK0 word 3 bit 14 marks the record as burnt. The record is only
//     used when all four fields are non-zero as well.
package efuse

import (
	"fmt"

	"github.com/charlie0129/vbat/pkg/adc"
)

const (
	Block0Words = 7
	Block3Words = 8

	vrefWord   = 4
	vrefShift  = 8
	vrefMask   = 0x1F
	vrefStep   = 7
	vrefOffset = 1100

	tpFlagWord = 3
	tpFlagBit  = 14
	tpWord     = 3
	tpLowMask  = 0x7F
	tpHighMask = 0x1FF
	tpStep     = 4

	adc1TPLowShift  = 0
	adc1TPHighShift = 7
	adc2TPLowShift  = 16
	adc2TPHighShift = 23

	adc1TPLowOffset  = 278
	adc1TPHighOffset = 3265
	adc2TPLowOffset  = 421
	adc2TPHighOffset = 3406
)

// Fuses is a snapshot of the eFuse words the ADC calibration looks at.
// eFuses are one-time programmable, so a snapshot taken once stays
// valid for the lifetime of the process.
type Fuses struct {
	Block0 [Block0Words]uint32 `json:"block0"`
	Block3 [Block3Words]uint32 `json:"block3"`
}

func (f Fuses) vrefBits() uint32 {
	return (f.Block0[vrefWord] >> vrefShift) & vrefMask
}

// HasVref reports whether BLOCK0 carries a reference voltage.
func (f Fuses) HasVref() bool {
	return f.vrefBits() != 0
}

// HasTwoPoint reports whether BLOCK3 carries a usable two-point record:
// the flag is set and none of the four fields is zero.
func (f Fuses) HasTwoPoint() bool {
	if (f.Block0[tpFlagWord]>>tpFlagBit)&1 == 0 {
		return false
	}
	w := f.Block3[tpWord]
	return (w>>adc1TPLowShift)&tpLowMask != 0 &&
		(w>>adc1TPHighShift)&tpHighMask != 0 &&
		(w>>adc2TPLowShift)&tpLowMask != 0 &&
		(w>>adc2TPHighShift)&tpHighMask != 0
}

// Vref returns the reference voltage in mV stored in BLOCK0. The result
// is meaningless unless HasVref is true.
func (f Fuses) Vref() uint32 {
	return uint32(decodeBits(f.vrefBits(), vrefMask, false)*vrefStep + vrefOffset)
}

// TwoPoint returns the raw 12-bit readings at 150 mV (low) and 850 mV
// (high) for the given unit. The result is meaningless unless
// HasTwoPoint is true.
func (f Fuses) TwoPoint(u adc.Unit) (low, high uint32) {
	w := f.Block3[tpWord]
	if u == adc.Unit2 {
		lowBits := (w >> adc2TPLowShift) & tpLowMask
		highBits := (w >> adc2TPHighShift) & tpHighMask
		return uint32(adc2TPLowOffset + decodeBits(lowBits, tpLowMask, true)*tpStep),
			uint32(adc2TPHighOffset + decodeBits(highBits, tpHighMask, true)*tpStep)
	}
	lowBits := (w >> adc1TPLowShift) & tpLowMask
	highBits := (w >> adc1TPHighShift) & tpHighMask
	return uint32(adc1TPLowOffset + decodeBits(lowBits, tpLowMask, true)*tpStep),
		uint32(adc1TPHighOffset + decodeBits(highBits, tpHighMask, true)*tpStep)
}

// Words returns the raw words inspected by the calibration, keyed the
// way they are reported in diagnostics.
func (f Fuses) Words() map[string]uint32 {
	return map[string]uint32{
		"BLK0_RDATA3": f.Block0[tpFlagWord],
		"BLK0_RDATA4": f.Block0[vrefWord],
		"BLK3_RDATA3": f.Block3[tpWord],
	}
}

// decodeBits decodes a field whose most significant bit (per mask) is
// the sign. The magnitude of a two's-complement field is taken from the
// low bits only, so the most negative value decodes to zero, the same as
// on the chip.
func decodeBits(bits, mask uint32, twosCompl bool) int {
	magMask := mask >> 1
	if bits&(^magMask&mask) == 0 {
		return int(bits & magMask)
	}
	if twosCompl {
		return -int((^bits + 1) & magMask)
	}
	return -int(bits & magMask)
}

// WithVref returns a copy of f with a reference voltage burnt into
// BLOCK0. Used to emulate chips in tests and in the mock backend.
func (f Fuses) WithVref(mv int) (Fuses, error) {
	delta := mv - vrefOffset
	if delta%vrefStep != 0 {
		return f, fmt.Errorf("vref %d mV is not a multiple of %d mV away from %d mV", mv, vrefStep, vrefOffset)
	}
	steps := delta / vrefStep
	mag := steps
	if mag < 0 {
		mag = -mag
	}
	if mag > int(vrefMask>>1) {
		return f, fmt.Errorf("vref %d mV out of eFuse range", mv)
	}
	// A zero offset is burnt as negative zero so the field reads as present.
	bits := uint32(mag)
	if steps <= 0 {
		bits |= 0x10
	}
	f.Block0[vrefWord] = f.Block0[vrefWord]&^(vrefMask<<vrefShift) | bits<<vrefShift
	return f, nil
}

// WithTwoPoint returns a copy of f with two-point readings for the given
// unit burnt into BLOCK3 and the flag set in BLOCK0. HasTwoPoint stays
// false until both units carry readings that differ from the nominal
// values.
func (f Fuses) WithTwoPoint(u adc.Unit, low, high int) (Fuses, error) {
	lowOffset, highOffset := adc1TPLowOffset, adc1TPHighOffset
	lowShift, highShift := adc1TPLowShift, adc1TPHighShift
	if u == adc.Unit2 {
		lowOffset, highOffset = adc2TPLowOffset, adc2TPHighOffset
		lowShift, highShift = adc2TPLowShift, adc2TPHighShift
	}

	lowBits, err := encodeTwosCompl(low-lowOffset, tpLowMask)
	if err != nil {
		return f, fmt.Errorf("two-point low reading %d: %w", low, err)
	}
	highBits, err := encodeTwosCompl(high-highOffset, tpHighMask)
	if err != nil {
		return f, fmt.Errorf("two-point high reading %d: %w", high, err)
	}

	w := f.Block3[tpWord]
	w &^= tpLowMask<<lowShift | tpHighMask<<highShift
	w |= lowBits<<lowShift | highBits<<highShift
	f.Block3[tpWord] = w
	f.Block0[tpFlagWord] |= 1 << tpFlagBit
	return f, nil
}

// WithTwoPointRecord burns the readings of both ADCs, as the factory
// test does.
func (f Fuses) WithTwoPointRecord(adc1Low, adc1High, adc2Low, adc2High int) (Fuses, error) {
	f, err := f.WithTwoPoint(adc.Unit1, adc1Low, adc1High)
	if err != nil {
		return f, err
	}
	return f.WithTwoPoint(adc.Unit2, adc2Low, adc2High)
}

func encodeTwosCompl(delta int, mask uint32) (uint32, error) {
	if delta%tpStep != 0 {
		return 0, fmt.Errorf("offset %d is not a multiple of %d", delta, tpStep)
	}
	steps := delta / tpStep
	limit := int(mask >> 1)
	if steps > limit || steps < -limit {
		return 0, fmt.Errorf("offset %d out of eFuse range", delta)
	}
	return uint32(steps) & mask, nil
}
