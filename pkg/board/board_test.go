package board

import (
	"errors"
	"testing"

	"github.com/charlie0129/vbat/pkg/adc"
)

func TestHuzzah32IsValid(t *testing.T) {
	if err := Huzzah32.Validate(); err != nil {
		t.Fatalf("Huzzah32.Validate() = %v", err)
	}
	b, err := Get("huzzah32")
	if err != nil {
		t.Fatalf("Get(huzzah32): %v", err)
	}
	if b.SenseGPIO != 35 || b.ScalingFactor != 2 || b.Atten != adc.Atten11dB {
		t.Errorf("unexpected preset: %+v", b)
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("feather-s3"); !errors.Is(err, adc.ErrInvalidArg) {
		t.Errorf("Get(feather-s3) error = %v, want ErrInvalidArg", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Board)
	}{
		{name: "zero scaling", mutate: func(b *Board) { b.ScalingFactor = 0 }},
		{name: "bad width", mutate: func(b *Board) { b.Width = 7 }},
		{name: "bad atten", mutate: func(b *Board) { b.Atten = -1 }},
		{name: "channel mismatch", mutate: func(b *Board) { b.SenseGPIO = 34 }},
		{name: "no default vref", mutate: func(b *Board) { b.DefaultVref = 0 }},
		{name: "empty range", mutate: func(b *Board) { b.MinPinMillivolts = b.MaxPinMillivolts }},
		{name: "vref pad", mutate: func(b *Board) { b.VrefGPIOs = []int{13} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Huzzah32
			b.VrefGPIOs = append([]int(nil), Huzzah32.VrefGPIOs...)
			tt.mutate(&b)
			if err := b.Validate(); !errors.Is(err, adc.ErrInvalidArg) {
				t.Errorf("Validate() = %v, want ErrInvalidArg", err)
			}
		})
	}
}

func TestCanRouteVref(t *testing.T) {
	if !Huzzah32.CanRouteVref(26) {
		t.Error("GPIO26 should carry the reference")
	}
	if Huzzah32.CanRouteVref(35) {
		t.Error("GPIO35 should not carry the reference")
	}
}

func TestInPinRange(t *testing.T) {
	for mv, want := range map[uint32]bool{100: false, 150: true, 1600: true, 2450: true, 2500: false} {
		if got := Huzzah32.InPinRange(mv); got != want {
			t.Errorf("InPinRange(%d) = %t, want %t", mv, got, want)
		}
	}
}
