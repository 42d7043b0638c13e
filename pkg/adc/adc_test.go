package adc

import (
	"errors"
	"testing"
)

func TestChannelGPIO(t *testing.T) {
	tests := []struct {
		name    string
		unit    Unit
		ch      Channel
		want    int
		wantErr bool
	}{
		{name: "battery sense", unit: Unit1, ch: 7, want: 35},
		{name: "adc1 first", unit: Unit1, ch: 0, want: 36},
		{name: "adc2 dac pad", unit: Unit2, ch: 9, want: 26},
		{name: "adc1 out of range", unit: Unit1, ch: 8, wantErr: true},
		{name: "negative channel", unit: Unit2, ch: -1, wantErr: true},
		{name: "unknown unit", unit: Unit(3), ch: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ch.GPIO(tt.unit)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArg) {
					t.Fatalf("GPIO() error = %v, want ErrInvalidArg", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GPIO() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GPIO() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWidth(t *testing.T) {
	w, err := WidthFromBits(10)
	if err != nil {
		t.Fatalf("WidthFromBits(10): %v", err)
	}
	if w != Width10Bit || w.MaxRaw() != 1023 {
		t.Errorf("got %v max %d, want 10-bit max 1023", w, w.MaxRaw())
	}
	if Width12Bit.MaxRaw() != 4095 {
		t.Errorf("12-bit max = %d", Width12Bit.MaxRaw())
	}
	if _, err := WidthFromBits(8); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("WidthFromBits(8) error = %v, want ErrInvalidArg", err)
	}
}

func TestIsVrefGPIO(t *testing.T) {
	for gpio := 0; gpio < 40; gpio++ {
		want := gpio == 25 || gpio == 26 || gpio == 27
		if got := IsVrefGPIO(gpio); got != want {
			t.Errorf("IsVrefGPIO(%d) = %t, want %t", gpio, got, want)
		}
	}
}
