package adccal

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/charlie0129/vbat/pkg/adc"
	"github.com/charlie0129/vbat/pkg/efuse"
)

func mustVref(t *testing.T, f efuse.Fuses, mv int) efuse.Fuses {
	t.Helper()
	f, err := f.WithVref(mv)
	if err != nil {
		t.Fatalf("WithVref(%d): %v", mv, err)
	}
	return f
}

// mustTwoPoint burns ADC1 readings plus a fixed ADC2 record.
func mustTwoPoint(t *testing.T, f efuse.Fuses, low, high int) efuse.Fuses {
	t.Helper()
	f, err := f.WithTwoPointRecord(low, high, 425, 3410)
	if err != nil {
		t.Fatalf("WithTwoPoint(%d, %d): %v", low, high, err)
	}
	return f
}

func TestSelectFallbackOrder(t *testing.T) {
	blank := efuse.Fuses{}
	vref := mustVref(t, blank, 1114)
	tp := mustTwoPoint(t, blank, 282, 3269)
	both := mustVref(t, tp, 1114)
	flagOnly := blank
	flagOnly.Block0[3] = 1 << 14
	flagOnlyVref := mustVref(t, flagOnly, 1114)
	adc1Only, err := blank.WithTwoPoint(adc.Unit1, 282, 3269)
	if err != nil {
		t.Fatal(err)
	}
	adc1OnlyVref := mustVref(t, adc1Only, 1114)

	tests := []struct {
		name       string
		fuses      efuse.Fuses
		wantScheme Scheme
		wantVref   uint32
	}{
		{name: "neither", fuses: blank, wantScheme: SchemeDefaultVref, wantVref: 1100},
		{name: "vref only", fuses: vref, wantScheme: SchemeEfuseVref, wantVref: 1114},
		{name: "two point only", fuses: tp, wantScheme: SchemeTwoPoint, wantVref: 0},
		{name: "both", fuses: both, wantScheme: SchemeTwoPoint, wantVref: 0},
		{name: "flag without readings", fuses: flagOnly, wantScheme: SchemeDefaultVref, wantVref: 1100},
		{name: "flag without readings and vref", fuses: flagOnlyVref, wantScheme: SchemeEfuseVref, wantVref: 1114},
		{name: "adc2 readings missing", fuses: adc1OnlyVref, wantScheme: SchemeEfuseVref, wantVref: 1114},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Select(tt.fuses, adc.Unit1, adc.Atten11dB, adc.Width10Bit, 1100)
			if c.Scheme != tt.wantScheme {
				t.Errorf("Scheme = %v, want %v", c.Scheme, tt.wantScheme)
			}
			if c.Vref != tt.wantVref {
				t.Errorf("Vref = %d, want %d", c.Vref, tt.wantVref)
			}
			again := Select(tt.fuses, adc.Unit1, adc.Atten11dB, adc.Width10Bit, 1100)
			if again != c {
				t.Errorf("selection is not deterministic: %+v != %+v", again, c)
			}
		})
	}
}

func TestDefaultVrefUsesConfiguredConstant(t *testing.T) {
	c := Select(efuse.Fuses{}, adc.Unit1, adc.Atten11dB, adc.Width12Bit, 1150)
	if c.Scheme != SchemeDefaultVref || c.Vref != 1150 {
		t.Fatalf("got %v/%d, want DefaultVref/1150", c.Scheme, c.Vref)
	}
}

func TestRawToVoltage(t *testing.T) {
	tests := []struct {
		name   string
		fuses  efuse.Fuses
		width  adc.Width
		raw    int
		coeffA uint32
		coeffB uint32
		want   uint32
	}{
		{
			name:   "default vref 12-bit",
			width:  adc.Width12Bit,
			raw:    1810,
			coeffA: 52798,
			coeffB: 142,
			want:   1600,
		},
		{
			name:   "default vref 10-bit is scaled to 12-bit",
			width:  adc.Width10Bit,
			raw:    400,
			coeffA: 52798,
			coeffB: 142,
			want:   1431,
		},
		{
			name:   "efuse vref",
			fuses:  mustVref(t, efuse.Fuses{}, 1114),
			width:  adc.Width12Bit,
			raw:    2000,
			coeffA: 53470,
			coeffB: 142,
			want:   1774,
		},
		{
			name:   "two point",
			fuses:  mustTwoPoint(t, efuse.Fuses{}, 282, 3269),
			width:  adc.Width12Bit,
			raw:    2000,
			coeffA: 52567,
			coeffB: 138,
			want:   1742,
		},
		{
			name:   "above 12-bit range is clamped",
			width:  adc.Width12Bit,
			raw:    5000,
			coeffA: 52798,
			coeffB: 142,
			want:   (52798*4095+32768)/65536 + 142,
		},
		{
			name:   "negative reading is treated as zero",
			width:  adc.Width12Bit,
			raw:    -3,
			coeffA: 52798,
			coeffB: 142,
			want:   142,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Select(tt.fuses, adc.Unit1, adc.Atten11dB, tt.width, 1100)
			if c.CoeffA != tt.coeffA || c.CoeffB != tt.coeffB {
				t.Fatalf("coefficients = %d/%d, want %d/%d", c.CoeffA, c.CoeffB, tt.coeffA, tt.coeffB)
			}
			if got := c.RawToVoltage(tt.raw); got != tt.want {
				t.Errorf("RawToVoltage(%d) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRawToVoltageMonotonic(t *testing.T) {
	for _, f := range []efuse.Fuses{
		{},
		mustVref(t, efuse.Fuses{}, 1086),
		mustTwoPoint(t, efuse.Fuses{}, 270, 3281),
	} {
		c := Select(f, adc.Unit1, adc.Atten11dB, adc.Width10Bit, 1100)
		prev := c.RawToVoltage(0)
		for raw := 1; raw <= adc.Width10Bit.MaxRaw(); raw++ {
			v := c.RawToVoltage(raw)
			if v < prev {
				t.Fatalf("%v: RawToVoltage(%d) = %d < RawToVoltage(%d) = %d", c.Scheme, raw, v, raw-1, prev)
			}
			// One 10-bit step is four 12-bit counts, under 4 mV at 11 dB.
			if v-prev > 4 {
				t.Fatalf("%v: jump of %d mV at raw %d", c.Scheme, v-prev, raw)
			}
			prev = v
		}
	}
}

func TestAttenuationTablesPerUnit(t *testing.T) {
	c1 := Select(efuse.Fuses{}, adc.Unit1, adc.Atten0dB, adc.Width12Bit, 1100)
	c2 := Select(efuse.Fuses{}, adc.Unit2, adc.Atten0dB, adc.Width12Bit, 1100)
	if c1.CoeffB != 75 || c2.CoeffB != 63 {
		t.Errorf("0dB offsets = %d/%d, want 75/63", c1.CoeffB, c2.CoeffB)
	}
	if c1.CoeffA == c2.CoeffA {
		t.Error("ADC1 and ADC2 should use different scale tables")
	}
}

func TestCheckEfuse(t *testing.T) {
	f := mustVref(t, efuse.Fuses{}, 1100)
	if err := CheckEfuse(f, SchemeEfuseVref); err != nil {
		t.Errorf("CheckEfuse(EfuseVref) = %v, want nil", err)
	}
	if err := CheckEfuse(f, SchemeTwoPoint); !errors.Is(err, ErrNotSupported) {
		t.Errorf("CheckEfuse(TwoPoint) = %v, want ErrNotSupported", err)
	}
	if err := CheckEfuse(f, SchemeDefaultVref); !errors.Is(err, adc.ErrInvalidArg) {
		t.Errorf("CheckEfuse(DefaultVref) = %v, want ErrInvalidArg", err)
	}
}

func TestSchemeJSON(t *testing.T) {
	b, err := json.Marshal(SchemeEfuseVref)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"EfuseVref"` {
		t.Errorf("Marshal = %s", b)
	}
	var s Scheme
	if err := json.Unmarshal([]byte(`"TwoPoint"`), &s); err != nil || s != SchemeTwoPoint {
		t.Errorf("Unmarshal = %v, %v", s, err)
	}
	if err := json.Unmarshal([]byte(`"Bogus"`), &s); err == nil {
		t.Error("Unmarshal of an unknown scheme should fail")
	}
}

func TestDiagnoseLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := mustTwoPoint(t, efuse.Fuses{}, 278, 3265)
	d := Diagnose(f, adc.Unit1, adc.Atten11dB, adc.Width10Bit, 1100)
	if !d.TwoPointSupported || d.EfuseVrefSupported {
		t.Fatalf("supported = tp:%t vref:%t, want tp only", d.TwoPointSupported, d.EfuseVrefSupported)
	}
	if d.Characteristics != Select(f, adc.Unit1, adc.Atten11dB, adc.Width10Bit, 1100) {
		t.Error("Diagnose selected a different profile than Select")
	}

	d.Log(logger)
	entries := hook.AllEntries()
	if len(entries) != 4 {
		t.Fatalf("got %d log entries, want 4", len(entries))
	}
	if got := hook.LastEntry().Message; got != "characterized using Two Point values from eFuse BLOCK3" {
		t.Errorf("last message = %q", got)
	}
}
