package battery

import (
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/charlie0129/vbat/pkg/adc"
	"github.com/charlie0129/vbat/pkg/adccal"
	"github.com/charlie0129/vbat/pkg/board"
	"github.com/charlie0129/vbat/pkg/efuse"
)

// fakeADC implements adc.Driver over a list of canned readings.
type fakeADC struct {
	raws     []int
	next     int
	rawErr   error
	vrefErr  error
	width    adc.Width
	atten    adc.Atten
	vrefGPIO int
	reads    int
}

func (f *fakeADC) ConfigWidth(_ adc.Unit, w adc.Width) error { f.width = w; return nil }
func (f *fakeADC) ConfigChannelAtten(_ adc.Unit, _ adc.Channel, a adc.Atten) error {
	f.atten = a
	return nil
}

func (f *fakeADC) GetRaw(_ adc.Unit, _ adc.Channel) (int, error) {
	f.reads++
	if f.rawErr != nil {
		return 0, f.rawErr
	}
	v := f.raws[f.next%len(f.raws)]
	f.next++
	return v, nil
}

func (f *fakeADC) VrefToGPIO(gpio int) error {
	if f.vrefErr != nil {
		return f.vrefErr
	}
	f.vrefGPIO = gpio
	return nil
}

func huzzah12Bit() board.Board {
	b := board.Huzzah32
	b.Width = adc.Width12Bit
	return b
}

func newTestMeter(t *testing.T, drv adc.Driver, fuses efuse.Fuses, b board.Board) *Meter {
	t.Helper()
	m, err := NewMeter(drv, fuses, b)
	if err != nil {
		t.Fatalf("NewMeter: %v", err)
	}
	return m
}

func TestVoltageUndoesDivider(t *testing.T) {
	drv := &fakeADC{raws: []int{1810}}
	m := newTestMeter(t, drv, efuse.Fuses{}, huzzah12Bit())

	r, err := m.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.PinMillivolts != 1600 {
		t.Fatalf("PinMillivolts = %d, want 1600", r.PinMillivolts)
	}
	if math.Abs(r.Voltage-3.2) > 1e-9 {
		t.Errorf("Voltage = %v, want 3.2", r.Voltage)
	}
	if r.Scheme != adccal.SchemeDefaultVref || !r.InRange {
		t.Errorf("Scheme = %v InRange = %t", r.Scheme, r.InRange)
	}
	if drv.width != adc.Width12Bit || drv.atten != adc.Atten11dB {
		t.Errorf("driver configured with %v/%v", drv.width, drv.atten)
	}

	v, err := m.Voltage()
	if err != nil {
		t.Fatalf("Voltage: %v", err)
	}
	want := float64(m.Characteristics().RawToVoltage(1810)) / 1000 * 2
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("Voltage() = %v, want %v", v, want)
	}
}

func TestVoltagePerScheme(t *testing.T) {
	vref, _ := efuse.Fuses{}.WithVref(1114)
	tp, _ := efuse.Fuses{}.WithTwoPointRecord(282, 3269, 425, 3410)

	tests := []struct {
		name   string
		fuses  efuse.Fuses
		scheme adccal.Scheme
		wantMV uint32
	}{
		{name: "default", fuses: efuse.Fuses{}, scheme: adccal.SchemeDefaultVref, wantMV: 1753},
		{name: "efuse vref", fuses: vref, scheme: adccal.SchemeEfuseVref, wantMV: 1774},
		{name: "two point", fuses: tp, scheme: adccal.SchemeTwoPoint, wantMV: 1742},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMeter(t, &fakeADC{raws: []int{2000}}, tt.fuses, huzzah12Bit())
			r, err := m.Read()
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if r.Scheme != tt.scheme || r.PinMillivolts != tt.wantMV {
				t.Errorf("got %v/%d mV, want %v/%d mV", r.Scheme, r.PinMillivolts, tt.scheme, tt.wantMV)
			}
			if math.Abs(r.Voltage-float64(tt.wantMV)*2/1000) > 1e-9 {
				t.Errorf("Voltage = %v", r.Voltage)
			}
		})
	}
}

func TestVoltageMonotonic(t *testing.T) {
	drv := &fakeADC{raws: []int{0}}
	m := newTestMeter(t, drv, efuse.Fuses{}, board.Huzzah32)

	prev := -1.0
	for raw := 0; raw <= adc.Width10Bit.MaxRaw(); raw++ {
		drv.raws[0] = raw
		v, err := m.Voltage()
		if err != nil {
			t.Fatalf("Voltage at raw %d: %v", raw, err)
		}
		if v < prev {
			t.Fatalf("voltage dropped from %v to %v at raw %d", prev, v, raw)
		}
		prev = v
	}
}

func TestAveraging(t *testing.T) {
	drv := &fakeADC{raws: []int{496, 500, 504, 500}}
	m := newTestMeter(t, drv, efuse.Fuses{}, board.Huzzah32)
	if err := m.SetSamples(4); err != nil {
		t.Fatal(err)
	}

	r, err := m.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.Raw != 500 || r.Samples != 4 || drv.reads != 4 {
		t.Errorf("Raw = %d Samples = %d reads = %d, want 500/4/4", r.Raw, r.Samples, drv.reads)
	}

	if err := m.SetSamples(0); !errors.Is(err, adc.ErrInvalidArg) {
		t.Errorf("SetSamples(0) = %v, want ErrInvalidArg", err)
	}
	if err := m.SetSamples(MaxSamples + 1); !errors.Is(err, adc.ErrInvalidArg) {
		t.Errorf("SetSamples(%d) = %v, want ErrInvalidArg", MaxSamples+1, err)
	}
}

func TestRepeatedReadsAreStable(t *testing.T) {
	drv := &fakeADC{raws: []int{498, 501, 500, 499, 502, 500}}
	m := newTestMeter(t, drv, efuse.Fuses{}, board.Huzzah32)

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < 12; i++ {
		v, err := m.Voltage()
		if err != nil {
			t.Fatal(err)
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	// +-2 counts at 10 bits is about +-6.5 mV at the pin, doubled.
	if hi-lo > 0.03 {
		t.Errorf("spread of %v V across identical inputs", hi-lo)
	}
}

func TestHardwareFaultPropagates(t *testing.T) {
	drv := &fakeADC{rawErr: adc.ErrTimeout}
	m := newTestMeter(t, drv, efuse.Fuses{}, board.Huzzah32)

	v, err := m.Voltage()
	if !errors.Is(err, adc.ErrTimeout) {
		t.Fatalf("Voltage() error = %v, want ErrTimeout", err)
	}
	if v != 0 {
		t.Errorf("Voltage() = %v alongside an error", v)
	}

	drv = &fakeADC{raws: []int{4000}}
	m = newTestMeter(t, drv, efuse.Fuses{}, board.Huzzah32)
	if _, err := m.Voltage(); !errors.Is(err, adc.ErrHardware) {
		t.Errorf("out-of-width reading: error = %v, want ErrHardware", err)
	}
}

// With no battery on USB power the sense pin sits near 2.1 V; the meter
// still returns a positive reading around 4.2 V.
func TestNoBatteryReadsChargerVoltage(t *testing.T) {
	drv := &fakeADC{raws: []int{2430}}
	m := newTestMeter(t, drv, efuse.Fuses{}, huzzah12Bit())

	v, err := m.Voltage()
	if err != nil {
		t.Fatal(err)
	}
	if v < 4.0 || v > 4.4 {
		t.Errorf("Voltage() = %v, want about 4.2", v)
	}
}

func TestReferenceVoltageResetsProfile(t *testing.T) {
	m := newTestMeter(t, &fakeADC{raws: []int{500}}, efuse.Fuses{}, board.Huzzah32)
	if got := m.Characteristics().Vref; got != 1100 {
		t.Fatalf("Vref = %d, want 1100", got)
	}
	if err := m.SetReferenceVoltage(1121); err != nil {
		t.Fatal(err)
	}
	if got := m.Characteristics().Vref; got != 1121 {
		t.Errorf("Vref after override = %d, want 1121", got)
	}
	for _, mv := range []int{0, -1, 499, 1501, 20000, 30000} {
		if err := m.SetReferenceVoltage(mv); !errors.Is(err, adc.ErrInvalidArg) {
			t.Errorf("SetReferenceVoltage(%d) = %v, want ErrInvalidArg", mv, err)
		}
	}
	// A rejected value leaves the curve alone.
	if got := m.Characteristics().Vref; got != 1121 {
		t.Errorf("Vref after rejected overrides = %d, want 1121", got)
	}

	// eFuse calibration wins over the configured constant.
	vref, _ := efuse.Fuses{}.WithVref(1086)
	m = newTestMeter(t, &fakeADC{raws: []int{500}}, vref, board.Huzzah32)
	_ = m.SetReferenceVoltage(1121)
	if c := m.Characteristics(); c.Scheme != adccal.SchemeEfuseVref || c.Vref != 1086 {
		t.Errorf("got %v/%d, want EfuseVref/1086", c.Scheme, c.Vref)
	}
}

func TestRouteVrefToGPIO(t *testing.T) {
	drv := &fakeADC{}
	m := newTestMeter(t, drv, efuse.Fuses{}, board.Huzzah32)

	for _, gpio := range []int{-1, 0, 24, 35, 40} {
		if err := m.RouteVrefToGPIO(gpio); !errors.Is(err, adc.ErrInvalidArg) {
			t.Errorf("RouteVrefToGPIO(%d) = %v, want ErrInvalidArg", gpio, err)
		}
	}
	if drv.vrefGPIO != 0 || !m.RadiosAllowed() {
		t.Fatal("invalid pads must not reach the driver")
	}

	if err := m.RouteVrefToGPIO(26); err != nil {
		t.Fatalf("RouteVrefToGPIO(26) = %v", err)
	}
	if drv.vrefGPIO != 26 || m.VrefGPIO() != 26 {
		t.Errorf("driver pad = %d, meter pad = %d", drv.vrefGPIO, m.VrefGPIO())
	}
	if m.RadiosAllowed() {
		t.Error("radios must not be allowed once the reference is routed")
	}
}

func TestRouteVrefDriverFailure(t *testing.T) {
	drv := &fakeADC{vrefErr: adc.ErrInvalidState}
	m := newTestMeter(t, drv, efuse.Fuses{}, board.Huzzah32)

	if err := m.RouteVrefToGPIO(25); !errors.Is(err, adc.ErrInvalidState) {
		t.Errorf("RouteVrefToGPIO(25) = %v, want ErrInvalidState", err)
	}
	if !m.RadiosAllowed() {
		t.Error("a failed route must not block the radios")
	}
}

func TestLogCharacterisationsIsPure(t *testing.T) {
	tp, _ := efuse.Fuses{}.WithTwoPointRecord(282, 3269, 425, 3410)
	m := newTestMeter(t, &fakeADC{raws: []int{700}}, tp, board.Huzzah32)

	before, err := m.Read()
	if err != nil {
		t.Fatal(err)
	}
	charsBefore := m.Characteristics()

	logger, hook := test.NewNullLogger()
	d := m.LogCharacterisations(logger)
	if !d.TwoPointSupported || d.Characteristics.Scheme != adccal.SchemeTwoPoint {
		t.Errorf("diagnosis = %+v", d)
	}
	if len(hook.AllEntries()) == 0 {
		t.Error("nothing was logged")
	}

	after, err := m.Read()
	if err != nil {
		t.Fatal(err)
	}
	if m.Characteristics() != charsBefore || after.PinMillivolts != before.PinMillivolts {
		t.Error("diagnostic changed the profile used by readings")
	}
}

func TestNewMeterValidates(t *testing.T) {
	if _, err := NewMeter(nil, efuse.Fuses{}, board.Huzzah32); !errors.Is(err, adc.ErrInvalidArg) {
		t.Errorf("nil driver: %v", err)
	}
	b := board.Huzzah32
	b.ScalingFactor = 0
	if _, err := NewMeter(&fakeADC{}, efuse.Fuses{}, b); !errors.Is(err, adc.ErrInvalidArg) {
		t.Errorf("zero scaling: %v", err)
	}
}
