// Package battery measures the battery voltage of a board through its
// ADC and exposes the maintenance operations around it: routing the
// ADC2 reference to a pad and reporting the calibration in effect.
//
// The ADC is an exclusive resource. A Meter serialises its own calls,
// but nothing else may drive the same peripheral concurrently, and
// Wi-Fi/Bluetooth must stay off while the reference is routed because
// the radios share ADC2.
package battery

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/adc"
	"github.com/charlie0129/vbat/pkg/adccal"
	"github.com/charlie0129/vbat/pkg/board"
	"github.com/charlie0129/vbat/pkg/efuse"
	"github.com/charlie0129/vbat/pkg/types"
)

const (
	// MaxSamples bounds the averaging window of a single reading.
	MaxSamples = 64

	// Accepted range of the default reference (mV). The ESP32 reference
	// is nominally 1100 mV and varies by about ±100 mV between chips.
	MinReferenceVoltage = 500
	MaxReferenceVoltage = 1500
)

func checkReferenceVoltage(mv int) error {
	if mv < MinReferenceVoltage || mv > MaxReferenceVoltage {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "reference voltage must be between %d and %d mV, got %d",
			MinReferenceVoltage, MaxReferenceVoltage, mv)
	}
	return nil
}

// Meter reads the battery voltage of one board.
type Meter struct {
	drv   adc.Driver
	fuses efuse.Fuses
	board board.Board

	mu          sync.Mutex
	defaultVref uint32
	samples     int
	chars       *adccal.Characteristics
	vrefGPIO    int
}

// NewMeter returns a Meter for b. fuses is the eFuse snapshot of the
// chip drv talks to.
func NewMeter(drv adc.Driver, fuses efuse.Fuses, b board.Board) (*Meter, error) {
	if drv == nil {
		return nil, pkgerrors.Wrap(adc.ErrInvalidArg, "nil adc driver")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := checkReferenceVoltage(int(b.DefaultVref)); err != nil {
		return nil, pkgerrors.Wrapf(err, "board %s", b.Name)
	}

	return &Meter{
		drv:         drv,
		fuses:       fuses,
		board:       b,
		defaultVref: b.DefaultVref,
		samples:     1,
	}, nil
}

// Board returns the board the meter was created for.
func (m *Meter) Board() board.Board {
	return m.board
}

// SetReferenceVoltage overrides the board's default reference (mV). It
// only has an effect on chips without eFuse calibration.
func (m *Meter) SetReferenceVoltage(mv int) error {
	if err := checkReferenceVoltage(mv); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.defaultVref != uint32(mv) {
		m.defaultVref = uint32(mv)
		m.chars = nil
	}
	return nil
}

// SetSamples sets how many conversions are averaged per reading.
// Averaging n samples reduces uncorrelated noise by about sqrt(n).
func (m *Meter) SetSamples(n int) error {
	if n < 1 || n > MaxSamples {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "samples must be between 1 and %d, got %d", MaxSamples, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = n
	return nil
}

// Characteristics returns the calibration profile readings use.
func (m *Meter) Characteristics() adccal.Characteristics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.characteristicsLocked()
}

// eFuses never change at runtime, so the profile is cached until the
// reference voltage changes.
func (m *Meter) characteristicsLocked() adccal.Characteristics {
	if m.chars == nil {
		c := adccal.Select(m.fuses, m.board.Unit, m.board.Atten, m.board.Width, m.defaultVref)
		m.chars = &c
	}
	return *m.chars
}

// Read takes a calibrated battery reading.
func (m *Meter) Read() (*types.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.board
	if err := m.drv.ConfigWidth(b.Unit, b.Width); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to configure %s width", b.Unit)
	}
	if err := m.drv.ConfigChannelAtten(b.Unit, b.Channel, b.Atten); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to configure %s channel %d attenuation", b.Unit, int(b.Channel))
	}

	chars := m.characteristicsLocked()

	sum := 0
	for i := 0; i < m.samples; i++ {
		raw, err := m.drv.GetRaw(b.Unit, b.Channel)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to sample %s channel %d", b.Unit, int(b.Channel))
		}
		if raw < 0 || raw > b.Width.MaxRaw() {
			return nil, pkgerrors.Wrapf(adc.ErrHardware, "raw reading %d outside %s range", raw, b.Width)
		}
		sum += raw
	}
	raw := sum / m.samples

	mv := chars.RawToVoltage(raw)
	r := &types.Reading{
		Time:          time.Now().Round(0),
		Raw:           raw,
		Samples:       m.samples,
		PinMillivolts: mv,
		Voltage:       float64(mv) * b.ScalingFactor / 1000,
		Scheme:        chars.Scheme,
		InRange:       b.InPinRange(mv),
	}

	logrus.WithFields(logrus.Fields{
		"raw":           r.Raw,
		"samples":       r.Samples,
		"pinMillivolts": r.PinMillivolts,
		"voltage":       r.Voltage,
		"scheme":        r.Scheme.String(),
	}).Trace("battery reading")

	return r, nil
}

// Voltage returns the battery voltage in volts.
//
// The result is only meaningful with a battery attached. Powered over
// USB with no battery, the charger output on VBAT reads as roughly
// 2 x 2.1 V; the meter cannot tell the two cases apart.
func (m *Meter) Voltage() (float64, error) {
	r, err := m.Read()
	if err != nil {
		return 0, err
	}
	return r.Voltage, nil
}

// RouteVrefToGPIO drives the internal ADC2 reference onto gpio so it can
// be measured with a multimeter. The measured value belongs in the
// configuration as the default reference voltage.
//
// Wi-Fi and Bluetooth must be off. This is not checked.
func (m *Meter) RouteVrefToGPIO(gpio int) error {
	if !m.board.CanRouteVref(gpio) {
		return pkgerrors.Wrapf(adc.ErrInvalidArg, "GPIO%d cannot carry the ADC2 reference on %s (valid: %v)",
			gpio, m.board.Name, m.board.VrefGPIOs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.drv.VrefToGPIO(gpio); err != nil {
		return pkgerrors.Wrapf(err, "failed to route vref to GPIO%d", gpio)
	}
	m.vrefGPIO = gpio

	logrus.WithField("gpio", gpio).Info("ADC2 reference routed; measure it against GND and keep radios off")
	return nil
}

// VrefGPIO returns the pad the reference was routed to, or 0.
func (m *Meter) VrefGPIO() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vrefGPIO
}

// RadiosAllowed reports whether Wi-Fi/Bluetooth may be enabled without
// contending for ADC2. It is false once the reference has been routed.
func (m *Meter) RadiosAllowed() bool {
	return m.VrefGPIO() == 0
}

// Diagnose reports the eFuse contents and the scheme in effect. It runs
// the selection on its own and leaves the cached profile alone.
func (m *Meter) Diagnose() adccal.Diagnosis {
	m.mu.Lock()
	vref := m.defaultVref
	m.mu.Unlock()

	return adccal.Diagnose(m.fuses, m.board.Unit, m.board.Atten, m.board.Width, vref)
}

// LogCharacterisations logs which calibration scheme readings use and
// why.
func (m *Meter) LogCharacterisations(logger logrus.FieldLogger) adccal.Diagnosis {
	d := m.Diagnose()
	d.Log(logger.WithField("board", m.board.Name))
	return d
}
