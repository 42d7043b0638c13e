package esp32

import (
	"math/rand/v2"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/vbat/pkg/adc"
	"github.com/charlie0129/vbat/pkg/efuse"
)

var _ Connection = &MockConnection{}

type mockChannel struct {
	unit adc.Unit
	ch   adc.Channel
}

// MockConnection is an in-memory ESP32 console. Input levels are set as
// 12-bit counts and scaled down to the configured width on read, as the
// SAR ADC does.
type MockConnection struct {
	mu sync.Mutex

	fuses   efuse.Fuses
	levels  map[mockChannel]int
	widths  map[adc.Unit]adc.Width
	attens  map[mockChannel]adc.Atten
	noise   int
	rng     *rand.Rand
	fault   error
	vref    int
	radioOn bool
	open    bool
}

// NewMockConnection returns a mock chip with the given eFuse contents.
func NewMockConnection(fuses efuse.Fuses) *MockConnection {
	return &MockConnection{
		fuses:  fuses,
		levels: make(map[mockChannel]int),
		widths: map[adc.Unit]adc.Width{
			adc.Unit1: adc.Width12Bit,
			adc.Unit2: adc.Width12Bit,
		},
		attens: make(map[mockChannel]adc.Atten),
		rng:    rand.New(rand.NewPCG(1, 2)),
	}
}

// SetLevel sets the input of a channel as a 12-bit count.
func (m *MockConnection) SetLevel(u adc.Unit, ch adc.Channel, raw12 int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[mockChannel{u, ch}] = raw12
}

// SetNoise makes every conversion deviate by up to +-counts (12-bit).
func (m *MockConnection) SetNoise(counts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noise = counts
}

// SetFault makes every subsequent conversion fail with err. nil clears it.
func (m *MockConnection) SetFault(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = err
}

// SetRadio marks Wi-Fi as running, which holds ADC2.
func (m *MockConnection) SetRadio(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.radioOn = on
}

// Atten returns the attenuation last configured for a channel.
func (m *MockConnection) Atten(u adc.Unit, ch adc.Channel) adc.Atten {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attens[mockChannel{u, ch}]
}

// VrefGPIO returns the pad the reference is routed to, or 0.
func (m *MockConnection) VrefGPIO() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vref
}

func (m *MockConnection) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *MockConnection) Call(cmd string, args ...uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return 0, pkgerrors.Wrap(adc.ErrInvalidState, "mock console not open")
	}

	switch cmd {
	case CmdADCWidth:
		if len(args) != 2 {
			return 0, adc.ErrInvalidArg
		}
		u := adc.Unit(args[0])
		w, err := adc.WidthFromBits(int(args[1]))
		if err != nil || !u.Valid() {
			return 0, adc.ErrInvalidArg
		}
		m.widths[u] = w
		return 0, nil

	case CmdADCAtten:
		if len(args) != 3 {
			return 0, adc.ErrInvalidArg
		}
		u, ch, a := adc.Unit(args[0]), adc.Channel(args[1]), adc.Atten(args[2])
		if _, err := ch.GPIO(u); err != nil || !a.Valid() {
			return 0, adc.ErrInvalidArg
		}
		m.attens[mockChannel{u, ch}] = a
		return 0, nil

	case CmdADCRaw:
		if len(args) != 2 {
			return 0, adc.ErrInvalidArg
		}
		return m.sample(adc.Unit(args[0]), adc.Channel(args[1]))

	case CmdVrefGPIO:
		if len(args) != 1 || !adc.IsVrefGPIO(int(args[0])) {
			return 0, adc.ErrInvalidArg
		}
		if m.radioOn {
			return 0, pkgerrors.Wrap(adc.ErrInvalidState, "ADC2 held by Wi-Fi")
		}
		m.vref = int(args[0])
		return 0, nil

	case CmdEfuseWord:
		if len(args) != 2 {
			return 0, adc.ErrInvalidArg
		}
		block, word := args[0], int(args[1])
		switch {
		case block == 0 && word < len(m.fuses.Block0):
			return m.fuses.Block0[word], nil
		case block == 3 && word < len(m.fuses.Block3):
			return m.fuses.Block3[word], nil
		}
		return 0, adc.ErrInvalidArg
	}

	return 0, pkgerrors.Wrapf(adc.ErrInvalidArg, "unknown command %q", cmd)
}

func (m *MockConnection) sample(u adc.Unit, ch adc.Channel) (uint32, error) {
	if _, err := ch.GPIO(u); err != nil {
		return 0, adc.ErrInvalidArg
	}
	if m.fault != nil {
		return 0, m.fault
	}
	if u == adc.Unit2 && (m.radioOn || m.vref != 0) {
		return 0, adc.ErrTimeout
	}

	v := m.levels[mockChannel{u, ch}]
	if m.noise > 0 {
		v += m.rng.IntN(2*m.noise+1) - m.noise
	}
	v = max(0, min(v, adc.Width12Bit.MaxRaw()))

	w := m.widths[u]
	return uint32(v >> (adc.Width12Bit - w)), nil
}
