package esp32

import (
	"github.com/sirupsen/logrus"
)

// Chip is an ESP32 reached through a Connection. It implements
// adc.Driver.
type Chip struct {
	conn Connection
}

// New returns a Chip talking over conn.
func New(conn Connection) *Chip {
	return &Chip{
		conn: conn,
	}
}

// NewMock returns a Chip backed by an in-memory ESP32.
func NewMock(m *MockConnection) *Chip {
	return &Chip{
		conn: m,
	}
}

// Open opens the connection.
func (c *Chip) Open() error {
	return c.conn.Open()
}

// Close closes the connection.
func (c *Chip) Close() error {
	return c.conn.Close()
}

// Call runs a console command on the chip.
func (c *Chip) Call(cmd string, args ...uint32) (uint32, error) {
	logrus.WithFields(logrus.Fields{
		"cmd":  cmd,
		"args": args,
	}).Trace("Trying to call ESP32")

	v, err := c.conn.Call(cmd, args...)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"cmd":  cmd,
			"args": args,
		}).WithError(err).Trace("ESP32 call failed")
		return v, err
	}

	logrus.WithFields(logrus.Fields{
		"cmd": cmd,
		"val": v,
	}).Trace("ESP32 call succeed")

	return v, nil
}
