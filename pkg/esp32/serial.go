package esp32

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/charlie0129/vbat/pkg/adc"
)

// DefaultBaud is the console speed of the board firmware.
const DefaultBaud = 115200

var _ Connection = &SerialConnection{}

// SerialConnection talks to the board console over a serial port.
type SerialConnection struct {
	config *serial.Config

	mu     sync.Mutex
	port   io.ReadWriteCloser
	reader *bufio.Reader
	// resync is set after a request went unanswered. Its reply may still
	// arrive, so the next call only trusts replies after its own echo.
	resync bool
}

// NewSerialConnection returns a connection to device. It is not opened.
func NewSerialConnection(device string, baud int) *SerialConnection {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &SerialConnection{
		config: &serial.Config{
			Name:        device,
			Baud:        baud,
			ReadTimeout: time.Second,
		},
	}
}

// newStreamConnection wraps an already open stream.
func newStreamConnection(rwc io.ReadWriteCloser) *SerialConnection {
	return &SerialConnection{
		port:   rwc,
		reader: bufio.NewReader(rwc),
	}
}

func (s *SerialConnection) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}

	p, err := serial.OpenPort(s.config)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open serial port %s", s.config.Name)
	}
	s.port = p
	s.reader = bufio.NewReader(p)

	logrus.WithFields(logrus.Fields{
		"device": s.config.Name,
		"baud":   s.config.Baud,
	}).Info("serial console opened")
	return nil
}

func (s *SerialConnection) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.reader = nil
	s.resync = false
	return err
}

func (s *SerialConnection) Call(cmd string, args ...uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return 0, pkgerrors.Wrap(adc.ErrInvalidState, "serial console not open")
	}

	if s.resync {
		s.reader.Reset(s.port)
	}

	req := FormatRequest(cmd, args...)
	echo := strings.TrimSpace(req)
	if _, err := io.WriteString(s.port, req); err != nil {
		return 0, pkgerrors.Wrapf(adc.ErrHardware, "failed to write %q: %v", echo, err)
	}

	synced := !s.resync
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.resync = true
			return 0, pkgerrors.Wrapf(adc.ErrHardware, "no reply to %q: %v", echo, err)
		}
		line = strings.TrimSpace(line)
		// The console echoes input and prints log lines in between.
		if line == echo {
			synced = true
			continue
		}
		if line == "" || !isReply(line) {
			logrus.WithField("line", line).Trace("skipping console output")
			continue
		}
		if !synced {
			logrus.WithField("line", line).Debug("discarding late reply to an earlier request")
			continue
		}
		s.resync = false
		return ParseReply(line)
	}
}

func isReply(line string) bool {
	return strings.HasPrefix(line, "OK") || strings.HasPrefix(line, "ERR")
}
