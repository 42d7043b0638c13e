package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/battery"
)

// Limits enforced on load, by the setters and by the daemon API.
const (
	MinReferenceVoltage = battery.MinReferenceVoltage
	MaxReferenceVoltage = battery.MaxReferenceVoltage
	MaxSamples          = battery.MaxSamples
	MinSampleInterval   = 1 * time.Second
)

type Config interface {
	// Board is the name of the board preset.
	Board() string
	// ReferenceVoltage is the manually measured ADC reference in mV,
	// used when the chip has no eFuse calibration.
	ReferenceVoltage() int
	Samples() int
	SampleInterval() time.Duration
	// SampleSchedule is a cron expression for the sampling loop. It falls
	// back to "@every <SampleInterval>".
	SampleSchedule() string
	// SerialDevice is the board console. Empty selects the mock chip.
	SerialDevice() string
	Baud() int
	AllowNonRootAccess() bool

	SetReferenceVoltage(int)
	SetSamples(int)
	SetAllowNonRootAccess(bool)
	SetSerialDevice(string)

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
