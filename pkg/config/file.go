package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/vbat/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		Board: ptr.To("huzzah32"),
		// 1100 mV is the nominal ESP32 reference. Measure the actual value
		// with `vbat route-vref` on chips without eFuse calibration.
		ReferenceVoltage:      ptr.To(1100),
		Samples:               ptr.To(1),
		SampleIntervalSeconds: ptr.To(30),
		SampleSchedule:        ptr.To(""),
		SerialDevice:          ptr.To(""),
		Baud:                  ptr.To(115200),
		AllowNonRootAccess:    ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Board                 *string `json:"board,omitempty" yaml:"board,omitempty"`
	ReferenceVoltage      *int    `json:"referenceVoltage,omitempty" yaml:"referenceVoltage,omitempty"`
	Samples               *int    `json:"samples,omitempty" yaml:"samples,omitempty"`
	SampleIntervalSeconds *int    `json:"sampleIntervalSeconds,omitempty" yaml:"sampleIntervalSeconds,omitempty"`
	SampleSchedule        *string `json:"sampleSchedule,omitempty" yaml:"sampleSchedule,omitempty"`
	SerialDevice          *string `json:"serialDevice,omitempty" yaml:"serialDevice,omitempty"`
	Baud                  *int    `json:"baud,omitempty" yaml:"baud,omitempty"`
	AllowNonRootAccess    *bool   `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		Board:                 ptr.To(c.Board()),
		ReferenceVoltage:      ptr.To(c.ReferenceVoltage()),
		Samples:               ptr.To(c.Samples()),
		SampleIntervalSeconds: ptr.To(int(c.SampleInterval() / time.Second)),
		SampleSchedule:        ptr.To(c.SampleSchedule()),
		SerialDevice:          ptr.To(c.SerialDevice()),
		Baud:                  ptr.To(c.Baud()),
		AllowNonRootAccess:    ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

func valueOr[T any](v, def *T) T {
	if v != nil {
		return *v
	}
	return *def
}

func (f *File) Board() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.c.Board, defaultFileConfig.Board)
}

func (f *File) ReferenceVoltage() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.c.ReferenceVoltage, defaultFileConfig.ReferenceVoltage)
}

func (f *File) Samples() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.c.Samples, defaultFileConfig.Samples)
}

func (f *File) SampleInterval() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	d := time.Duration(valueOr(f.c.SampleIntervalSeconds, defaultFileConfig.SampleIntervalSeconds)) * time.Second
	if d < MinSampleInterval {
		d = MinSampleInterval
	}
	return d
}

func (f *File) SampleSchedule() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	s := valueOr(f.c.SampleSchedule, defaultFileConfig.SampleSchedule)
	f.mu.RUnlock()

	if strings.TrimSpace(s) == "" {
		return "@every " + f.SampleInterval().String()
	}
	return s
}

func (f *File) SerialDevice() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.c.SerialDevice, defaultFileConfig.SerialDevice)
}

func (f *File) Baud() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.c.Baud, defaultFileConfig.Baud)
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.c.AllowNonRootAccess, defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetReferenceVoltage(mv int) {
	if f.c == nil {
		panic("config is nil")
	}

	if mv < MinReferenceVoltage || mv > MaxReferenceVoltage {
		panic("reference voltage must be between 500 and 1500 mV")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.ReferenceVoltage = &mv
}

func (f *File) SetSamples(n int) {
	if f.c == nil {
		panic("config is nil")
	}

	if n < 1 || n > MaxSamples {
		panic("samples must be between 1 and 64")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Samples = &n
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.AllowNonRootAccess = &b
}

func (f *File) SetSerialDevice(device string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.SerialDevice = &device
}

func (f *File) isYAML() bool {
	switch strings.ToLower(filepath.Ext(f.filepath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if len(bytes.TrimSpace(b)) == 0 {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if f.isYAML() {
		err = yaml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

// validate rejects values the setters would panic on. Unset keys fall
// back to defaults and are not checked.
func (c *RawFileConfig) validate() error {
	if c.ReferenceVoltage != nil && (*c.ReferenceVoltage < MinReferenceVoltage || *c.ReferenceVoltage > MaxReferenceVoltage) {
		return pkgerrors.Errorf("referenceVoltage must be between %d and %d mV, got %d",
			MinReferenceVoltage, MaxReferenceVoltage, *c.ReferenceVoltage)
	}
	if c.Samples != nil && (*c.Samples < 1 || *c.Samples > MaxSamples) {
		return pkgerrors.Errorf("samples must be between 1 and %d, got %d", MaxSamples, *c.Samples)
	}
	if c.Baud != nil && *c.Baud <= 0 {
		return pkgerrors.Errorf("baud must be positive, got %d", *c.Baud)
	}
	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	if f.isYAML() {
		enc := yaml.NewEncoder(fp)
		enc.SetIndent(2)
		err = enc.Encode(f.c)
		if err == nil {
			err = enc.Close()
		}
	} else {
		enc := json.NewEncoder(fp)
		enc.SetIndent("", "  ")
		err = enc.Encode(f.c)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"board":              f.Board(),
		"referenceVoltage":   f.ReferenceVoltage(),
		"samples":            f.Samples(),
		"sampleInterval":     f.SampleInterval().String(),
		"sampleSchedule":     f.SampleSchedule(),
		"serialDevice":       f.SerialDevice(),
		"baud":               f.Baud(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}
