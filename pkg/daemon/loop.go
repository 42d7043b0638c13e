package daemon

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/events"
	"github.com/charlie0129/vbat/pkg/types"
)

const maxRecordedReadings = 120

var (
	recorder = NewReadingRecorder(maxRecordedReadings)

	lastSampleErrMu sync.Mutex
	lastSampleErr   error
)

// ReadingRecorder keeps the last N readings of the sampling loop.
type ReadingRecorder struct {
	MaxRecordCount int
	Readings       []types.Reading
	mu             *sync.Mutex
}

// NewReadingRecorder returns a new ReadingRecorder.
func NewReadingRecorder(maxRecordCount int) *ReadingRecorder {
	return &ReadingRecorder{
		MaxRecordCount: maxRecordCount,
		Readings:       make([]types.Reading, 0),
		mu:             &sync.Mutex{},
	}
}

// AddRecord adds a new reading, dropping the oldest one when full.
func (r *ReadingRecorder) AddRecord(reading types.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading.
	// This will prevent time.Since from returning values that are not accurate (especially when the system is in sleep mode).
	reading.Time = reading.Time.Round(0)

	if len(r.Readings) >= r.MaxRecordCount {
		r.Readings = r.Readings[1:]
	}
	r.Readings = append(r.Readings, reading)
}

// ClearRecords clears all records.
func (r *ReadingRecorder) ClearRecords() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Readings = make([]types.Reading, 0)
}

// GetRecords returns a copy of the records, oldest first.
func (r *ReadingRecorder) GetRecords() []types.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Reading, len(r.Readings))
	copy(out, r.Readings)
	return out
}

// GetRecordsIn returns the number of continuous records in the last
// duration. Two adjacent records are continuous when they are less than
// interval+1s apart.
func (r *ReadingRecorder) GetRecordsIn(last, interval time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	gap := interval + time.Second

	// The last record must be within the last duration.
	if len(r.Readings) > 0 && time.Since(r.Readings[len(r.Readings)-1].Time) >= gap {
		return 0
	}

	count := 0
	for i := len(r.Readings) - 1; i >= 0; i-- {
		record := r.Readings[i].Time
		if time.Since(record) > last {
			break
		}

		theRecordAfter := record
		if i+1 < len(r.Readings) {
			theRecordAfter = r.Readings[i+1].Time
		}

		if theRecordAfter.Sub(record) >= gap {
			break
		}
		count++
	}

	return count
}

// GetLastRecord returns the latest reading, or nil when there is none.
func (r *ReadingRecorder) GetLastRecord() *types.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Readings) == 0 {
		return nil
	}

	last := r.Readings[len(r.Readings)-1]
	return &last
}

func formatRelativeTimes(readings []types.Reading) []string {
	var timesString []string
	for _, rd := range readings {
		timesString = append(timesString, time.Since(rd.Time).Round(time.Second).String())
	}
	return timesString
}

// checkMissedSamples reports whether the loop fell behind, usually
// because the host slept.
func checkMissedSamples(interval time.Duration) bool {
	window := 4*interval + time.Second
	count := recorder.GetRecordsIn(window, interval)
	expected := int(window / interval)
	minCount := expected - 1

	// Not enough history yet.
	if len(recorder.GetRecords()) < expected {
		return false
	}

	if count < minCount {
		records := recorder.GetRecords()
		if len(records) > expected {
			records = records[len(records)-expected:]
		}
		logrus.WithFields(logrus.Fields{
			"count":         count,
			"expectedCount": expected,
			"minCount":      minCount,
			"recentRecords": formatRelativeTimes(records),
		}).Infof("possibly missed samples")
		return true
	}
	return false
}

// sampleOnce takes one reading, records it and publishes it. It is the
// task of the sampling scheduler.
func sampleOnce() error {
	checkMissedSamples(conf.SampleInterval())

	reading, err := meter.Read()
	setLastSampleErr(err)
	if err != nil {
		sseHub.Publish(events.SampleError, events.SampleErrorEvent{
			Message: err.Error(),
			Ts:      time.Now().Unix(),
		})
		return err
	}

	recorder.AddRecord(*reading)
	sseHub.Publish(events.BatteryVoltage, events.BatteryVoltageEvent{
		Voltage:       reading.Voltage,
		PinMillivolts: reading.PinMillivolts,
		Raw:           reading.Raw,
		Scheme:        reading.Scheme.String(),
		InRange:       reading.InRange,
		Ts:            reading.Time.Unix(),
	})
	printStatus(reading)

	return nil
}

func setLastSampleErr(err error) {
	lastSampleErrMu.Lock()
	defer lastSampleErrMu.Unlock()
	lastSampleErr = err
}

func getLastSampleErr() error {
	lastSampleErrMu.Lock()
	defer lastSampleErrMu.Unlock()
	return lastSampleErr
}

var lastPrintTime time.Time

type loopStatus struct {
	centivolts int
	scheme     string
	inRange    bool
}

var lastStatus loopStatus

// printStatus logs a reading at debug level, or at trace level when it
// repeats the previous one within a sampling period.
func printStatus(reading *types.Reading) {
	currentStatus := loopStatus{
		centivolts: int(math.Round(reading.Voltage * 100)),
		scheme:     reading.Scheme.String(),
		inRange:    reading.InRange,
	}

	fields := logrus.Fields{
		"voltage":       reading.Voltage,
		"pinMillivolts": reading.PinMillivolts,
		"raw":           reading.Raw,
		"samples":       reading.Samples,
		"scheme":        reading.Scheme.String(),
		"inRange":       reading.InRange,
	}

	defer func() { lastPrintTime = time.Now() }()

	if time.Since(lastPrintTime) < conf.SampleInterval()+time.Second && lastStatus == currentStatus {
		logrus.WithFields(fields).Trace("battery voltage")
		return
	}

	if !reading.InRange {
		logrus.WithFields(fields).Warn("pin voltage outside the accurate range of the attenuation")
	}
	logrus.WithFields(fields).Debug("battery voltage")

	lastStatus = currentStatus
}
