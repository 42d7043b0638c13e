package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/vbat/pkg/report"
	"github.com/charlie0129/vbat/pkg/types"
)

// writeChart renders readings to an HTML file at path. A failed close is
// reported since the page may be incomplete.
func writeChart(path string, readings []types.Reading) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close chart file: %w", cerr)
		}
	}()

	return report.Render(f, readings, "Battery voltage")
}

type sampleStats struct {
	min, max, mean, stddev float64
}

func computeStats(readings []types.Reading) sampleStats {
	if len(readings) == 0 {
		return sampleStats{}
	}

	s := sampleStats{min: math.Inf(1), max: math.Inf(-1)}
	sum := 0.0
	for _, r := range readings {
		s.min = math.Min(s.min, r.Voltage)
		s.max = math.Max(s.max, r.Voltage)
		sum += r.Voltage
	}
	s.mean = sum / float64(len(readings))

	sq := 0.0
	for _, r := range readings {
		sq += (r.Voltage - s.mean) * (r.Voltage - s.mean)
	}
	s.stddev = math.Sqrt(sq / float64(len(readings)))
	return s
}

func NewSampleCommand() *cobra.Command {
	var (
		count    int
		interval time.Duration
		chart    string
		recorded bool
	)

	cmd := &cobra.Command{
		Use:     "sample",
		Short:   "Take a series of readings and summarise them",
		GroupID: gBasic,
		Long: `Take a series of readings and print their spread.

With --recorded, use the readings the daemon's sampling loop has already taken
instead. With --chart, also write an HTML line chart of the readings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var readings []types.Reading

			if recorded {
				rs, err := apiClient.GetReadings()
				if err != nil {
					return err
				}
				readings = rs
			} else {
				if count < 1 {
					return fmt.Errorf("count must be at least 1, got %d", count)
				}
				for i := 0; i < count; i++ {
					if i > 0 {
						time.Sleep(interval)
					}
					r, err := apiClient.GetVoltage()
					if err != nil {
						return fmt.Errorf("failed to read voltage: %w", err)
					}
					logrus.Debugf("reading %d/%d: %.3f V", i+1, count, r.Voltage)
					readings = append(readings, *r)
				}
			}

			if len(readings) == 0 {
				return fmt.Errorf("no readings")
			}

			s := computeStats(readings)
			cmd.Printf("readings: %d\n", len(readings))
			cmd.Printf("mean:     %s\n", voltageText(s.mean))
			cmd.Printf("min/max:  %.3f V / %.3f V\n", s.min, s.max)
			cmd.Printf("stddev:   %.1f mV\n", s.stddev*1000)

			if chart != "" {
				if err := writeChart(chart, readings); err != nil {
					return err
				}
				logrus.Infof("chart written to %s", chart)
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&count, "count", "n", 10, "number of readings to take")
	f.DurationVar(&interval, "interval", time.Second, "time between readings")
	f.StringVar(&chart, "chart", "", "write an HTML chart of the readings to this file")
	f.BoolVar(&recorded, "recorded", false, "use the readings recorded by the daemon")

	return cmd
}
