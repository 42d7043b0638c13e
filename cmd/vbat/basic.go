package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/vbat/pkg/adccal"
	"github.com/charlie0129/vbat/pkg/events"
	"github.com/charlie0129/vbat/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewVoltageCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "voltage",
		Short:   "Read the battery voltage now",
		GroupID: gBasic,
		Long: `Take a fresh calibrated reading of the battery voltage.

With no battery connected and the board powered over USB, this reads about 4.2 V:
the charger output is what sits on VBAT then.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := apiClient.GetVoltage()
			if err != nil {
				return fmt.Errorf("failed to read voltage: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}

			cmd.Printf("%s (%d mV at the pin, raw %d, %s)\n",
				voltageText(r.Voltage), r.PinMillivolts, r.Raw, r.Scheme.Description())
			if !r.InRange {
				logrus.Warn("pin voltage is outside the range this attenuation measures accurately")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reading as JSON")

	return cmd
}

func NewCalibrationCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "calibration",
		Short:   "Show which ADC calibration the chip supports and uses",
		GroupID: gBasic,
		Long: `Show which ADC calibration the chip supports and uses.

Calibration comes from, in order of preference: Two Point values burned into eFuse
BLOCK3, a reference voltage burned into eFuse BLOCK0, or the reference voltage from
the configuration (1100 mV unless set with 'vbat reference-voltage'). The daemon
also writes this report to its log.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := apiClient.GetCalibration()
			if err != nil {
				return fmt.Errorf("failed to get calibration: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}

			c := d.Characteristics
			cmd.Println(bold("eFuse:"))
			cmd.Printf("  Two Point: %s\n", bool2Text(d.TwoPointSupported))
			cmd.Printf("  Vref: %s\n", bool2Text(d.EfuseVrefSupported))
			for _, k := range []string{"BLK0_RDATA3", "BLK0_RDATA4", "BLK3_RDATA3"} {
				if v, ok := d.Words[k]; ok {
					cmd.Printf("  %s: 0x%08x\n", k, v)
				}
			}
			cmd.Println()
			cmd.Println(bold("Characterization:"))
			cmd.Printf("  Scheme: %s\n", bold("%s", c.Scheme.Description()))
			if c.Scheme != adccal.SchemeTwoPoint {
				cmd.Printf("  Vref: %s\n", bold("%d mV", c.Vref))
			}
			cmd.Printf("  %s, %s, %s\n", c.Unit, c.Atten, c.Width)
			cmd.Printf("  mV = raw12 * %d / 65536 + %d\n", c.CoeffA, c.CoeffB)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diagnosis as JSON")

	return cmd
}

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Print readings as the daemon takes them",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Fail early with a useful error if the daemon is not there.
			if _, _, err := getVersion(); err != nil {
				return err
			}

			for ev := range apiClient.SubscribeEvents(ctx) {
				switch ev.Name {
				case events.BatteryVoltage:
					p, err := events.DecodeAs[events.BatteryVoltageEvent](ev)
					if err != nil {
						logrus.Warnf("bad %s event: %v", ev.Name, err)
						continue
					}
					cmd.Printf("%s  %s  %4d mV  %s\n",
						time.Unix(p.Ts, 0).Format(time.TimeOnly), voltageText(p.Voltage), p.PinMillivolts, p.Scheme)
				case events.SampleError:
					p, _ := events.DecodeAs[events.SampleErrorEvent](ev)
					logrus.Errorf("sample failed: %s", p.Message)
				case events.VrefRouted:
					p, _ := events.DecodeAs[events.VrefRoutedEvent](ev)
					logrus.Warnf("ADC2 reference routed to GPIO%d, radios must stay off", p.GPIO)
				}
			}

			if ctx.Err() == nil {
				return fmt.Errorf("daemon closed the event stream")
			}
			return nil
		},
	}
}
