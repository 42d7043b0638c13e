package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/vbat/pkg/adccal"
	"github.com/charlie0129/vbat/pkg/config"
	"github.com/charlie0129/vbat/pkg/types"
)

type statusData struct {
	status *types.Status
	config *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		status: st,
		config: conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of vbat",
		Long:    `Get the latest battery reading, the calibration in effect, and the configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(data.status)
			}

			st := data.status
			conf := config.NewFileFromConfig(data.config, "")

			cmd.Println(bold("Battery:"))
			if st.Reading != nil {
				age := time.Since(st.Reading.Time).Round(time.Second)
				cmd.Printf("  Voltage: %s (%s ago)\n", voltageText(st.Reading.Voltage), age)
				cmd.Printf("  Pin: %s, raw %d over %d sample(s)\n", bold("%d mV", st.Reading.PinMillivolts), st.Reading.Raw, st.Reading.Samples)
				if !st.Reading.InRange {
					cmd.Println("    " + color.YellowString("Outside the accurate range of the attenuation."))
				}
			} else {
				cmd.Println("  Voltage: no reading yet")
			}
			if st.LastError != "" {
				cmd.Printf("  Last sample failed: %s\n", color.RedString(st.LastError))
			}
			cmd.Printf("  Recorded readings: %d\n", st.Recorded)
			if st.NextSample != "" {
				cmd.Printf("  Next sample: %s\n", st.NextSample)
			}

			cmd.Println()

			c := st.Characteristics
			cmd.Println(bold("Calibration:"))
			cmd.Printf("  Board: %s\n", bold("%s", st.Board))
			cmd.Printf("  Scheme: %s\n", bold("%s", c.Scheme.Description()))
			if c.Scheme != adccal.SchemeTwoPoint {
				cmd.Printf("  Vref: %s\n", bold("%d mV", c.Vref))
			}
			if st.VrefGPIO != 0 {
				cmd.Printf("  Reference routed to: %s\n", bold("GPIO%d", st.VrefGPIO))
			}
			cmd.Printf("  Radios allowed: %s\n", bool2Text(st.RadiosAllowed))
			if !st.RadiosAllowed {
				cmd.Println("    Wi-Fi and Bluetooth share ADC2 with the routed reference. Reset the board before enabling them.")
			}

			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Reference voltage: %s\n", bold("%d mV", conf.ReferenceVoltage()))
			cmd.Printf("  Samples per reading: %s\n", bold("%d", conf.Samples()))
			cmd.Printf("  Sample schedule: %s\n", bold("%s", conf.SampleSchedule()))
			device := conf.SerialDevice()
			if device == "" {
				device = "(simulated chip)"
			}
			cmd.Printf("  Serial device: %s\n", bold("%s", device))
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")

	return cmd
}
