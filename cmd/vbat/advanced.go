package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/vbat/pkg/adc"
)

func NewRouteVrefCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "route-vref [gpio]",
		Short:   "Route the ADC2 reference voltage to a GPIO for measurement",
		GroupID: gAdvanced,
		Long: fmt.Sprintf(`Route the internal ADC2 reference voltage to a GPIO.

Measure the pin against GND with a multimeter and store the value with
'vbat reference-voltage <mV>'. It is used on chips without eFuse calibration.

Only GPIO %v can carry the reference. Wi-Fi and Bluetooth share ADC2 and must stay
off until the board is reset. Without an argument you pick the GPIO interactively.`, adc.VrefGPIOs),
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			interactive := term.IsTerminal(int(os.Stdin.Fd()))

			var gpio int
			var err error
			if len(args) == 1 {
				gpio, err = parseIntArg(args, "gpio")
				if err != nil {
					return err
				}
			} else {
				if !interactive {
					return fmt.Errorf("gpio is required when not running in a terminal")
				}
				gpio, err = selectInt("GPIO to route the reference to", adc.VrefGPIOs)
				if err != nil {
					return fmt.Errorf("no GPIO selected: %v", err)
				}
			}

			if !adc.IsVrefGPIO(gpio) {
				return fmt.Errorf("GPIO%d cannot carry the ADC2 reference, use one of %v", gpio, adc.VrefGPIOs)
			}

			if !yes {
				if !interactive {
					return fmt.Errorf("refusing to route the reference without confirmation, pass --yes")
				}
				ok, err := confirm(fmt.Sprintf("Drive GPIO%d with the ADC reference? Wi-Fi and Bluetooth must be off", gpio))
				if err != nil {
					return err
				}
				if !ok {
					logrus.Info("aborted")
					return nil
				}
			}

			ret, err := apiClient.RouteVref(gpio)
			if err != nil {
				return fmt.Errorf("failed to route reference voltage: %v", err)
			}
			logDaemonResponse(ret)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func NewReferenceVoltageCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reference-voltage [mV]",
		Short:   "Set the measured ADC reference voltage",
		GroupID: gAdvanced,
		Long: `Set the ADC reference voltage in millivolts (500 to 1500).

Use the value measured after 'vbat route-vref'. It replaces the 1100 mV default on
chips without eFuse calibration. Chips with eFuse calibration keep using it.`,
		RunE: func(_ *cobra.Command, args []string) error {
			mv, err := parseIntArg(args, "reference voltage")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetReferenceVoltage(mv)
			if err != nil {
				return fmt.Errorf("failed to set reference voltage: %v", err)
			}
			logDaemonResponse(ret)

			logrus.Infof("successfully set reference voltage to %d mV", mv)

			return nil
		},
	}
}

func NewSamplesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "samples [n]",
		Short:   "Set how many ADC conversions each reading averages",
		GroupID: gAdvanced,
		Long: `Set how many ADC conversions each reading averages (1 to 64).

Averaging n conversions reduces uncorrelated noise by about the square root of n.`,
		RunE: func(_ *cobra.Command, args []string) error {
			n, err := parseIntArg(args, "samples")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetSamples(n)
			if err != nil {
				return fmt.Errorf("failed to set samples: %v", err)
			}
			logDaemonResponse(ret)

			logrus.Infof("successfully set samples per reading to %d", n)

			return nil
		},
	}
}
