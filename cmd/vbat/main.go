package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/vbat/pkg/client"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/vbat.sock"
	configPath     = "/etc/vbat.json"
)

var apiClient = client.NewClient(unixSocketPath)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: vbat daemon is not running")
		fmt.Fprintf(os.Stderr, "Start it with 'vbat daemon', or point --daemon-socket at the right socket (currently %s).\n", unixSocketPath)
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or restart the daemon with the '--always-allow-non-root-access' flag to grant permissions to your user")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vbat",
		Short: "vbat reads the battery voltage of an ESP32 HUZZAH32 through its calibrated ADC",
		Long: `vbat reads the battery voltage of an Adafruit HUZZAH32 (ESP32 Feather) through
its calibrated ADC.

The daemon owns the board's serial console and the ADC. Every other command talks
to the daemon over a unix socket.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			// These do not talk to a running daemon.
			switch cmd.Name() {
			case "daemon", "version", "install", "uninstall":
				return nil
			}

			if clientVersion, daemonVersion, err := getVersion(); err == nil {
				if daemonVersion != clientVersion {
					logrus.WithFields(logrus.Fields{
						"clientVersion": clientVersion,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. vbat may not work as expected. Restart the daemon after upgrading.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("vbat daemon is too old to report its version. Restart the daemon after upgrading.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path (.json, .yaml or .yml)")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "vbat daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewVoltageCommand(),
		NewStatusCommand(),
		NewCalibrationCommand(),
		NewSampleCommand(),
		NewWatchCommand(),
		NewRouteVrefCommand(),
		NewReferenceVoltageCommand(),
		NewSamplesCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
