package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/vbat/pkg/config"
	daemonutils "github.com/charlie0129/vbat/pkg/utils/daemon"
)

var gInstallation = "Installation:"

func init() {
	commandGroups = append(commandGroups, gInstallation)
}

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false
	serialDevice := ""

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install vbat daemon as a systemd service",
		GroupID: gInstallation,
		Long: `Install vbat daemon as a systemd service (system-wide).

This makes vbat run in the background and start on boot. You must run this command as root.

By default, only root is allowed to access the vbat daemon. Use --allow-non-root-access to let
other users read the battery without sudo.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			conf.SetAllowNonRootAccess(allowNonRootAccess)
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the vbat daemon.")
			} else {
				logrus.Info("only root user is allowed to access the vbat daemon.")
			}
			if serialDevice != "" {
				conf.SetSerialDevice(serialDevice)
			}

			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			err = daemonutils.Install(configPath, unixSocketPath)
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("systemd will use the current binary (%s) at startup, so do not move it. If it is moved or deleted, run `vbat install' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access vbat daemon.")
	cmd.Flags().StringVar(&serialDevice, "serial-device", "", "serial console of the board, e.g. /dev/ttyUSB0")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall vbat daemon",
		GroupID: gInstallation,
		Long: `Stop vbat daemon and remove its systemd service.

You must run this command as root.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			logrus.Infof("successfully uninstalled vbat")
			return nil
		},
	}
}
