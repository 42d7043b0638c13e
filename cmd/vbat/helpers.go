package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/version"
)

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

// getVersion returns the client and daemon versions.
func getVersion() (string, string, error) {
	daemonVersion, err := apiClient.GetVersion()
	if err != nil {
		return version.Version, "", err
	}
	return version.Version, daemonVersion, nil
}

// confirm asks a yes/no question. A closed or interrupted prompt counts
// as no.
func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return false, nil
	}
	return false, err
}

// selectInt lets the user pick one of items.
func selectInt(label string, items []int) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return items[i], nil
}

func logDaemonResponse(ret string) {
	if ret != "" {
		logrus.Infof("daemon responded: %s", ret)
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

// voltageText colours a battery voltage by LiPo state of charge.
func voltageText(v float64) string {
	switch {
	case v >= 3.9:
		return color.New(color.Bold, color.FgGreen).Sprintf("%.3f V", v)
	case v >= 3.5:
		return bold("%.3f V", v)
	default:
		return color.New(color.Bold, color.FgRed).Sprintf("%.3f V", v)
	}
}
