// Command gpio-sensor monitors GPI contact sensors over sysfs GPIO, publishes
// their state changes to MQTT, and drives GPO pins on request.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sweeney/gpio-sensor/internal/config"
	"github.com/sweeney/gpio-sensor/internal/gpio"
	"github.com/sweeney/gpio-sensor/internal/logging"
)

// appFs is the filesystem the config file is read from.
var appFs = afero.NewOsFs()

var (
	rootOpts = struct {
		ConfigPath string
		Verbose    bool
	}{}

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gpio-sensor",
	Short: "gpio-sensor monitors contact sensors on GPIO inputs",
	Long: `gpio-sensor polls contact sensors wired to GPIO inputs, reports their
state changes on an MQTT bus, and drives GPIO outputs on request.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.ConfigPath, "config", "c", config.DefaultPath, "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&rootOpts.Verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gpio-sensor: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(appFs, rootOpts.ConfigPath)
	if err != nil {
		return err
	}
	logging.Setup(rootOpts.Verbose || c.Verbose)
	cfg = c
	return nil
}

// openController returns the GPIO backend selected by the config.
func openController(c *config.Config) (gpio.Controller, error) {
	switch c.GPIO.Backend {
	case config.BackendCdev:
		cdev, err := gpio.NewCdev(c.GPIO.Chip)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", c.GPIO.Chip, err)
		}
		return cdev, nil
	default:
		return gpio.NewSysfs(
			gpio.WithRoot(c.GPIO.Root),
			gpio.WithBaseOffset(c.GPIO.BaseOffset),
			gpio.WithHoldExported(c.GPIO.HoldExported),
		), nil
	}
}

// newController is replaced in tests.
var newController = openController
