package main

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sweeney/gpio-sensor/internal/gpio"
)

func init() {
	writeCmd.Flags().BoolVar(&writeOpts.Configure, "configure", false, "export the pin and set it to output before writing")
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
}

var (
	readCmd = &cobra.Command{
		Use:   "read <gpi>",
		Short: "Read the status of a GPI sensor",
		Long:  `Read the status of a GPI sensor. GPI numbers start at 1.`,
		Args:  cobra.ExactArgs(1),
		RunE:  read,
	}

	writeCmd = &cobra.Command{
		Use:   "write [flags] <pin> <closed|opened|0|1>",
		Short: "Drive a GPO pin",
		Long: `Drive a GPO pin. Pin numbers start at 0. Without --configure the pin
must already be exported as an output.`,
		Args:                  cobra.ExactArgs(2),
		RunE:                  write,
		DisableFlagsInUseLine: true,
	}
	writeOpts = struct {
		Configure bool
	}{}
)

// pinReader is implemented by backends that can report why a read failed.
type pinReader interface {
	ReadPin(gpi int) (gpio.Status, error)
}

func read(cmd *cobra.Command, args []string) error {
	gpi, err := strconv.Atoi(args[0])
	if err != nil || gpi < 1 {
		return fmt.Errorf("invalid GPI %q", args[0])
	}

	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	var v gpio.Status
	if pr, ok := ctrl.(pinReader); ok {
		v, err = pr.ReadPin(gpi)
	} else {
		v = ctrl.Read(gpi)
	}
	if v == gpio.StatusUnknown {
		if err != nil {
			return fmt.Errorf("can't read GPI sensor #%d status: %w", gpi, err)
		}
		return fmt.Errorf("can't read GPI sensor #%d status", gpi)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Read %s (value: %d) on GPI #%d\n", v, int(v), gpi)
	return nil
}

func write(cmd *cobra.Command, args []string) error {
	pin, err := strconv.Atoi(args[0])
	if err != nil || pin < 0 {
		return fmt.Errorf("invalid pin %q", args[0])
	}
	v, err := gpio.ParseStatus(args[1])
	if err != nil {
		return err
	}

	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if writeOpts.Configure {
		err = ctrl.ConfigureOutput(pin, v)
	} else {
		err = ctrl.Write(pin, v)
	}
	if err != nil {
		return fmt.Errorf("can't write GPO #%d: %w", pin, err)
	}
	log.Debug().Int("pin", pin).Str("name", cfg.GPOName(pin)).Bool("configure", writeOpts.Configure).Msg("GPO written")

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (value: %d) to GPO #%d\n", v, int(v), pin)
	return nil
}
