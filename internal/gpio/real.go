//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"
)

// Cdev drives GPIO lines through the Linux GPIO character device.
// Line offsets are chip-relative, so no base offset applies.
//
// Inputs are requested and released on every read. Outputs are requested
// once and held until Close, since the character device does not keep an
// output value after the line is released.
type Cdev struct {
	chip *gpiocdev.Chip
	log  zerolog.Logger

	mu      sync.Mutex
	outputs map[int]*gpiocdev.Line
}

// NewCdev opens the named GPIO chip, e.g. "gpiochip0".
func NewCdev(chipName string) (*Cdev, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("gpio-sensor"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Cdev{
		chip:    chip,
		log:     log.With().Str("component", "gpio").Logger(),
		outputs: make(map[int]*gpiocdev.Line),
	}, nil
}

// Read returns the state of the 1-based GPI number.
func (c *Cdev) Read(gpi int) Status {
	v, err := c.ReadPin(gpi)
	if err != nil {
		c.log.Error().Err(err).Int("gpi", gpi).Msg("failed to read gpio value")
		return StatusUnknown
	}
	return v
}

// ReadPin is Read with the failure cause preserved.
func (c *Cdev) ReadPin(gpi int) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pin := gpi - 1
	line, err := c.chip.RequestLine(pin, gpiocdev.AsInput)
	if err != nil {
		return StatusUnknown, fmt.Errorf("request GPI %d: %w", gpi, err)
	}
	v, err := line.Value()
	if err != nil {
		line.Close()
		return StatusUnknown, fmt.Errorf("read GPI %d: %w", gpi, err)
	}
	if err := line.Close(); err != nil {
		return StatusUnknown, fmt.Errorf("release GPI %d: %w", gpi, err)
	}
	if v != 0 {
		return StatusOpened, nil
	}
	return StatusClosed, nil
}

// Write drives an output pin previously set up by ConfigureOutput.
func (c *Cdev) Write(pin int, value Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.outputs[pin]
	if !ok {
		err := fmt.Errorf("pin %d is not configured as an output", pin)
		c.log.Error().Err(err).Int("pin", pin).Msg("failed to write gpio value")
		return err
	}
	if err := line.SetValue(rawValue(value)); err != nil {
		c.log.Error().Err(err).Int("pin", pin).Msg("failed to write gpio value")
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// ConfigureOutput requests pin as an output driven to initial.
func (c *Cdev) ConfigureOutput(pin int, initial Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if line, ok := c.outputs[pin]; ok {
		return line.SetValue(rawValue(initial))
	}
	line, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(rawValue(initial)))
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}
	c.outputs[pin] = line
	return nil
}

// Close releases held output lines and the chip.
func (c *Cdev) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	errs := []error{closeLines(c.outputs)}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// closeLines closes and forgets every line in lines, in pin order.
func closeLines[L io.Closer](lines map[int]L) error {
	pins := make([]int, 0, len(lines))
	for p := range lines {
		pins = append(pins, p)
	}
	sort.Ints(pins)

	var errs []error
	for _, p := range pins {
		if err := lines[p].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", p, err))
		}
		delete(lines, p)
	}
	return errors.Join(errs...)
}

func rawValue(s Status) int {
	if s == StatusClosed {
		return 0
	}
	return 1
}
