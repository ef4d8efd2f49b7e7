//go:build !linux

package gpio

import "errors"

// Cdev is not available on non-Linux platforms.
type Cdev struct{}

// NewCdev returns an error on non-Linux platforms.
func NewCdev(chipName string) (*Cdev, error) {
	return nil, errors.New("gpio: character device not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (c *Cdev) Read(gpi int) Status {
	return StatusUnknown
}

// Write is not implemented on non-Linux platforms.
func (c *Cdev) Write(pin int, value Status) error {
	return errors.New("gpio: not supported")
}

// ConfigureOutput is not implemented on non-Linux platforms.
func (c *Cdev) ConfigureOutput(pin int, initial Status) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (c *Cdev) Close() error {
	return nil
}
