// Package gpio provides GPI/GPO access with hardware abstraction.
// The primary implementation drives the kernel sysfs GPIO interface
// (/sys/class/gpio) through an afero filesystem so it can be exercised
// against an in-memory tree. An alternative backend uses the Linux GPIO
// character device. The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"strings"
)

// Defaults for the reference hardware.
const (
	DefaultRoot       = "/sys/class/gpio"
	DefaultBaseOffset = 488
)

// Status is the logical state of a contact.
//
// StatusUnknown is never a hardware reading; it means the state could not be
// determined.
type Status int

const (
	StatusUnknown Status = -1
	StatusClosed  Status = 0
	StatusOpened  Status = 1
)

// String returns "closed", "opened", or "" for anything else.
func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpened:
		return "opened"
	default:
		return ""
	}
}

// StatusText maps a raw status value to its text.
func StatusText(v int) string {
	return Status(v).String()
}

// ParseStatus accepts "closed", "opened" or its alias "open" (any case), or
// "0"/"1".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "closed", "0":
		return StatusClosed, nil
	case "opened", "open", "1":
		return StatusOpened, nil
	}
	return StatusUnknown, fmt.Errorf("invalid status %q", s)
}

// Direction is the IO direction of a line.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// String returns the sysfs token for the direction.
func (d Direction) String() string {
	if d == DirectionIn {
		return "in"
	}
	return "out"
}

// Reader reads GPI states.
type Reader interface {
	// Read returns the state of the 1-based GPI number, or StatusUnknown
	// if any step of the access failed.
	Read(gpi int) Status
}

// Controller is the caller-facing GPIO contract.
//
// Read takes the 1-based GPI number while Write and ConfigureOutput take the
// 0-based pin index: GPI 1 and pin 0 address the same line.
type Controller interface {
	Reader

	// Write drives an output pin: '0' for StatusClosed, '1' otherwise.
	// The pin must have been configured as an output beforehand.
	Write(pin int, value Status) error

	// ConfigureOutput makes pin an output driven to initial.
	ConfigureOutput(pin int, initial Status) error

	// Close releases GPIO resources.
	Close() error
}
