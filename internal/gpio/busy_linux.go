//go:build linux

package gpio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isBusy reports whether the kernel refused an export because the line is
// already exported.
func isBusy(err error) bool {
	return errors.Is(err, unix.EBUSY)
}
