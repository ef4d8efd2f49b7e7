//go:build !linux

package gpio

func isBusy(err error) bool {
	return false
}
