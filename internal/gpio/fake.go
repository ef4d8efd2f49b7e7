package gpio

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FakeController is a test double that returns scripted GPI values and
// records writes.
type FakeController struct {
	mu sync.Mutex

	// Samples maps a GPI number to scripted statuses. Each call to Read
	// consumes the next one; the last is repeated once exhausted. A GPI
	// with no samples reads as StatusUnknown.
	Samples map[int][]Status

	// Writes records every successful Write in order.
	Writes []Write

	// Outputs holds the last value driven on each configured output pin.
	Outputs map[int]Status

	// WriteError, if set, will be returned by Write and ConfigureOutput.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool

	index map[int]int
}

// Write is a recorded output write.
type Write struct {
	Pin   int
	Value Status
}

// NewFakeController creates a FakeController with the given samples.
func NewFakeController(samples map[int][]Status) *FakeController {
	if samples == nil {
		samples = make(map[int][]Status)
	}
	return &FakeController{
		Samples: samples,
		Outputs: make(map[int]Status),
		index:   make(map[int]int),
	}
}

// Read returns the next scripted sample for gpi.
func (f *FakeController) Read(gpi int) Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	samples := f.Samples[gpi]
	if len(samples) == 0 {
		return StatusUnknown
	}
	i := f.index[gpi]
	if i < len(samples)-1 {
		f.index[gpi] = i + 1
	}
	return samples[i]
}

// Write records the value for pin. Pins never passed to ConfigureOutput
// are rejected, mirroring a value file that does not exist.
func (f *FakeController) Write(pin int, value Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	if _, ok := f.Outputs[pin]; !ok {
		return fmt.Errorf("pin %d is not configured as an output", pin)
	}
	f.Outputs[pin] = value
	f.Writes = append(f.Writes, Write{Pin: pin, Value: value})
	return nil
}

// ConfigureOutput marks pin as an output driven to initial.
func (f *FakeController) ConfigureOutput(pin int, initial Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	f.Outputs[pin] = initial
	return nil
}

// Close marks the controller as closed.
func (f *FakeController) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// WriteCount returns the number of recorded writes.
func (f *FakeController) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Writes)
}

// Reset rewinds every sample sequence and clears recorded writes.
func (f *FakeController) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = make(map[int]int)
	f.Writes = nil
	f.Closed = false
}

// NewFakeSysfs builds an in-memory sysfs GPIO tree under root with export
// and unexport control files and, for each kernel line, empty direction and
// value files. Unlike the kernel, exporting does not create the line
// directory; the tree is static.
func NewFakeSysfs(root string, lines ...int) (afero.Fs, error) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{"export", "unexport"} {
		if err := afero.WriteFile(fs, filepath.Join(root, name), nil, 0o644); err != nil {
			return nil, err
		}
	}
	for _, line := range lines {
		dir := filepath.Join(root, fmt.Sprintf("gpio%d", line))
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		for _, attr := range []string{"direction", "value"} {
			if err := afero.WriteFile(fs, filepath.Join(dir, attr), nil, 0o644); err != nil {
				return nil, err
			}
		}
	}
	return fs, nil
}

// SetFakeValue stores raw as the content of a fake line's value file.
func SetFakeValue(fs afero.Fs, root string, line int, raw string) error {
	name := filepath.Join(root, fmt.Sprintf("gpio%d", line), "value")
	if _, err := fs.Stat(name); err != nil {
		return errors.New("gpio: no such fake line")
	}
	return afero.WriteFile(fs, name, []byte(raw), 0o644)
}
