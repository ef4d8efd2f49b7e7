package gpio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Sysfs drives GPIO lines through the kernel sysfs interface.
//
// Every read is a complete transaction: export, set direction to in, read
// the value, unexport. Writes touch only the value file; output pins are
// expected to be set up once with ConfigureOutput. All operations are
// serialised because export and unexport share one kernel table.
type Sysfs struct {
	fs   afero.Fs
	root string
	base int
	hold bool
	log  zerolog.Logger

	mu   sync.Mutex
	held map[int]struct{}
}

// SysfsOption configures a Sysfs.
type SysfsOption func(*Sysfs)

// WithFs sets the filesystem the sysfs tree is accessed through.
func WithFs(fs afero.Fs) SysfsOption {
	return func(s *Sysfs) { s.fs = fs }
}

// WithRoot sets the sysfs GPIO directory.
func WithRoot(root string) SysfsOption {
	return func(s *Sysfs) { s.root = root }
}

// WithBaseOffset sets the number added to a pin index to get the kernel line.
func WithBaseOffset(base int) SysfsOption {
	return func(s *Sysfs) { s.base = base }
}

// WithHoldExported keeps input lines exported after the first read instead
// of unexporting after every read. Held lines are released by Close.
func WithHoldExported(hold bool) SysfsOption {
	return func(s *Sysfs) { s.hold = hold }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) SysfsOption {
	return func(s *Sysfs) { s.log = l }
}

// NewSysfs creates a sysfs controller. Without options it targets the host
// filesystem at DefaultRoot with DefaultBaseOffset.
func NewSysfs(opts ...SysfsOption) *Sysfs {
	s := &Sysfs{
		fs:   afero.NewOsFs(),
		root: DefaultRoot,
		base: DefaultBaseOffset,
		log:  log.With().Str("component", "gpio").Logger(),
		held: make(map[int]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Line returns the kernel line number for a 0-based pin index.
func (s *Sysfs) Line(pin int) int {
	return pin + s.base
}

// Export asks the kernel to expose the line for pin.
func (s *Sysfs) Export(pin int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export(pin)
}

// Unexport releases the line for pin.
func (s *Sysfs) Unexport(pin int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unexport(pin)
}

// SetDirection writes "in" or "out" to the line's direction file.
func (s *Sysfs) SetDirection(pin int, dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setDirection(pin, dir)
}

// Read returns the state of the 1-based GPI number, collapsing every failure
// to StatusUnknown.
func (s *Sysfs) Read(gpi int) Status {
	v, err := s.ReadPin(gpi)
	if err != nil {
		s.log.Error().Err(err).Int("gpi", gpi).Msg("failed to read gpio value")
		return StatusUnknown
	}
	return v
}

// ReadPin is Read with the failure cause preserved. A value that was read
// successfully is still discarded if the final unexport fails.
func (s *Sysfs) ReadPin(gpi int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// GPI numbers start at 1, pins at 0.
	pin := gpi - 1

	if err := s.acquire(pin); err != nil {
		return StatusUnknown, err
	}
	// No autodetection: reads always assert input.
	if err := s.setDirection(pin, DirectionIn); err != nil {
		return StatusUnknown, err
	}

	name := s.attrPath(pin, "value")
	f, err := s.fs.Open(name)
	if err != nil {
		return StatusUnknown, &ControlFileOpenError{Path: name, Err: err}
	}
	var buf [3]byte
	n, err := f.Read(buf[:])
	if n == 0 {
		f.Close()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return StatusUnknown, &ReadError{Path: name, Err: err}
	}
	f.Close()

	if err := s.release(pin); err != nil {
		return StatusUnknown, err
	}

	data := string(buf[:n])
	v, err := strconv.Atoi(strings.TrimSpace(data))
	if err != nil || (v != int(StatusClosed) && v != int(StatusOpened)) {
		return StatusUnknown, &ReadError{Path: name, Data: data}
	}
	return Status(v), nil
}

// Write drives pin's value file. It performs no export or direction setup.
func (s *Sysfs) Write(pin int, value Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := []byte{'1'}
	if value == StatusClosed {
		b[0] = '0'
	}
	if err := s.writeFile(s.attrPath(pin, "value"), b); err != nil {
		s.log.Error().Err(err).Int("pin", pin).Msg("failed to write gpio value")
		return err
	}
	return nil
}

// ConfigureOutput exports pin, sets it to out and drives it to initial.
// The line stays exported. A line that is already exported is reused.
func (s *Sysfs) ConfigureOutput(pin int, initial Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.export(pin); err != nil {
		if !isBusy(err) {
			return err
		}
		s.log.Debug().Int("pin", pin).Int("line", s.Line(pin)).Msg("line already exported")
	}
	if err := s.setDirection(pin, DirectionOut); err != nil {
		return err
	}
	b := []byte{'1'}
	if initial == StatusClosed {
		b[0] = '0'
	}
	return s.writeFile(s.attrPath(pin, "value"), b)
}

// Close unexports any lines held by hold-exported mode.
func (s *Sysfs) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins := make([]int, 0, len(s.held))
	for p := range s.held {
		pins = append(pins, p)
	}
	sort.Ints(pins)

	var errs []error
	for _, p := range pins {
		if err := s.unexport(p); err != nil {
			errs = append(errs, err)
		}
		delete(s.held, p)
	}
	return errors.Join(errs...)
}

func (s *Sysfs) acquire(pin int) error {
	if !s.hold {
		return s.export(pin)
	}
	if _, ok := s.held[pin]; ok {
		return nil
	}
	if err := s.export(pin); err != nil {
		return err
	}
	s.held[pin] = struct{}{}
	return nil
}

func (s *Sysfs) release(pin int) error {
	if s.hold {
		return nil
	}
	return s.unexport(pin)
}

func (s *Sysfs) export(pin int) error {
	return s.writeFile(filepath.Join(s.root, "export"), []byte(strconv.Itoa(s.Line(pin))))
}

func (s *Sysfs) unexport(pin int) error {
	return s.writeFile(filepath.Join(s.root, "unexport"), []byte(strconv.Itoa(s.Line(pin))))
}

func (s *Sysfs) setDirection(pin int, dir Direction) error {
	return s.writeFile(s.attrPath(pin, "direction"), []byte(dir.String()))
}

func (s *Sysfs) attrPath(pin int, attr string) string {
	return filepath.Join(s.root, "gpio"+strconv.Itoa(s.Line(pin)), attr)
}

// writeFile writes data in a single call, the way sysfs attributes expect.
func (s *Sysfs) writeFile(name string, data []byte) error {
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return &ControlFileOpenError{Path: name, Err: err}
	}
	defer f.Close()

	n, err := f.Write(data)
	if err != nil || n < len(data) {
		return &ShortWriteError{Path: name, Wrote: n, Want: len(data), Err: err}
	}
	return nil
}
