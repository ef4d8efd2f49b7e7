package gpio

import "fmt"

// ControlFileOpenError reports that an export, unexport, direction or value
// file could not be opened, usually because of permissions, a missing driver,
// an invalid line or a line that was never exported.
type ControlFileOpenError struct {
	Path string
	Err  error
}

func (e *ControlFileOpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *ControlFileOpenError) Unwrap() error { return e.Err }

// ShortWriteError reports a write that transferred fewer bytes than requested.
// Err holds the underlying error, if the write returned one (the kernel
// rejecting an already exported line surfaces here).
type ShortWriteError struct {
	Path  string
	Wrote int
	Want  int
	Err   error
}

func (e *ShortWriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("write %s: wrote %d of %d bytes: %v", e.Path, e.Wrote, e.Want, e.Err)
	}
	return fmt.Sprintf("write %s: wrote %d of %d bytes", e.Path, e.Wrote, e.Want)
}

func (e *ShortWriteError) Unwrap() error { return e.Err }

// ReadError reports a value file that could not be read, returned no data,
// or held something other than 0 or 1.
type ReadError struct {
	Path string
	Data string
	Err  error
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("read %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("read %s: unexpected value %q", e.Path, e.Data)
}

func (e *ReadError) Unwrap() error { return e.Err }
