package tunnel

import (
	"errors"
	"syscall"
)

var (
	// ErrEndOfStream is reported when an interface read returns no data.
	ErrEndOfStream = errors.New("end of stream")

	ErrNoInterfaces = errors.New("no interfaces to capture")
	ErrNotPublished = errors.New("dump publishing is disabled")
)

// OpError is a fatal loop error: the operation, the interface it was
// applied to and the cause.
type OpError struct {
	Op   string
	Name string
	Err  error
}

func (e *OpError) Error() string {
	if e.Name == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Errno returns the OS error code, or 0 if the failure carries none.
func (e *OpError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}

func temporary(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}
