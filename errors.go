package prefork

import (
	"errors"
	"fmt"
)

// Common errors returned by prefork operations
var (
	// ErrNotWorker indicates the process was not spawned with the worker
	// marker and has no handoff channel to read from
	ErrNotWorker = errors.New("prefork: process not spawned as worker")

	// ErrNotListenable indicates the resolved service does not satisfy the
	// required capability. The message names the contract because it is
	// the diagnostic a failing worker dies with.
	ErrNotListenable = errors.New("prefork: service does not implement Listenable (Serve(net.Listener) error)")

	// ErrServiceNotFound indicates the loader could not resolve the
	// configured service path
	ErrServiceNotFound = errors.New("prefork: service not registered")

	// ErrNoDescriptor indicates a handoff message arrived without the
	// expected ancillary file descriptor
	ErrNoDescriptor = errors.New("prefork: handoff message carried no descriptor")

	// ErrFrameTooLarge indicates a configuration frame exceeded the
	// accepted size limit
	ErrFrameTooLarge = errors.New("prefork: configuration frame too large")
)

// OpError represents an error from a prefork operation
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Path is the address, file path or service name involved
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("prefork %s: %v", e.Op.String(), e.Err)
	}
	return fmt.Sprintf("prefork %s %q: %v", e.Op.String(), e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from bulk operations such as
// shutdown bookkeeping.
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
