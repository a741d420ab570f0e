package download

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchActive is returned by Manager.Start while another batch runs.
	ErrBatchActive = errors.New("a download batch is already running")

	// ErrCancelled signals a user-requested cancellation. It is never
	// reported as an item failure.
	ErrCancelled = errors.New("download cancelled")

	// ErrNoItems is returned when a batch has nothing to download.
	ErrNoItems = errors.New("no items to download")

	// errStalled is wrapped when no data arrived within the download timeout.
	errStalled = errors.New("transfer stalled")
)

// TransportError is a connection, timeout or HTTP status failure of one item.
type TransportError struct {
	// Address is the source URL.
	Address string

	// StatusCode is set when the server answered with an error status.
	StatusCode int

	// Err is the underlying error, nil for status failures.
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("download %s: HTTP status %d", e.Address, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.Address, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// FilesystemError is a failure to create, write or remove a destination file.
type FilesystemError struct {
	Path string
	Op   string
	Err  error
}

// Error implements error.
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FilesystemError) Unwrap() error {
	return e.Err
}
