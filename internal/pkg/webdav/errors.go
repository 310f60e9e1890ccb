package webdav

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrInvalidArgument indicates that an argument is invalid
	ErrInvalidArgument = errors.New("webdav: invalid argument")

	// ErrNotFound indicates that the remote path does not exist
	ErrNotFound = errors.New("webdav: not found")

	// ErrUnauthorized indicates that the share token was rejected
	ErrUnauthorized = errors.New("webdav: unauthorized")
)

// Error represents a WebDAV error with request context
type Error struct {
	Op         string // operation that failed (MKCOL, PUT, DELETE)
	Path       string // remote path
	StatusCode int    // HTTP status, 0 when the request never completed
	Err        error  // underlying error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webdav: %s %s failed: HTTP %d", e.Op, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("webdav: %s %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}
