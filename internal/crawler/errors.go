package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match them with errors.Is.
var (
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")

	// ErrParse matches every *ParseError.
	ErrParse = errors.New("parse error")

	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidSeed is returned by Run when the seed is not an absolute
	// http:// or https:// URL.
	ErrInvalidSeed = errors.New("seed must be an absolute http:// or https:// URL")

	// ErrSeedUnreachable is returned by Run when the seed page itself cannot
	// be fetched. The seed link stays stored.
	ErrSeedUnreachable = errors.New("seed page could not be fetched")
)

// TransportError reports a failed fetch: a network failure, a timeout or a
// response with a non-2xx status. It is isolated to the node being fetched.
type TransportError struct {
	URL string

	// StatusCode is set when the server answered with a non-success status.
	StatusCode int

	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying network error, if any.
func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ParseError reports a page body that could not be read as a document.
// The page is treated as having no links.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// PersistenceError reports a link the store refused to insert. Without an
// id the link cannot parent its own children, so Run stops the traversal.
type PersistenceError struct {
	URL      string
	Depth    int
	ParentID int64
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s (depth %d, parent %d): %v", e.URL, e.Depth, e.ParentID, e.Err)
}

// Unwrap returns the store error.
func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
