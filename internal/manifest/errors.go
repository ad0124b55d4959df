package manifest

import "fmt"

// NotFoundError means a version id exists in neither the local cache nor the
// remote index.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("version %q not found", e.ID)
}

// ParseError wraps a malformed descriptor.
type ParseError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed manifest for version %q: %v", e.ID, e.Err)
}

// Unwrap exposes the underlying decode error.
func (e *ParseError) Unwrap() error { return e.Err }
