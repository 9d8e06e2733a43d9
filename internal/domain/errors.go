package domain

import (
	"errors"
	"fmt"
)

// ErrNoRecords is returned by queries that match no stored records.
var ErrNoRecords = errors.New("no health records found")

// ValidationError reports a malformed submission or query. It is a client
// fault and maps to HTTP 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StorageError wraps a persistence gateway failure. It maps to HTTP 500 and
// is retryable by the caller; the core performs no automatic retries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
