package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no image has the requested identifier.
var ErrNotFound = errors.New("image not found")

// ValidationError reports an upload rejected before anything was recorded.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StorageError wraps a failed durable read or write.
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

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is or wraps a *StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// DetectorError wraps a failure of the detection adapter, including output
// that does not satisfy the detection invariants.
type DetectorError struct {
	Err error
}

func (e *DetectorError) Error() string {
	return "detector: " + e.Err.Error()
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// IsDetector reports whether err is or wraps a *DetectorError.
func IsDetector(err error) bool {
	var de *DetectorError
	return errors.As(err, &de)
}
