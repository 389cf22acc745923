package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed or rejected input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents a missing user, request, or friendship
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents a duplicate request or friendship
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeTransient represents graph-store connectivity/timeout errors
	ErrorTypeTransient ErrorType = "transient"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// NewValidation creates a validation error
func NewValidation(message string) *BaseError {
	return NewBaseError(ErrorTypeValidation, message, nil)
}

// NewNotFound creates a not-found error
func NewNotFound(message string) *BaseError {
	return NewBaseError(ErrorTypeNotFound, message, nil)
}

// NewConflict creates a conflict error
func NewConflict(message string) *BaseError {
	return NewBaseError(ErrorTypeConflict, message, nil)
}

// NewTransient wraps a graph-store connectivity or timeout failure
func NewTransient(message string, err error) *BaseError {
	return NewBaseError(ErrorTypeTransient, message, err)
}

// IsType checks if an error (or anything it wraps) is of a specific type
func IsType(err error, errType ErrorType) bool {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Type == errType
	}
	return false
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool { return IsType(err, ErrorTypeConflict) }

// IsRetryable checks if an error is safe to retry blindly.
// Only transient store failures on read paths qualify; write paths must
// re-check state first so a retry cannot create duplicate edges.
func IsRetryable(err error) bool {
	return IsType(err, ErrorTypeTransient)
}
