// Package errors provides the typed error taxonomy shared by the repository
// layers. Validation and registration failures are surfaced as typed errors
// so callers can branch on them; missing records are represented as nil
// results, never as errors; driver failures are wrapped with operation
// context and passed through unchanged.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an error for handling and response mapping.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeInternal   ErrorType = "INTERNAL"
	ErrorTypeExternal   ErrorType = "EXTERNAL"
)

// Error is the single error type used across the repository layers.
type Error struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Operation string    `json:"operation,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Cause     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap lets errors.Is and errors.As reach the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation creates a validation error. Validation errors are raised
// synchronously, before any I/O is attempted.
func Validation(code, format string, args ...any) *Error {
	return &Error{Type: ErrorTypeValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error. Used for the one-time feature-entity
// registration guard; fatal at startup, never retried.
func Conflict(code, format string, args ...any) *Error {
	return &Error{Type: ErrorTypeConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(code, format string, args ...any) *Error {
	return &Error{Type: ErrorTypeInternal, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates a driver or downstream error with the failing operation.
// Existing *Error values keep their type and code; foreign errors become
// EXTERNAL so retry policy stays with the caller or the driver.
func Wrap(err error, operation string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		if typed.Operation == "" {
			typed.Operation = operation
		}
		return typed
	}
	return &Error{
		Type:      ErrorTypeExternal,
		Code:      "STORE_ERROR",
		Message:   err.Error(),
		Operation: operation,
		Cause:     err,
	}
}

// WithResource tags the error with the resource (feature entity) it concerns.
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

// IsType checks whether an error carries the given classification.
func IsType(err error, errType ErrorType) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type == errType
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConflict reports whether err is a registration conflict.
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}
