// Package errors provides standardized error handling patterns for framering components.
// It includes error classification, the container sentinel errors, and helper functions
// for consistent error wrapping and classification across the module.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors such as context expiry
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents contract violations and invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors such as allocation failure
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Component lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrAlreadyStopped = errors.New("component already stopped")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Container contract errors
	ErrIndexOutOfRange        = errors.New("index out of range")
	ErrCapacityBelowLength    = errors.New("capacity below length")
	ErrDisposed               = errors.New("container disposed")
	ErrAlreadyDisposed        = errors.New("container already disposed")
	ErrConcurrentModification = errors.New("container modified during enumeration")
	ErrManagedType            = errors.New("element type holds garbage-collected pointers")

	// Allocator errors
	ErrAllocationFailed = errors.New("allocation failed")
	ErrUnknownHandle    = errors.New("unknown allocator handle")
	ErrInvalidAlignment = errors.New("alignment must be a power of two")

	// Configuration errors
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingConfig  = errors.New("missing required configuration")
	ErrConfigNotFound = errors.New("configuration not found")

	// Resource errors
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrQueueFull         = errors.New("queue full")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrQueueFull) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "temporary", "busy"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	if errors.Is(err, ErrAllocationFailed) ||
		errors.Is(err, ErrResourceExhausted) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"fatal", "out of memory", "cannot allocate memory"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsInvalid checks if an error is a contract violation or invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrIndexOutOfRange) ||
		errors.Is(err, ErrCapacityBelowLength) ||
		errors.Is(err, ErrDisposed) ||
		errors.Is(err, ErrAlreadyDisposed) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrManagedType) ||
		errors.Is(err, ErrUnknownHandle) ||
		errors.Is(err, ErrInvalidAlignment)
}

// Classify returns the error class for an error.
// Unknown errors are treated as fatal: nothing in this module retries.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}
	return ErrorFatal
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Contract panics with an invalid-class error wrapping sentinel. Containers use it
// for programmer errors, which are never returned.
func Contract(sentinel error, component, method, detail string) {
	panic(WrapInvalid(sentinel, component, method, detail))
}

// Fatal panics with a fatal-class error. Used when an operation without an error
// return cannot complete, such as growth whose allocation failed.
func Fatal(err error, component, method, action string) {
	panic(WrapFatal(err, component, method, action))
}

// Recovered converts a recovered panic value back into an error, or nil if the
// value is not an error produced by Contract or Fatal.
func Recovered(r any) error {
	err, ok := r.(error)
	if !ok {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}
