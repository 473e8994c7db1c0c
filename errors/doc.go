// Package errors provides standardized error handling patterns for framering components.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, such as an expired context), Invalid (a broken contract
// or bad configuration), and Fatal (unrecoverable, such as an allocator that
// cannot supply memory).
//
// Containers in this module have two kinds of failure. Programmer errors, for
// example reading past the logical length or using a disposed buffer, are
// panics carrying an Invalid-class error that wraps one of the sentinel
// variables below. Resource failures from constructors are returned as
// Fatal-class errors; resource failures from operations without an error
// return (growth inside Add) panic with the same Fatal-class error.
//
// # Quick Start
//
// Return or wrap a sentinel with component context:
//
//	h, err := a.Allocate(size, align)
//	if err != nil {
//	    return nil, errors.WrapFatal(err, "CircularBuffer", "New", "backing allocation")
//	}
//
// Classify what comes back:
//
//	if errors.IsFatal(err) {
//	    slog.Error("Allocation failed", "error", err)
//	    os.Exit(1)
//	}
//
// Recover a contract panic in a test harness or a process boundary:
//
//	defer func() {
//	    if err := errors.Recovered(recover()); err != nil {
//	        slog.Error("Contract violation", "error", err)
//	    }
//	}()
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// Contract and Fatal are panicking shorthands for WrapInvalid and WrapFatal.
//
// # Standard Error Variables
//
// Container contract errors:
//
//	ErrIndexOutOfRange        // Get, Set or ElementAt outside [0, Len)
//	ErrCapacityBelowLength    // SetCapacity below the current length
//	ErrDisposed               // operation on a disposed container
//	ErrAlreadyDisposed        // second Dispose or DisposeAfter
//	ErrConcurrentModification // enumerator advanced after a mutation
//	ErrManagedType            // element type contains Go pointers
//
// Allocator errors:
//
//	ErrAllocationFailed // allocator could not supply memory
//	ErrUnknownHandle    // Free of a handle the allocator does not own
//	ErrInvalidAlignment // alignment not a power of two
//
// Lifecycle, configuration and resource errors mirror the component lifecycle
// of the scheduler and worker pool.
//
// # Integration with Standard Library
//
// ClassifiedError implements Unwrap, so errors.Is and errors.As from the
// standard library see through every wrapper in this package:
//
//	if errors.Is(err, errors.ErrAllocationFailed) { ... }
//
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    fmt.Println(ce.Component, ce.Operation, ce.Class)
//	}
//
// # Thread Safety
//
// All functions are safe for concurrent use. Error values are immutable.
package errors
