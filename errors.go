package cachesim

import (
	"errors"
	"fmt"
)

// Error represents a structured simulator error with component/cycle context.
type Error struct {
	Op        string    // Operation that failed (e.g., "LOAD_TRACE", "ACQUIRE_BUS")
	Component string    // Component that raised the error (e.g., "bus", "cache[1]")
	Cycle     int64     // Simulation cycle at the time of the error (-1 if not applicable)
	Code      ErrorCode // High-level error category
	Msg       string    // Human-readable message
	Inner     error     // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("component=%s", e.Component))
	}
	if e.Cycle >= 0 {
		parts = append(parts, fmt.Sprintf("cycle=%d", e.Cycle))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("cachesim: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("cachesim: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support comparing error codes.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents a high-level error category. Per spec.md §7, codes
// split into input errors (reported once, non-zero exit) and invariant
// violations (programmer errors, simulator aborts with a diagnostic).
type ErrorCode string

const (
	// Input errors.
	ErrCodeBadTrace         ErrorCode = "malformed trace line"
	ErrCodeUnknownProtocol  ErrorCode = "unknown protocol"
	ErrCodeMissingFile      ErrorCode = "missing trace file"
	ErrCodeInvalidParameter ErrorCode = "invalid configuration parameter"

	// Invariant violations.
	ErrCodeQueueOrderViolation    ErrorCode = "DEQ delivered a message in the past"
	ErrCodeProtocolStateViolation ErrorCode = "impossible (controller state, message) pair"
	ErrCodeBusInvariantViolation  ErrorCode = "bus arbiter invariant violated"
	ErrCodeCapacityViolation      ErrorCode = "cache set capacity invariant violated"
)

// IsInvariantViolation reports whether code denotes a programmer-error class
// of failure (aborts the run) rather than an input error (returned normally).
func (c ErrorCode) IsInvariantViolation() bool {
	switch c {
	case ErrCodeQueueOrderViolation, ErrCodeProtocolStateViolation,
		ErrCodeBusInvariantViolation, ErrCodeCapacityViolation:
		return true
	default:
		return false
	}
}

// NewError creates a new structured error with no component/cycle context.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg, Cycle: -1}
}

// NewComponentError creates a new error attributed to a specific component
// at a specific simulation cycle.
func NewComponentError(op, component string, cycle int64, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Component: component, Cycle: cycle, Code: code, Msg: msg}
}

// WrapError wraps an existing error with simulator context.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if se, ok := inner.(*Error); ok {
		return &Error{
			Op:        op,
			Component: se.Component,
			Cycle:     se.Cycle,
			Code:      se.Code,
			Msg:       se.Msg,
			Inner:     se.Inner,
		}
	}
	return &Error{Op: op, Code: ErrCodeBadTrace, Msg: inner.Error(), Inner: inner, Cycle: -1}
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Panic raises an invariant violation as a panic carrying a *Error payload;
// per spec.md §7 invariant violations are programmer errors with no retry.
// internal/driver does not use Panic: it raises and recovers its own
// *driver.ViolationError.
func Panic(op, component string, cycle int64, code ErrorCode, msg string) {
	panic(NewComponentError(op, component, cycle, code, msg))
}

// Recover turns a panic carrying a *Error (raised by Panic) into a returned
// error. Any other panic value is re-raised. It must be called directly by
// a deferred function call to take effect.
func Recover(target *error) {
	if r := recover(); r != nil {
		if se, ok := r.(*Error); ok {
			*target = se
			return
		}
		panic(r)
	}
}
