// Package domain defines core types, interfaces, and errors for scheduled queries.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates insufficient permissions. The lifecycle
// controller reports a mutating event fired without edit rights with it.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// InvalidScheduleError indicates a schedule descriptor that cannot be
// evaluated: a malformed cron expression or a non-positive interval.
type InvalidScheduleError struct {
	Schedule Schedule
	Reason   string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule %s: %s", e.Schedule, e.Reason)
}

// PersistenceError wraps a failed save or delete issued against the backing store.
type PersistenceError struct {
	Op  string // "save" or "delete"
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidSchedule creates an InvalidScheduleError with a formatted reason.
func ErrInvalidSchedule(s Schedule, format string, args ...interface{}) *InvalidScheduleError {
	return &InvalidScheduleError{Schedule: s, Reason: fmt.Sprintf(format, args...)}
}
