package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure so callers can decide how far it propagates
type ErrorType string

const (
	// ErrorTypeNotFound means the target profile is absent, private or deleted.
	// Terminal for the stage that hit it.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeSourceUnavailable covers navigation timeouts, network failures and
	// the source refusing automated access. Safe to retry later, never within a run.
	ErrorTypeSourceUnavailable ErrorType = "source_unavailable"
	// ErrorTypePersistenceConflict is a uniqueness violation on insert. The item
	// is skipped, the batch continues.
	ErrorTypePersistenceConflict ErrorType = "persistence_conflict"
	// ErrorTypeInputInvalid fails the whole operation before any stage runs.
	ErrorTypeInputInvalid ErrorType = "input_invalid"
	// ErrorTypeBusy means no browser session became free within the allowed wait.
	ErrorTypeBusy ErrorType = "busy"
	// ErrorTypeStoreBusy is a locked database that may clear on its own.
	ErrorTypeStoreBusy ErrorType = "store_busy"
	// ErrorTypeInternal is anything unexpected.
	ErrorTypeInternal ErrorType = "internal"
)

// Error is a classified error. Err, when set, is the underlying cause.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with no underlying cause
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(err error, t ErrorType, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// TypeOf returns the type of the outermost classified error in err's chain,
// or ErrorTypeInternal when nothing in the chain is classified.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// Is reports whether err carries the given classification
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// Message returns the classified message without the type prefix or cause.
// Unclassified errors return their full text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsRetryable checks if an error type should be retried automatically
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeStoreBusy:
		return true
	default:
		// SourceUnavailable is transient but is surfaced as a stage warning
		// rather than retried inside the same run.
		return false
	}
}
