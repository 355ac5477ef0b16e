package failure

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindLedger           Kind = "ledger"
	KindTimeout          Kind = "timeout"
	KindStorage          Kind = "storage"
	KindMonitorTransient Kind = "monitor_transient"
	KindInternal         Kind = "internal"
)

// Error is the structured error returned by every public operation.
type Error struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil && e.cause.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Cause() error {
	return e.cause
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Storage(err error, message string) *Error {
	return &Error{Kind: KindStorage, Message: message, cause: err}
}

// Ledger wraps a submission error. Faults whose cause is a confirmation
// timeout keep the distinguishable timeout kind.
func Ledger(err error) *Error {
	kind := KindLedger
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: err.Error(), cause: err}
}

func MonitorTransient(err error, height uint64) *Error {
	return &Error{
		Kind:    KindMonitorTransient,
		Message: fmt.Sprintf("could not process height %d", height),
		cause:   err,
	}
}

// From converts any error into a structured one; unknown errors become internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: err.Error(), cause: err}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
