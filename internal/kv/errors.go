package kv

import (
	"errors"
	"fmt"
)

// Code categorizes store errors.
type Code string

const (
	// CodeNotFound indicates the key has no history.
	CodeNotFound Code = "NOT_FOUND"

	// CodeSingletonViolation indicates a singleton read found zero or
	// several records.
	CodeSingletonViolation Code = "SINGLETON_VIOLATION"

	// CodeDecryptionFailure indicates a record could not be decrypted.
	CodeDecryptionFailure Code = "DECRYPTION_FAILURE"

	// CodeEncryptionFailure indicates a value could not be encrypted.
	CodeEncryptionFailure Code = "ENCRYPTION_FAILURE"

	// CodeSerializationFailure indicates a snapshot or operation payload
	// could not be encoded or decoded.
	CodeSerializationFailure Code = "SERIALIZATION_FAILURE"

	// CodeNoRelaysConfigured indicates there is no transport to use.
	CodeNoRelaysConfigured Code = "NO_RELAYS_CONFIGURED"

	// CodeNoEventsToAggregate indicates compaction found nothing to absorb.
	CodeNoEventsToAggregate Code = "NO_EVENTS_TO_AGGREGATE"

	// CodeEventStreamError indicates an operation payload failed to parse
	// during a fold.
	CodeEventStreamError Code = "EVENT_STREAM_ERROR"

	// CodeTransportError indicates a publish or fetch failed.
	CodeTransportError Code = "TRANSPORT_ERROR"
)

// Error is returned by every DB operation.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Key is the affected key, when there is one.
	Key string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "key not found"}
	ErrSingletonViolation   = &Error{Code: CodeSingletonViolation, Message: "must be a singleton value"}
	ErrDecryptionFailure    = &Error{Code: CodeDecryptionFailure, Message: "decryption failed"}
	ErrEncryptionFailure    = &Error{Code: CodeEncryptionFailure, Message: "encryption failed"}
	ErrSerializationFailure = &Error{Code: CodeSerializationFailure, Message: "serialization failed"}
	ErrNoRelaysConfigured   = &Error{Code: CodeNoRelaysConfigured, Message: "no relays configured"}
	ErrNoEventsToAggregate  = &Error{Code: CodeNoEventsToAggregate, Message: "no events to aggregate"}
	ErrEventStream          = &Error{Code: CodeEventStreamError, Message: "event stream error"}
	ErrTransport            = &Error{Code: CodeTransportError, Message: "transport error"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key=%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

func newError(code Code, key, message string, err error) *Error {
	return &Error{Code: code, Key: key, Message: message, Err: err}
}
