package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed request for the mutation rollback path.
type ErrorKind int

const (
	// KindNetwork covers timeouts and transport failures. The action is
	// retryable by the user re-issuing it.
	KindNetwork ErrorKind = iota
	// KindRejected covers 4xx/5xx responses carrying a server message.
	// Not retried automatically.
	KindRejected
)

// Error is the failure surfaced to the mutation coordinator.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindNetwork {
		return fmt.Sprintf("network failure: %v", e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("rejected by server (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("rejected by server (status %d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindNetwork
}

// IsRejected reports whether err is a server rejection.
func IsRejected(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindRejected
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

func rejectedError(status int, message string) *Error {
	return &Error{Kind: KindRejected, Status: status, Message: message}
}
