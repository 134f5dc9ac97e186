package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies transport failures without exposing vendor shapes.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindTimeout    ErrorKind = "timeout"
	KindRemote     ErrorKind = "remote"
	KindBadRequest ErrorKind = "bad_request"
)

// Error is the normalized transport error. The orchestrator only ever sees
// this shape, regardless of which remote service produced the failure.
type Error struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %s", e.Kind, e.Message)
}

// Normalize converts an arbitrary error from the HTTP layer into *Error.
// Already-normalized errors pass through unchanged.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: err.Error(), Retryable: true}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return &Error{Kind: KindNetwork, Message: err.Error(), Retryable: true}
	}
	return &Error{Kind: KindRemote, Message: err.Error()}
}
