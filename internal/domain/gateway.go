package domain

import (
	"context"
	"errors"
)

// SendResult is the gateway acknowledgement of an accepted message.
type SendResult struct {
	ProviderRef string
}

// MessageGateway sends a single message to a single recipient. dedupeKey is
// the task's stable idempotency key; the gateway forwards it so a retried
// attempt is not interpreted as a new message.
type MessageGateway interface {
	Send(ctx context.Context, recipient, body, dedupeKey string) (*SendResult, error)
}

// SendError is a classified delivery failure. Transient failures (network
// errors, provider 5xx, rate limits) drive the retry edge; permanent failures
// (invalid recipient, rejected payload) fail the task immediately.
type SendError struct {
	Transient bool
	Cause     error
}

func (e *SendError) Error() string {
	if e.Transient {
		return "transient send failure: " + e.Cause.Error()
	}
	return "permanent send failure: " + e.Cause.Error()
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

// TransientSendError wraps a retryable delivery failure.
func TransientSendError(cause error) *SendError {
	return &SendError{Transient: true, Cause: cause}
}

// PermanentSendError wraps a non-retryable delivery failure.
func PermanentSendError(cause error) *SendError {
	return &SendError{Transient: false, Cause: cause}
}

// IsTransientSendError reports whether err is a retryable delivery failure.
func IsTransientSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Transient
}
