// Package inbound turns raw webhook payloads into chats and messages: shape
// validation, field normalization, attachment discovery, and the
// orchestrator tying them together.
package inbound

import (
	"errors"
	"fmt"
)

// The orchestrator's hard gates fail with distinguishable errors so the
// entrypoint (HTTP handler, queue consumer) can map them to retry-or-discard
// decisions. All of these are non-retryable: retrying will not fix a
// malformed payload or a misconfigured source.
var (
	// ErrInvalidPayload means the payload does not match the provider's
	// webhook shape.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrSourceNotFound means the webhook referenced an unknown source.
	ErrSourceNotFound = errors.New("source not found")
	// ErrNoDepartment means the source has no active department to route
	// the chat to.
	ErrNoDepartment = errors.New("source has no active department")
)

// MissingFieldError reports a required field absent from the payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("payload missing required field %q", e.Field)
}

// IsNonRetryable reports whether err is one of the pipeline's hard gate
// failures. Queue consumers drop such jobs instead of retrying.
func IsNonRetryable(err error) bool {
	var missing *MissingFieldError
	return errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrSourceNotFound) ||
		errors.Is(err, ErrNoDepartment) ||
		errors.As(err, &missing)
}
