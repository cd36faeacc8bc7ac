// Package messenger defines the per-channel provider capability used for
// outbound sends and webhook shape validation. The variants live in
// subpackages; the factory subpackage picks one for a source.
package messenger

import (
	"context"
	"fmt"
)

// Provider is the per-channel adapter. ValidateWebhook is a cheap
// structural check on the payload shape; cryptographic authenticity is the
// webhook entrypoint's job and happens before the core is invoked.
type Provider interface {
	// SendMessage delivers text to the external user through the channel
	// API. Options carry provider-passthrough fields such as message_id.
	SendMessage(ctx context.Context, externalUserID, text string, options map[string]any) error
	// ValidateWebhook reports whether the payload looks like this
	// provider's webhook shape.
	ValidateWebhook(payload map[string]any) bool
}

// DeliveryError reports an upstream channel API rejecting an outbound send.
// It is propagated, never swallowed, so callers can distinguish best-effort
// from hard failure.
type DeliveryError struct {
	Provider string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Provider, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
