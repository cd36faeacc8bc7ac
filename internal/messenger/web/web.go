// Package web implements the messenger provider for the embeddable chat
// widget. Delivery happens in-app, so outbound send is a no-op.
package web

import "context"

// Provider is the web-widget messenger variant.
type Provider struct{}

// New creates a web provider.
func New() *Provider {
	return &Provider{}
}

// SendMessage is a no-op: widget clients receive messages through the
// in-app channel, not an external push.
func (p *Provider) SendMessage(_ context.Context, _, _ string, _ map[string]any) error {
	return nil
}

// ValidateWebhook requires the widget payload shape.
func (p *Provider) ValidateWebhook(payload map[string]any) bool {
	_, hasUser := payload["external_user_id"]
	_, hasText := payload["text"]
	return hasUser && hasText
}
