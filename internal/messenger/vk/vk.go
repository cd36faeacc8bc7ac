// Package vk implements the messenger provider for VK communities via the
// messages.send method.
package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relaydesk/relaydesk/internal/messenger"
)

const (
	defaultBaseURL = "https://api.vk.com/method"
	apiVersion     = "5.199"
)

// Provider is the VK messenger variant.
type Provider struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option customizes a Provider.
type Option func(*Provider)

// WithBaseURL overrides the VK API base URL. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// New creates a VK provider with the community access token.
func New(log *slog.Logger, accessToken string, opts ...Option) *Provider {
	if log == nil {
		log = slog.Default()
	}
	p := &Provider{
		accessToken: accessToken,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      log.With(slog.String("provider", "vk")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func deliveryError(err error) error {
	return &messenger.DeliveryError{Provider: "vk", Err: err}
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type sendResponse struct {
	Error *apiError `json:"error"`
}

// SendMessage posts a messages.send call for the given user.
func (p *Provider) SendMessage(ctx context.Context, externalUserID, text string, options map[string]any) error {
	form := url.Values{}
	form.Set("access_token", p.accessToken)
	form.Set("v", apiVersion)
	form.Set("user_id", externalUserID)
	form.Set("message", text)
	form.Set("random_id", "0")
	for key, value := range options {
		form.Set(key, fmt.Sprint(value))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/messages.send", strings.NewReader(form.Encode()))
	if err != nil {
		return deliveryError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return deliveryError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return deliveryError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return deliveryError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return deliveryError(fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return deliveryError(fmt.Errorf("api error %d: %s", parsed.Error.Code, parsed.Error.Message))
	}
	p.logger.Debug("message sent", slog.String("user_id", externalUserID))
	return nil
}

// ValidateWebhook requires the VK Callback API envelope.
func (p *Provider) ValidateWebhook(payload map[string]any) bool {
	_, hasType := payload["type"]
	_, hasObject := payload["object"]
	return hasType && hasObject
}
