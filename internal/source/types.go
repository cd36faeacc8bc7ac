// Package source manages configured inbound/outbound channels: the web
// widget, VK communities, and Telegram bots.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates the requested source does not exist.
var ErrNotFound = errors.New("source not found")

// Type identifies the messaging platform behind a source.
type Type string

const (
	TypeWeb Type = "web"
	TypeVk  Type = "vk"
	TypeTg  Type = "tg"
)

// String returns the source type as a plain string.
func (t Type) String() string {
	return string(t)
}

// ParseType validates a raw string into a Type.
func ParseType(raw string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeWeb:
		return TypeWeb, nil
	case TypeVk:
		return TypeVk, nil
	case TypeTg:
		return TypeTg, nil
	default:
		return "", fmt.Errorf("unsupported source type: %s", raw)
	}
}

// Source is a configured channel. SecretKey, when set, is compared against
// the webhook signature before any payload is processed. Settings holds
// channel credentials such as access tokens.
type Source struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Type       Type           `json:"type"`
	Identifier string         `json:"identifier"`
	SecretKey  string         `json:"-"`
	Settings   map[string]any `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Setting returns the trimmed string value for the given settings key, or
// empty string if absent or not a string.
func (s Source) Setting(key string) string {
	if s.Settings == nil {
		return ""
	}
	value, _ := s.Settings[key].(string)
	return strings.TrimSpace(value)
}

// UpsertInput is the input for creating or updating a source.
type UpsertInput struct {
	Name       string         `json:"name" validate:"required"`
	Type       string         `json:"type" validate:"required,oneof=web vk tg"`
	Identifier string         `json:"identifier" validate:"required"`
	SecretKey  string         `json:"secret_key"`
	Settings   map[string]any `json:"settings"`
}

// Repository is the persistence surface for sources.
type Repository interface {
	FindByID(ctx context.Context, id int64) (Source, error)
	FindByIdentifier(ctx context.Context, identifier string) (Source, error)
	List(ctx context.Context) ([]Source, error)
	Create(ctx context.Context, input UpsertInput) (Source, error)
	Update(ctx context.Context, id int64, input UpsertInput) (Source, error)
	Delete(ctx context.Context, id int64) error
}
