package inbound

import (
	"fmt"
	"strings"
)

// The normalizer is a set of pure functions over the raw payload map. Each
// field has a documented fallback chain covering the shapes the supported
// providers deliver.

// ExternalUserID extracts the channel-side user id: first present of
// user_id, from.id, message.from.id, external_user_id, stringified. Its
// absence is a hard rejection of the webhook.
func ExternalUserID(payload map[string]any) (string, error) {
	candidates := []any{
		payload["user_id"],
		dig(payload, "from", "id"),
		dig(payload, "message", "from", "id"),
		payload["external_user_id"],
	}
	for _, candidate := range candidates {
		if s := stringify(candidate); s != "" {
			return s, nil
		}
	}
	return "", &MissingFieldError{Field: "external_user_id"}
}

// Text extracts the message body: first present of text, message.text,
// body. Empty is fine; a message carrying only attachments is valid.
func Text(payload map[string]any) string {
	candidates := []any{
		payload["text"],
		dig(payload, "message", "text"),
		payload["body"],
	}
	for _, candidate := range candidates {
		if s, ok := candidate.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// UserMetadata extracts the sender profile sub-map: first present of from,
// message.from, user. A missing or non-map value yields an empty map.
func UserMetadata(payload map[string]any) map[string]any {
	candidates := []any{
		payload["from"],
		dig(payload, "message", "from"),
		payload["user"],
	}
	for _, candidate := range candidates {
		if m, ok := candidate.(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// ExternalMessageID extracts the provider message id used as the dedup key:
// first present of message.message_id, object.message_id, message_id,
// update_id, stringified. Blank means no dedup protection for this message;
// the widget path deliberately supplies none.
func ExternalMessageID(payload map[string]any) string {
	candidates := []any{
		dig(payload, "message", "message_id"),
		dig(payload, "object", "message_id"),
		payload["message_id"],
		payload["update_id"],
	}
	for _, candidate := range candidates {
		if s := stringify(candidate); s != "" {
			return s
		}
	}
	return ""
}

// DepartmentID extracts the payload's explicit department routing hint, 0
// when absent. Routing falls back to the source's default queue.
func DepartmentID(payload map[string]any) int64 {
	if n, ok := toInt64(payload["department_id"]); ok {
		return n
	}
	return 0
}

// dig walks nested maps by key, returning nil as soon as the path breaks.
func dig(payload map[string]any, path ...string) any {
	var current any = payload
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// stringify renders scalar ids as strings. JSON numbers arrive as float64;
// provider ids are integral, so they render without a fraction.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
