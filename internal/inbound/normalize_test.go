package inbound

import (
	"errors"
	"testing"
)

func TestExternalUserIDPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "top level user_id wins",
			payload: map[string]any{"user_id": float64(42), "from": map[string]any{"id": float64(7)}},
			want:    "42",
		},
		{
			name:    "from id",
			payload: map[string]any{"from": map[string]any{"id": float64(7)}},
			want:    "7",
		},
		{
			name: "message from id",
			payload: map[string]any{
				"message": map[string]any{"from": map[string]any{"id": float64(777888)}},
			},
			want: "777888",
		},
		{
			name:    "external_user_id fallback",
			payload: map[string]any{"external_user_id": "visitor-1"},
			want:    "visitor-1",
		},
		{
			name:    "string user_id passes through",
			payload: map[string]any{"user_id": "abc"},
			want:    "abc",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExternalUserID(tc.payload)
			if err != nil {
				t.Fatalf("ExternalUserID: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExternalUserIDMissing(t *testing.T) {
	t.Parallel()

	_, err := ExternalUserID(map[string]any{"text": "hello"})
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if missing.Field != "external_user_id" {
		t.Fatalf("unexpected field %q", missing.Field)
	}
}

func TestTextPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "top level text",
			payload: map[string]any{"text": "a", "message": map[string]any{"text": "b"}, "body": "c"},
			want:    "a",
		},
		{
			name:    "message text",
			payload: map[string]any{"message": map[string]any{"text": "b"}, "body": "c"},
			want:    "b",
		},
		{
			name:    "body fallback",
			payload: map[string]any{"body": "c"},
			want:    "c",
		},
		{
			name:    "absent defaults to empty",
			payload: map[string]any{"user_id": float64(1)},
			want:    "",
		},
		{
			name:    "non-string text skipped",
			payload: map[string]any{"text": float64(5), "body": "c"},
			want:    "c",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Text(tc.payload); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUserMetadata(t *testing.T) {
	t.Parallel()

	from := map[string]any{"id": float64(1), "first_name": "Ada"}
	if got := UserMetadata(map[string]any{"from": from}); got["first_name"] != "Ada" {
		t.Fatalf("expected from sub-map, got %v", got)
	}

	nested := map[string]any{"message": map[string]any{"from": from}}
	if got := UserMetadata(nested); got["first_name"] != "Ada" {
		t.Fatalf("expected message.from sub-map, got %v", got)
	}

	if got := UserMetadata(map[string]any{"user": from}); got["first_name"] != "Ada" {
		t.Fatalf("expected user sub-map, got %v", got)
	}

	// A non-map candidate falls through to the empty map.
	if got := UserMetadata(map[string]any{"from": "bogus"}); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestExternalMessageIDPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name: "message message_id wins over update_id",
			payload: map[string]any{
				"update_id": float64(1),
				"message":   map[string]any{"message_id": float64(501)},
			},
			want: "501",
		},
		{
			name: "vk object message_id",
			payload: map[string]any{
				"object": map[string]any{"message_id": float64(99)},
			},
			want: "99",
		},
		{
			name:    "top level message_id",
			payload: map[string]any{"message_id": "client:abc"},
			want:    "client:abc",
		},
		{
			name:    "update_id fallback",
			payload: map[string]any{"update_id": float64(12345)},
			want:    "12345",
		},
		{
			name:    "absent means no dedup key",
			payload: map[string]any{"text": "hi"},
			want:    "",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ExternalMessageID(tc.payload); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDepartmentID(t *testing.T) {
	t.Parallel()

	if got := DepartmentID(map[string]any{"department_id": float64(3)}); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
	if got := DepartmentID(map[string]any{}); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}
