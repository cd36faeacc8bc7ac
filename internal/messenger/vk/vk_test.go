package vk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaydesk/relaydesk/internal/messenger"
)

func testProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), "community-token",
		WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotForm map[string]string
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotForm = map[string]string{}
		for key := range r.PostForm {
			gotForm[key] = r.PostForm.Get(key)
		}
		w.Write([]byte(`{"response":123}`))
	})

	err := p.SendMessage(context.Background(), "555", "hello", map[string]any{"reply_to": 42})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotPath != "/messages.send" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	want := map[string]string{
		"access_token": "community-token",
		"v":            "5.199",
		"user_id":      "555",
		"message":      "hello",
		"random_id":    "0",
		"reply_to":     "42",
	}
	for key, value := range want {
		if gotForm[key] != value {
			t.Fatalf("form field %s = %q, want %q", key, gotForm[key], value)
		}
	}
}

func TestSendMessageAPIError(t *testing.T) {
	t.Parallel()

	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"error_code":901,"error_msg":"Can't send messages for users without permission"}}`))
	})

	err := p.SendMessage(context.Background(), "555", "hello", nil)
	var delivery *messenger.DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if delivery.Provider != "vk" {
		t.Fatalf("unexpected provider %q", delivery.Provider)
	}
}

func TestSendMessageHTTPError(t *testing.T) {
	t.Parallel()

	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := p.SendMessage(context.Background(), "555", "hello", nil)
	var delivery *messenger.DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
}

func TestValidateWebhook(t *testing.T) {
	t.Parallel()

	p := New(slog.New(slog.NewTextHandler(io.Discard, nil)), "tok")
	if !p.ValidateWebhook(map[string]any{"type": "message_new", "object": map[string]any{}}) {
		t.Fatal("expected a callback envelope to validate")
	}
	if p.ValidateWebhook(map[string]any{"update_id": float64(1)}) {
		t.Fatal("a telegram update must not validate as a VK callback")
	}
}
