package inbound

import "testing"

func TestExtractTelegramPhoto(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"message": map[string]any{
			"photo": []any{
				map[string]any{"file_url": "https://cdn/small", "file_unique_id": "u1"},
				map[string]any{"file_url": "https://cdn/large", "file_unique_id": "u2"},
			},
		},
	}
	got := ExtractAttachments(payload)
	if len(got) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(got))
	}
	att := got[0]
	if att.URL != "https://cdn/large" {
		t.Fatalf("expected the last (largest) photo, got %q", att.URL)
	}
	if att.FileName != "u2.jpg" || att.MimeType != "image/jpeg" {
		t.Fatalf("unexpected descriptor %+v", att)
	}
}

func TestExtractTelegramPhotoWithoutUniqueID(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"message": map[string]any{
			"photo": []any{map[string]any{"file_url": "https://cdn/p"}},
		},
	}
	got := ExtractAttachments(payload)
	if len(got) != 1 || got[0].FileName != "photo.jpg" {
		t.Fatalf("expected photo.jpg fallback, got %+v", got)
	}
}

func TestExtractTelegramDocument(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"message": map[string]any{
			"document": map[string]any{
				"file_url":  "https://cdn/doc",
				"file_name": "invoice.pdf",
				"mime_type": "application/pdf",
			},
		},
	}
	got := ExtractAttachments(payload)
	if len(got) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(got))
	}
	if got[0].FileName != "invoice.pdf" || got[0].MimeType != "application/pdf" {
		t.Fatalf("unexpected descriptor %+v", got[0])
	}

	// Defaults when the document carries no name or mime.
	payload = map[string]any{
		"message": map[string]any{
			"document": map[string]any{"file_url": "https://cdn/doc"},
		},
	}
	got = ExtractAttachments(payload)
	if got[0].FileName != "document" || got[0].MimeType != "application/octet-stream" {
		t.Fatalf("unexpected defaults %+v", got[0])
	}
}

func TestExtractTelegramVoice(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"message": map[string]any{
			"voice": map[string]any{"file_url": "https://cdn/v"},
		},
	}
	got := ExtractAttachments(payload)
	if len(got) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(got))
	}
	if got[0].FileName != "voice.ogg" || got[0].MimeType != "audio/ogg" {
		t.Fatalf("unexpected descriptor %+v", got[0])
	}
}

func TestExtractVKPhoto(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"object": map[string]any{
			"attachments": []any{
				map[string]any{
					"type": "photo",
					"photo": map[string]any{
						"sizes": []any{
							map[string]any{"url": "https://vk/small"},
							map[string]any{"url": "https://vk/large"},
						},
					},
				},
			},
		},
	}
	got := ExtractAttachments(payload)
	if len(got) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(got))
	}
	if got[0].URL != "https://vk/large" || got[0].FileName != "photo.jpg" {
		t.Fatalf("unexpected descriptor %+v", got[0])
	}
}

func TestExtractVKDoc(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"object": map[string]any{
			"attachments": []any{
				map[string]any{
					"type": "doc",
					"doc":  map[string]any{"url": "https://vk/doc", "title": "notes.txt"},
				},
				map[string]any{"type": "sticker"},
			},
		},
	}
	got := ExtractAttachments(payload)
	if len(got) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(got))
	}
	if got[0].FileName != "notes.txt" || got[0].MimeType != "application/octet-stream" {
		t.Fatalf("unexpected descriptor %+v", got[0])
	}
}

func TestExtractNoAttachments(t *testing.T) {
	t.Parallel()

	if got := ExtractAttachments(map[string]any{"text": "plain"}); len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}
