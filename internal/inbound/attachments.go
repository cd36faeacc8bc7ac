package inbound

// RemoteAttachment is a discovered downloadable file reference.
type RemoteAttachment struct {
	URL      string
	FileName string
	MimeType string
}

// ExtractAttachments collects downloadable file references from the raw
// payload. Provider rules apply independently; a payload matching several
// rules yields all matches, and no match yields an empty list.
func ExtractAttachments(payload map[string]any) []RemoteAttachment {
	var found []RemoteAttachment
	found = append(found, telegramAttachments(payload)...)
	found = append(found, vkAttachments(payload)...)
	return found
}

func telegramAttachments(payload map[string]any) []RemoteAttachment {
	msg, ok := dig(payload, "message").(map[string]any)
	if !ok {
		return nil
	}
	var found []RemoteAttachment

	// Photo updates carry a size ladder; the last entry is the largest.
	if photos, ok := msg["photo"].([]any); ok && len(photos) > 0 {
		if photo, ok := photos[len(photos)-1].(map[string]any); ok {
			if url, ok := photo["file_url"].(string); ok && url != "" {
				name := "photo"
				if unique, ok := photo["file_unique_id"].(string); ok && unique != "" {
					name = unique
				}
				found = append(found, RemoteAttachment{
					URL:      url,
					FileName: name + ".jpg",
					MimeType: "image/jpeg",
				})
			}
		}
	}

	if doc, ok := msg["document"].(map[string]any); ok {
		if url, ok := doc["file_url"].(string); ok && url != "" {
			att := RemoteAttachment{
				URL:      url,
				FileName: "document",
				MimeType: "application/octet-stream",
			}
			if name, ok := doc["file_name"].(string); ok && name != "" {
				att.FileName = name
			}
			if mime, ok := doc["mime_type"].(string); ok && mime != "" {
				att.MimeType = mime
			}
			found = append(found, att)
		}
	}

	for _, kind := range []string{"audio", "voice"} {
		media, ok := msg[kind].(map[string]any)
		if !ok {
			continue
		}
		url, ok := media["file_url"].(string)
		if !ok || url == "" {
			continue
		}
		att := RemoteAttachment{
			URL:      url,
			FileName: kind + ".ogg",
			MimeType: "audio/ogg",
		}
		if name, ok := media["file_name"].(string); ok && name != "" {
			att.FileName = name
		}
		if mime, ok := media["mime_type"].(string); ok && mime != "" {
			att.MimeType = mime
		}
		found = append(found, att)
	}
	return found
}

func vkAttachments(payload map[string]any) []RemoteAttachment {
	list, ok := dig(payload, "object", "attachments").([]any)
	if !ok {
		return nil
	}
	var found []RemoteAttachment
	for _, entry := range list {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		switch item["type"] {
		case "photo":
			sizes, ok := dig(item, "photo", "sizes").([]any)
			if !ok || len(sizes) == 0 {
				continue
			}
			size, ok := sizes[len(sizes)-1].(map[string]any)
			if !ok {
				continue
			}
			if url, ok := size["url"].(string); ok && url != "" {
				found = append(found, RemoteAttachment{
					URL:      url,
					FileName: "photo.jpg",
					MimeType: "image/jpeg",
				})
			}
		case "doc":
			doc, ok := item["doc"].(map[string]any)
			if !ok {
				continue
			}
			url, ok := doc["url"].(string)
			if !ok || url == "" {
				continue
			}
			att := RemoteAttachment{
				URL:      url,
				FileName: "document",
				MimeType: "application/octet-stream",
			}
			if title, ok := doc["title"].(string); ok && title != "" {
				att.FileName = title
			}
			found = append(found, att)
		}
	}
	return found
}
