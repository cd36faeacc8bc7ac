// Package downloader fetches remote attachment files into blob storage and
// attaches their descriptors to the owning message.
package downloader

// Job identifies one attachment fetch for a persisted message.
type Job struct {
	MessageID int64  `json:"message_id"`
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
}
