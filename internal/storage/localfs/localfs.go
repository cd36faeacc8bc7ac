// Package localfs implements storage.BlobStore on a local directory tree.
// Keys are "<chat_id>/<file_id>" style relative paths; files are served
// back through the attachments endpoint.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store writes attachment blobs under a root directory.
type Store struct {
	root      string
	publicURL string
}

// New creates a local filesystem store. root is the directory holding the
// blobs; publicURL is the base the attachments endpoint is served from.
func New(root, publicURL string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: abs, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Put writes data under key, creating parent directories as needed.
func (s *Store) Put(_ context.Context, key string, reader io.Reader) (int64, error) {
	dest, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	written, err := io.Copy(f, reader)
	if err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	return written, nil
}

// Open reads the blob stored under key.
func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	dest, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dest)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes the blob under key. A missing blob is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	dest, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// URL returns the public attachments URL for a storage key.
func (s *Store) URL(key string) string {
	return s.publicURL + "/attachments/" + key
}

// path converts a storage key into a file path, rejecting keys that would
// escape the root.
func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("absolute key is forbidden: %s", key)
	}
	if strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("path traversal is forbidden: %s", key)
	}
	joined := filepath.Join(s.root, clean)
	if !strings.HasPrefix(joined, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes storage root: %s", key)
	}
	return joined, nil
}
