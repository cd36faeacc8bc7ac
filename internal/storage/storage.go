// Package storage abstracts blob storage for downloaded attachments.
package storage

import (
	"context"
	"io"
)

// BlobStore abstracts object storage operations for attachment blobs.
type BlobStore interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) (int64, error)
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// URL returns the consumer-accessible reference for a storage key.
	URL(key string) string
}
