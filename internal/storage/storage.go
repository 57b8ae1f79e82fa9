// Package storage defines the object-store contract shared by the
// S3-compatible backend and the local-filesystem fallback.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the interface every storage backend implements.
type ObjectStore interface {
	// Put uploads an object under the given key and returns its public URL.
	Put(ctx context.Context, key, contentType string, src io.Reader, size int64) (string, error)

	// SignedURL returns a time-limited URL for the object behind a public URL.
	SignedURL(ctx context.Context, rawURL string, ttl time.Duration) (string, error)

	// Delete removes the object behind a public URL.
	Delete(ctx context.Context, rawURL string) error
}
