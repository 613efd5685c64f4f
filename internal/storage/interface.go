package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for object storage operations.
// The comparison tool uses it to fetch dataset CSVs from a bucket and to
// publish exported comparison reports.
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
