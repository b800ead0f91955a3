package storage

import (
	"context"
	"io"
)

// Entry is a single file returned by a recursive listing
type Entry struct {
	Name    string // base name
	Path    string // slash-separated path relative to the listed folder
	Size    int64
	ModTime string // RFC 3339 timestamp as reported by the backend
}

// Storage defines the interface for backup storage backends.
// Keys and folders are slash-separated and relative to the pool root.
type Storage interface {
	// Store saves backup data with the given key
	Store(ctx context.Context, key string, reader io.Reader) error

	// List returns every file below folder, recursively
	List(ctx context.Context, folder string) ([]Entry, error)

	// Delete removes a single file. Deleting a missing file is not an error.
	Delete(ctx context.Context, key string) error

	// RemoveEmptyDirs removes empty directories below folder, keeping folder itself
	RemoveEmptyDirs(ctx context.Context, folder string) error
}

// StorageType creates Storage instances from configuration.
// Each storage backend implements this interface to provide factory functionality.
type StorageType interface {
	// Name returns the type identifier ("local", "s3", "rclone")
	Name() string

	// Create instantiates storage from pool configuration options
	Create(poolName string, options map[string]string) (Storage, error)
}
