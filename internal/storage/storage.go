// Package storage defines the blob-storage port the core is built
// against: a flat read/write/list abstraction over named byte blobs.
// The port itself is an external collaborator (out of scope per the
// spec); this package also carries two concrete implementations:
// DiskBlobStore, which the CLI uses, and MemoryStore, which the tests
// use.
package storage

import "context"

// DirEntries is the result of a paginated directory listing.
type DirEntries struct {
	Names []string
	Next  string // empty when there are no more pages
}

// Store is the storage port every core component is written against.
// Paths are slash-separated, relative to the store's root, and never
// contain ".." segments.
type Store interface {
	// Read returns the blob at path, or (nil, nil) if it does not exist.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write stores data at path, creating parent directories as
	// needed, overwriting any existing blob.
	Write(ctx context.Context, path string, mimeType string, data []byte) error

	// FileExists reports whether a blob exists at path.
	FileExists(ctx context.Context, path string) (bool, error)

	// DirExists reports whether path names a directory.
	DirExists(ctx context.Context, path string) (bool, error)

	// DeleteFile removes the blob at path. Deleting a missing blob is
	// not an error.
	DeleteFile(ctx context.Context, path string) error

	// DeleteDir recursively removes everything under path.
	DeleteDir(ctx context.Context, path string) error

	// ListDirs lists immediate subdirectory names under prefix,
	// paginated by cursor (empty cursor starts from the beginning).
	ListDirs(ctx context.Context, prefix string, pageSize int, cursor string) (DirEntries, error)
}
