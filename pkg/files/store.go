// Package files keeps uploaded files for the /v1/files endpoints and for
// file references inside chat messages.
//
// Files live until they are deleted. The registry validates uploads and
// assigns ids; a Store keeps the bytes, either in memory or in SQLite.
package files

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores for unknown ids.
var ErrNotFound = errors.New("file not found")

// File is one uploaded file.
type File struct {
	ID        string
	Filename  string
	Purpose   string
	MimeType  string
	Bytes     int64
	CreatedAt time.Time

	// Data is nil in listings.
	Data []byte
}

// Store persists files.
type Store interface {
	// Put inserts or replaces a file.
	Put(ctx context.Context, f *File) error

	// Get returns a file with its data.
	Get(ctx context.Context, id string) (*File, error)

	// List returns metadata for all files, oldest first.
	List(ctx context.Context) ([]*File, error)

	// Delete removes a file and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Stats returns the number of files and their total size.
	Stats(ctx context.Context) (count int, bytes int64, err error)

	// Ping checks that the store is usable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
