package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage defines the object-store operations the file service needs.
// Keys are opaque to the store; ownership scoping happens above it.
type Storage interface {
	// Put writes an object with its content headers and metadata.
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error

	// List returns every object under prefix, metadata included.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Stat returns ErrObjectNotFound when the key does not exist.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Get opens the object for reading. The caller must close Body.
	Get(ctx context.Context, key string) (*Object, error)

	Delete(ctx context.Context, key string) error

	// PresignedURL returns a time-limited GET URL for the object.
	PresignedURL(ctx context.Context, key string, opts PresignOptions) (string, error)

	// URL returns the direct (unsigned) URL of the object.
	URL(key string) string
}

type PutOptions struct {
	ContentType        string
	ContentDisposition string
	Size               int64 // -1 or 0 when unknown
	Metadata           map[string]string
}

type PresignOptions struct {
	Expiry             time.Duration
	ContentDisposition string // overrides the stored disposition, e.g. inline for previews
	ContentType        string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	Metadata     map[string]string
}

type Object struct {
	ObjectInfo
	Body io.ReadCloser
}
