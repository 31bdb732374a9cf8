package storage

import (
	"context"
	"io"
)

// StoredObject describes an object after a successful Put.
type StoredObject struct {
	Key  string
	URL  string
	ETag string
}

// ObjectStore is the slice of an S3-style bucket the archiver needs.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (*StoredObject, error)
	URL(key string) string
}
