package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Object is a stored payload together with the metadata recorded at write
// time.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Size        int64
	ModifiedAt  time.Time
}

// ObjectStore defines the interface for a durable blob store keyed by
// string. The gateway holds no object state of its own; everything it knows
// about an object comes from here.
type ObjectStore interface {
	// Head reports whether an object exists under key.
	Head(ctx context.Context, key string) (bool, error)

	// Get returns the full object stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Put stores data under key, replacing any previous object, and records
	// contentType as metadata.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Delete removes the object stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error
}
