// Package storage abstracts the blob store holding attachments and
// generated documents. Keys are slash-separated relative paths.
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned when a key has no stored object.
var ErrNotExist = errors.New("storage: object does not exist")

// Store is the minimal blob interface the workflow depends on.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
