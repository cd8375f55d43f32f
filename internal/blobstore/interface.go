package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object exists for a key.
var ErrNotFound = errors.New("blob not found")

// PutResult describes one persisted code payload.
type PutResult struct {
	SHA256    string
	SizeBytes int64
}

// ContentStore holds code payload bytes under caller-assigned keys.
//
// Keys are opaque identifiers, never content digests: two Puts of identical
// bytes under different keys are two independent objects. Delete of a missing
// key is a no-op.
type ContentStore interface {
	Put(ctx context.Context, key string, r io.Reader) (PutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
