// Package blobstore provides the raw key/value layer underneath the cost cache.
//
// DESIGN: Three backends share one small interface:
//   - Memory: process-local map, used by tests and dry runs
//   - SQLite: single-node persistent cache (modernc.org/sqlite, no cgo)
//   - S3:     production bucket, same layout as the original deployment
//
// Every backend stamps LastModified itself on Put. Callers never supply it,
// so TTL decisions only ever see store-assigned timestamps.
package blobstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no blob exists for the key.
var ErrNotFound = errors.New("blob not found")

// Blob is a stored payload plus the store-assigned write time.
type Blob struct {
	Body         []byte
	LastModified time.Time
}

// Store is implemented by every blob backend.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (*Blob, error)
	// Put replaces any existing blob for key.
	Put(ctx context.Context, key string, body []byte) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
