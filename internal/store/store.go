// Package store declares the local document store used for warm starts:
// the service keeps the most recent root cache document on disk so a
// restart can serve queries before the first crawl finishes.
package store

import (
	"context"
	"errors"

	"photomap/internal/atlas"
)

// ErrNotFound signals that no document has been saved yet.
var ErrNotFound = errors.New("cache document not found")

// DocumentStore persists the assembled root cache document between runs.
type DocumentStore interface {
	// Load returns the most recently saved document or ErrNotFound.
	Load(ctx context.Context) (*atlas.CacheDocument, error)
	// Save replaces the stored document.
	Save(ctx context.Context, doc *atlas.CacheDocument) error
	// Close releases underlying resources.
	Close() error
}
