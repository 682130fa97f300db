// Package docstore is a minimal hierarchical document store contract modelled
// on Cloud Firestore: documents live at slash-separated paths that alternate
// collection and document ids ("coll/doc/coll/doc"), hold JSON-like maps and
// can be queried per collection or across every collection sharing an id.
//
// Values are restricted to what JSON can carry. Backends normalise numbers on
// read: integral values come back as int64, everything else as float64.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Update when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Snapshot is a document read from the store.
type Snapshot struct {
	// Path is the full document path.
	Path string
	Data map[string]any
}

// ID returns the last path segment.
func (s Snapshot) ID() string {
	return DocID(s.Path)
}

// Store is implemented by every backend. Implementations are safe for
// concurrent use. Writes to different documents are independent: there are no
// multi-document transactions.
type Store interface {
	// Get reads one document.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set creates or replaces a document.
	Set(ctx context.Context, path string, data map[string]any) error
	// Merge writes the given top-level fields, creating the document if needed.
	Merge(ctx context.Context, path string, data map[string]any) error
	// Update replaces the given top-level fields of an existing document.
	Update(ctx context.Context, path string, data map[string]any) error
	// Delete removes a document. Sub-collections are left untouched.
	// Deleting a missing document succeeds.
	Delete(ctx context.Context, path string) error
	// Query runs q and returns matching documents.
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	// NewID returns a fresh document id.
	NewID() string
	// Close releases backend resources.
	Close() error
}

// Pinger is implemented by stores that can check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
