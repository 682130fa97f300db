// Package memdb is an in-process docstore.Store for tests and local runs.
package memdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/lewisedginton/conversation_store/internal/docstore"
)

// Store keeps documents in a map keyed by path.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

// New returns an empty store.
func New() *Store {
	return &Store{docs: make(map[string]map[string]any)}
}

func (s *Store) Get(_ context.Context, path string) (docstore.Snapshot, error) {
	if err := docstore.ValidateDocPath(path); err != nil {
		return docstore.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[path]
	if !ok {
		return docstore.Snapshot{}, fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}
	out, err := docstore.Clone(data)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return docstore.Snapshot{Path: path, Data: out}, nil
}

func (s *Store) Set(_ context.Context, path string, data map[string]any) error {
	return s.write(path, data, func(_ map[string]any, _ bool, in map[string]any) (map[string]any, error) {
		return in, nil
	})
}

func (s *Store) Merge(_ context.Context, path string, data map[string]any) error {
	return s.write(path, data, func(cur map[string]any, _ bool, in map[string]any) (map[string]any, error) {
		return docstore.MergeFields(cur, in), nil
	})
}

func (s *Store) Update(_ context.Context, path string, data map[string]any) error {
	return s.write(path, data, func(cur map[string]any, exists bool, in map[string]any) (map[string]any, error) {
		if !exists {
			return nil, fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
		}
		return docstore.MergeFields(cur, in), nil
	})
}

// write clones the input before taking the lock and applies fn under it.
func (s *Store) write(path string, data map[string]any,
	fn func(cur map[string]any, exists bool, in map[string]any) (map[string]any, error)) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	in, err := docstore.Clone(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.docs[path]
	next, err := fn(cur, exists, in)
	if err != nil {
		return err
	}
	s.docs[path] = next
	return nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, path)
	s.mu.Unlock()
	return nil
}

func (s *Store) Query(_ context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []docstore.Snapshot
	for path, data := range s.docs {
		if q.Contains(path) {
			candidates = append(candidates, docstore.Snapshot{Path: path, Data: data})
		}
	}
	matched := docstore.Apply(q, candidates)

	out := make([]docstore.Snapshot, 0, len(matched))
	for _, m := range matched {
		data, err := docstore.Clone(m.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, docstore.Snapshot{Path: m.Path, Data: data})
	}
	return out, nil
}

func (s *Store) NewID() string {
	return docstore.NewULID()
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
