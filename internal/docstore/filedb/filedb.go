// Package filedb stores documents as JSON objects in a storage_manager
// FileProvider, so the same code serves a local directory or an S3 bucket.
//
// A document at "a/b/c/d" lives in the object "a/b/c/d.json"; its
// sub-collections live below "a/b/c/d/". Queries list objects and filter in
// process, which is fine for development volumes and small deployments.
package filedb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/internal/storage_manager"
)

const (
	ext         = ".json"
	readWorkers = 16
	lockStripes = 64
)

// Store is a docstore.Store over a FileProvider.
type Store struct {
	files storage_manager.FileProvider
	ping  func(ctx context.Context) error

	locks [lockStripes]sync.Mutex
}

// New wraps files. ping may be nil.
func New(files storage_manager.FileProvider, ping func(ctx context.Context) error) *Store {
	return &Store{
		files: files,
		ping:  ping,
	}
}

// lockFor serialises read-modify-write cycles on one document within this
// process. Documents share a fixed set of stripes, so unrelated writes may
// occasionally wait on each other.
func (s *Store) lockFor(path string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(path)%lockStripes]
}

func (s *Store) read(ctx context.Context, path string) (map[string]any, error) {
	raw, err := s.files.Read(ctx, path+ext)
	if errors.Is(err, storage_manager.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return docstore.Decode(raw)
}

func (s *Store) write(ctx context.Context, path string, data map[string]any) error {
	raw, err := docstore.Encode(data)
	if err != nil {
		return err
	}
	return s.files.Write(ctx, path+ext, raw)
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if err := docstore.ValidateDocPath(path); err != nil {
		return docstore.Snapshot{}, err
	}
	data, err := s.read(ctx, path)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return docstore.Snapshot{Path: path, Data: data}, nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()
	return s.write(ctx, path, data)
}

func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	return s.patch(ctx, path, data, false)
}

func (s *Store) Update(ctx context.Context, path string, data map[string]any) error {
	return s.patch(ctx, path, data, true)
}

func (s *Store) patch(ctx context.Context, path string, data map[string]any, mustExist bool) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	cur, err := s.read(ctx, path)
	switch {
	case errors.Is(err, docstore.ErrNotFound) && !mustExist:
		cur = nil
	case err != nil:
		return err
	}
	in, err := docstore.Clone(data)
	if err != nil {
		return err
	}
	return s.write(ctx, path, docstore.MergeFields(cur, in))
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()
	return s.files.Delete(ctx, path+ext)
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	// Group queries list every object unless narrowed to a subtree.
	prefix := strings.Trim(q.Under, "/")
	if q.Collection != "" {
		prefix = strings.Trim(q.Collection, "/")
	}
	objects, err := s.files.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
	}

	var paths []string
	for _, o := range objects {
		p, ok := strings.CutSuffix(o, ext)
		if !ok || docstore.ValidateDocPath(p) != nil || !q.Contains(p) {
			continue
		}
		paths = append(paths, p)
	}

	snaps := make([]docstore.Snapshot, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readWorkers)
	for i, p := range paths {
		g.Go(func() error {
			data, err := s.read(gctx, p)
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			snaps[i] = docstore.Snapshot{Path: p, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	present := snaps[:0]
	for _, sn := range snaps {
		if sn.Path != "" {
			present = append(present, sn)
		}
	}
	return docstore.Apply(q, present), nil
}

func (s *Store) NewID() string {
	return docstore.NewULID()
}

// Ping checks the underlying bucket when one is configured.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *Store) Close() error {
	return nil
}
