package filedb

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/internal/docstore/docstoretest"
	"github.com/lewisedginton/conversation_store/internal/storage_manager"
)

func TestConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		return New(storage_manager.NewLocalFileProvider(t.TempDir()), nil)
	})
}

func TestLayoutOnDisk(t *testing.T) {
	ctx := context.Background()
	files := storage_manager.NewLocalFileProvider(t.TempDir())
	s := New(storage_manager.NewPrefixedFileProvider(files, "docs"), nil)

	require.NoError(t, s.Set(ctx, "a/b", map[string]any{"x": "1"}))
	require.NoError(t, s.Set(ctx, "a/b/c/d", map[string]any{"y": "2"}))

	all, err := files.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs/a/b.json", "docs/a/b/c/d.json"}, all)
}

func TestQuerySkipsForeignObjects(t *testing.T) {
	ctx := context.Background()
	files := storage_manager.NewLocalFileProvider(t.TempDir())
	s := New(files, nil)

	require.NoError(t, files.Write(ctx, "coll/readme.txt", []byte("not a doc")))
	require.NoError(t, s.Set(ctx, "coll/doc", map[string]any{"x": "1"}))

	got, err := s.Query(ctx, docstore.Query{Collection: "coll"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc", got[0].ID())
}

func TestQueryReportsCorruptDocument(t *testing.T) {
	ctx := context.Background()
	files := storage_manager.NewLocalFileProvider(t.TempDir())
	s := New(files, nil)

	require.NoError(t, files.Write(ctx, "coll/bad.json", []byte("{not json")))

	_, err := s.Query(ctx, docstore.Query{Collection: "coll"})
	assert.Error(t, err)
}

// listRecorder remembers which prefixes were listed.
type listRecorder struct {
	storage_manager.FileProvider

	mu       sync.Mutex
	prefixes []string
}

func (r *listRecorder) List(ctx context.Context, prefix string) ([]string, error) {
	r.mu.Lock()
	r.prefixes = append(r.prefixes, prefix)
	r.mu.Unlock()
	return r.FileProvider.List(ctx, prefix)
}

func TestGroupQueryListsOnlySubtree(t *testing.T) {
	ctx := context.Background()
	files := &listRecorder{FileProvider: storage_manager.NewLocalFileProvider(t.TempDir())}
	s := New(files, nil)

	require.NoError(t, s.Set(ctx, "root/u1/sessions/s1/events/e1", map[string]any{"userId": "u1"}))
	require.NoError(t, s.Set(ctx, "root/u2/sessions/s2/events/e2", map[string]any{"userId": "u2"}))

	got, err := s.Query(ctx, docstore.Query{Group: "events", Under: "root/u2/sessions"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e2", got[0].ID())
	assert.Equal(t, []string{"root/u2/sessions"}, files.prefixes)
}

func TestLocksAreBounded(t *testing.T) {
	s := New(storage_manager.NewLocalFileProvider(t.TempDir()), nil)

	assert.Same(t, s.lockFor("a/b"), s.lockFor("a/b"))

	seen := map[*sync.Mutex]struct{}{}
	for i := 0; i < 10*lockStripes; i++ {
		seen[s.lockFor(fmt.Sprintf("things/doc-%d", i))] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), lockStripes)
}
