// Package docstoretest holds the behaviour every docstore.Store backend must
// share. Backend packages call Run from their own tests.
package docstoretest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/conversation_store/internal/docstore"
)

// Factory returns an empty store. It should register any cleanup with t.
type Factory func(t *testing.T) docstore.Store

// Run exercises a backend against the shared contract.
func Run(t *testing.T, open Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store)
	}{
		{"GetMissing", testGetMissing},
		{"SetGet", testSetGet},
		{"SetReplaces", testSetReplaces},
		{"Merge", testMerge},
		{"Update", testUpdate},
		{"Delete", testDelete},
		{"QueryCollection", testQueryCollection},
		{"QueryOrderAndLimit", testQueryOrderAndLimit},
		{"QueryGroup", testQueryGroup},
		{"QueryGroupUnder", testQueryGroupUnder},
		{"QueryInvalid", testQueryInvalid},
		{"NewID", testNewID},
		{"ConcurrentWrites", testConcurrentWrites},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			c.fn(t, s)
		})
	}
}

func testGetMissing(t *testing.T, s docstore.Store) {
	_, err := s.Get(context.Background(), "things/missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testSetGet(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	in := map[string]any{
		"name":   "alpha",
		"count":  3,
		"ratio":  0.25,
		"ok":     true,
		"none":   nil,
		"tags":   []string{"a", "b"},
		"nested": map[string]any{"k": "v", "n": 7},
	}
	require.NoError(t, s.Set(ctx, "things/a", in))

	snap, err := s.Get(ctx, "things/a")
	require.NoError(t, err)
	assert.Equal(t, "things/a", snap.Path)
	assert.Equal(t, "a", snap.ID())
	assert.Equal(t, map[string]any{
		"name":   "alpha",
		"count":  int64(3),
		"ratio":  0.25,
		"ok":     true,
		"none":   nil,
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"k": "v", "n": int64(7)},
	}, snap.Data)
}

func testSetReplaces(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "things/a", map[string]any{"x": "1", "y": "2"}))
	require.NoError(t, s.Set(ctx, "things/a", map[string]any{"z": "3"}))

	snap, err := s.Get(ctx, "things/a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"z": "3"}, snap.Data)
}

func testMerge(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Merge(ctx, "state/app", map[string]any{"x": int64(1)}))
	require.NoError(t, s.Merge(ctx, "state/app", map[string]any{"y": int64(2), "x": int64(5)}))

	snap, err := s.Get(ctx, "state/app")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": int64(5), "y": int64(2)}, snap.Data)
}

func testUpdate(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	err := s.Update(ctx, "things/none", map[string]any{"x": "1"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = s.Get(ctx, "things/none")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, s.Set(ctx, "things/a", map[string]any{
		"keep":  "yes",
		"state": map[string]any{"old": "1", "stay": "2"},
	}))
	require.NoError(t, s.Update(ctx, "things/a", map[string]any{
		"state": map[string]any{"new": "3"},
	}))

	snap, err := s.Get(ctx, "things/a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"keep":  "yes",
		"state": map[string]any{"new": "3"},
	}, snap.Data)
}

func testDelete(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Delete(ctx, "things/never"))

	require.NoError(t, s.Set(ctx, "things/a", map[string]any{"x": "1"}))
	require.NoError(t, s.Set(ctx, "things/a/children/c", map[string]any{"y": "2"}))
	require.NoError(t, s.Delete(ctx, "things/a"))

	_, err := s.Get(ctx, "things/a")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = s.Get(ctx, "things/a/children/c")
	assert.NoError(t, err, "sub-collections survive a parent delete")
}

func ids(snaps []docstore.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.ID()
	}
	return out
}

func seedEvents(t *testing.T, s docstore.Store) {
	t.Helper()
	ctx := context.Background()
	put := func(path, ts, user string, kw ...string) {
		data := map[string]any{"timestamp": ts, "userId": user, "appName": "app"}
		if len(kw) > 0 {
			data["keywords"] = kw
		}
		require.NoError(t, s.Set(ctx, path, data))
	}
	put("root/u1/sessions/s1/events/e1", "2024-01-01T00:00:01.000Z", "u1", "apple")
	put("root/u1/sessions/s1/events/e2", "2024-01-01T00:00:02.000Z", "u1", "pear", "plum")
	put("root/u1/sessions/s1/events/e3", "2024-01-01T00:00:03.000Z", "u1")
	put("root/u1/sessions/s2/events/e4", "2024-01-01T00:00:04.000Z", "u1", "apple")
	put("root/u2/sessions/s3/events/e5", "2024-01-01T00:00:05.000Z", "u2", "apple")
	require.NoError(t, s.Set(ctx, "root/u1/sessions/s1", map[string]any{"id": "s1"}))
}

func testQueryCollection(t *testing.T, s docstore.Store) {
	seedEvents(t, s)

	got, err := s.Query(context.Background(), docstore.Query{
		Collection: "root/u1/sessions/s1/events",
		OrderBy:    "timestamp",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e3"}, ids(got))

	got, err = s.Query(context.Background(), docstore.Query{Collection: "root/u1/sessions"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(got))

	got, err = s.Query(context.Background(), docstore.Query{Collection: "root/nobody/sessions"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testQueryOrderAndLimit(t *testing.T, s docstore.Store) {
	seedEvents(t, s)
	ctx := context.Background()

	got, err := s.Query(ctx, docstore.Query{
		Collection: "root/u1/sessions/s1/events",
		Filters: []docstore.Filter{
			{Field: "timestamp", Op: docstore.OpGreaterThan, Value: "2024-01-01T00:00:01.000Z"},
		},
		OrderBy: "timestamp",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3"}, ids(got))

	got, err = s.Query(ctx, docstore.Query{
		Collection:  "root/u1/sessions/s1/events",
		OrderBy:     "timestamp",
		LimitToLast: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3"}, ids(got))
}

func testQueryGroup(t *testing.T, s docstore.Store) {
	seedEvents(t, s)

	got, err := s.Query(context.Background(), docstore.Query{
		Group: "events",
		Filters: []docstore.Filter{
			{Field: "appName", Op: docstore.OpEqual, Value: "app"},
			{Field: "userId", Op: docstore.OpEqual, Value: "u1"},
			{Field: "keywords", Op: docstore.OpArrayContainsAny, Value: []string{"apple", "plum"}},
		},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e1", "e2", "e4"}, ids(got))
}

func testQueryGroupUnder(t *testing.T, s docstore.Store) {
	seedEvents(t, s)
	ctx := context.Background()

	got, err := s.Query(ctx, docstore.Query{
		Group: "events",
		Under: "root/u2/sessions",
		Filters: []docstore.Filter{
			{Field: "keywords", Op: docstore.OpArrayContainsAny, Value: []string{"apple"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e5"}, ids(got))

	got, err = s.Query(ctx, docstore.Query{Group: "events", Under: "root/u1/sessions/s2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e4"}, ids(got))

	require.NoError(t, s.Delete(ctx, "root/u2/sessions/s3/events/e5"))
	got, err = s.Query(ctx, docstore.Query{Group: "events", Under: "root/u2"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testQueryInvalid(t *testing.T, s docstore.Store) {
	_, err := s.Query(context.Background(), docstore.Query{})
	assert.Error(t, err)
}

func testNewID(t *testing.T, s docstore.Store) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := s.NewID()
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func testConcurrentWrites(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, fmt.Sprintf("bulk/d%02d", i), map[string]any{"i": i}))
		}(i)
	}
	wg.Wait()

	got, err := s.Query(ctx, docstore.Query{Collection: "bulk", OrderBy: "i"})
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.Equal(t, "d00", got[0].ID())
	assert.Equal(t, "d19", got[19].ID())
}
