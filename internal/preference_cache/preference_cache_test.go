package preference_cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/internal/docstore/memdb"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

// countingStore counts Get calls and can be told to fail them.
type countingStore struct {
	*memdb.Store
	mock.Mock
}

func (c *countingStore) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	args := c.Called(path)
	if err := args.Error(0); err != nil {
		return docstore.Snapshot{}, err
	}
	return c.Store.Get(ctx, path)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	s := &countingStore{Store: memdb.New()}
	require.NoError(t, s.Store.Set(context.Background(), conversation.PreferencesPath("alice"),
		map[string]any{"role": "admin", "language": "en"}))
	return s
}

func TestGetCachesHits(t *testing.T) {
	store := newCountingStore(t)
	store.On("Get", "user_roles/alice").Return(nil).Once()
	m := metrics.NewMetrics("test", false, nil)
	c := New(store, logger.NewNopLogger(), m)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		prefs, found, err := c.Get(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, map[string]any{"role": "admin", "language": "en"}, prefs)
	}
	store.AssertExpectations(t)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PreferenceCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreferenceCache.WithLabelValues("miss")))
}

func TestGetCachesMissingDocument(t *testing.T) {
	store := newCountingStore(t)
	store.On("Get", "user_roles/bob").Return(nil).Once()
	c := New(store, logger.NewNopLogger(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		prefs, found, err := c.Get(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, prefs)
	}
	store.AssertExpectations(t)
	assert.Equal(t, 1, c.Len())
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	store := newCountingStore(t)
	store.On("Get", "user_roles/alice").Return(errors.New("timeout")).Once()
	store.On("Get", "user_roles/alice").Return(nil).Once()
	c := New(store, logger.NewNopLogger(), nil)
	ctx := context.Background()

	_, _, err := c.Get(ctx, "alice")
	assert.ErrorContains(t, err, "timeout")
	assert.Equal(t, 0, c.Len())

	_, found, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	store.AssertExpectations(t)
}

func TestInvalidate(t *testing.T) {
	store := newCountingStore(t)
	store.On("Get", "user_roles/alice").Return(nil).Twice()
	c := New(store, logger.NewNopLogger(), nil)
	ctx := context.Background()

	assert.False(t, c.Invalidate("alice"))

	_, _, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, c.Invalidate("alice"))
	assert.False(t, c.Invalidate("alice"))

	_, _, err = c.Get(ctx, "alice")
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestReturnedMapIsACopy(t *testing.T) {
	store := newCountingStore(t)
	store.On("Get", mock.Anything).Return(nil)
	c := New(store, logger.NewNopLogger(), nil)
	ctx := context.Background()

	prefs, _, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	prefs["role"] = "guest"

	again, _, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "admin", again["role"])
}

func TestReturnedMapIsADeepCopy(t *testing.T) {
	store := newCountingStore(t)
	store.On("Get", mock.Anything).Return(nil)
	require.NoError(t, store.Store.Set(context.Background(), conversation.PreferencesPath("carol"),
		map[string]any{"ui": map[string]any{"theme": "dark"}, "tags": []any{"a"}}))
	c := New(store, logger.NewNopLogger(), nil)
	ctx := context.Background()

	prefs, _, err := c.Get(ctx, "carol")
	require.NoError(t, err)
	prefs["ui"].(map[string]any)["theme"] = "light"
	prefs["tags"].([]any)[0] = "z"

	again, _, err := c.Get(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ui": map[string]any{"theme": "dark"}, "tags": []any{"a"}}, again)
}

// gatedStore holds every Get until release is closed.
type gatedStore struct {
	*memdb.Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	return g.Store.Get(ctx, path)
}

func TestCancelledCallerDoesNotFailSharedRead(t *testing.T) {
	store := &gatedStore{Store: memdb.New(), started: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, store.Store.Set(context.Background(), conversation.PreferencesPath("alice"),
		map[string]any{"role": "admin"}))
	c := New(store, logger.NewNopLogger(), nil)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.Get(first, "alice")
		firstErr <- err
	}()
	<-store.started

	type result struct {
		prefs map[string]any
		err   error
	}
	second := make(chan result, 1)
	go func() {
		prefs, _, err := c.Get(context.Background(), "alice")
		second <- result{prefs, err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(store.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, map[string]any{"role": "admin"}, res.prefs)
	assert.Equal(t, 1, c.Len())
}

func TestConcurrentGet(t *testing.T) {
	store := newCountingStore(t)
	store.On("Get", mock.Anything).Return(nil)
	c := New(store, logger.NewNopLogger(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, found, err := c.Get(ctx, "alice")
			assert.NoError(t, err)
			assert.True(t, found)
			if i%8 == 0 {
				c.Invalidate("alice")
			}
		}()
	}
	wg.Wait()
}

func TestGetRejectsBlankUser(t *testing.T) {
	c := New(memdb.New(), logger.NewNopLogger(), nil)
	_, _, err := c.Get(context.Background(), "")
	assert.ErrorIs(t, err, conversation.ErrInvalidArgument)
}
