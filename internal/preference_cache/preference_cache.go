// Package preference_cache is a process-local read-through cache of user
// preference documents. Entries live until invalidated; a missing document is
// cached as well.
package preference_cache //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

type entry struct {
	prefs map[string]any
	found bool
}

// Cache is safe for concurrent use. Concurrent misses for the same user share
// one read.
type Cache struct {
	docs    docstore.Store
	log     logger.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	entries map[string]entry
	// gen is bumped by Invalidate so reads that started earlier do not
	// repopulate the entry.
	gen   map[string]uint64
	group singleflight.Group
}

// New creates a Cache reading from docs. m may be nil.
func New(docs docstore.Store, log logger.Logger, m *metrics.Metrics) *Cache {
	if docs == nil {
		panic("document store cannot be nil")
	}
	if log == nil {
		panic("logger cannot be nil")
	}
	return &Cache{
		docs:    docs,
		log:     log,
		metrics: m,
		entries: make(map[string]entry),
		gen:     make(map[string]uint64),
	}
}

// Get returns the preferences of userID and whether a document exists. Read
// errors are returned and not cached. The returned map is a deep copy.
//
// A shared read is not tied to any one caller: a caller whose ctx ends stops
// waiting, while the read carries on for the others.
func (c *Cache) Get(ctx context.Context, userID string) (map[string]any, bool, error) {
	if err := conversation.RequireID("user id", userID); err != nil {
		return nil, false, err
	}
	log := c.log.WithFields(logger.UserIDField(userID))

	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok {
		c.metrics.PreferenceLookup("hit")
		log.Debug("Preferences served from cache", logger.BoolField("found", e.found))
		return e.copy()
	}

	c.metrics.PreferenceLookup("miss")
	ch := c.group.DoChan(userID, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), userID)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.metrics.PreferenceLookup("error")
			log.Error("Failed to read preferences", logger.ErrorField(res.Err))
			return nil, false, res.Err
		}
		return res.Val.(entry).copy()
	}
}

// copy hands out prefs without sharing any nested value with the cache.
func (e entry) copy() (map[string]any, bool, error) {
	if e.prefs == nil {
		return nil, e.found, nil
	}
	prefs, err := docstore.Clone(e.prefs)
	if err != nil {
		return nil, false, fmt.Errorf("copy preferences: %w", err)
	}
	return prefs, e.found, nil
}

func (c *Cache) load(ctx context.Context, userID string) (entry, error) {
	c.mu.RLock()
	gen := c.gen[userID]
	c.mu.RUnlock()

	snap, err := c.docs.Get(ctx, conversation.PreferencesPath(userID))
	var e entry
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		c.log.Warn("No preferences document, caching empty result", logger.UserIDField(userID))
	case err != nil:
		return entry{}, fmt.Errorf("read preferences of %s: %w", userID, err)
	default:
		e = entry{prefs: snap.Data, found: true}
		if e.prefs == nil {
			e.prefs = map[string]any{}
		}
	}

	c.mu.Lock()
	if c.gen[userID] == gen {
		c.entries[userID] = e
	}
	c.mu.Unlock()
	return e, nil
}

// Invalidate drops the cached entry of userID and reports whether one existed.
func (c *Cache) Invalidate(userID string) bool {
	c.mu.Lock()
	_, ok := c.entries[userID]
	delete(c.entries, userID)
	c.gen[userID]++
	c.mu.Unlock()

	if ok {
		c.log.Info("Invalidated cached preferences", logger.UserIDField(userID))
	} else {
		c.log.Debug("Nothing cached to invalidate", logger.UserIDField(userID))
	}
	return ok
}

// Len reports how many users have a cached entry.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
