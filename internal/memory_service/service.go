// Package memory_service answers keyword searches over a user's stored events.
// Events are indexed when they are appended, so adding a session is a no-op.
package memory_service //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/internal/event_codec"
	"github.com/lewisedginton/conversation_store/internal/keywords"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

// DefaultChunkSize is the most keywords a single contains-any query carries.
const DefaultChunkSize = 10

// Config holds configuration for the memory service.
type Config struct {
	Store   docstore.Store
	Logger  logger.Logger
	Metrics *metrics.Metrics
	// ChunkSize defaults to DefaultChunkSize.
	ChunkSize int
}

// Service implements keyword memory search over a docstore.
type Service struct {
	docs      docstore.Store
	log       logger.Logger
	metrics   *metrics.Metrics
	chunkSize int
}

// New creates a new memory service with the given configuration.
func New(cfg Config) *Service {
	if cfg.Store == nil {
		panic("document store cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Service{
		docs:      cfg.Store,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		chunkSize: size,
	}
}

// AddSessionToMemory accepts a session for indexing. Keywords are written with
// each event, so there is nothing left to do.
func (s *Service) AddSessionToMemory(_ context.Context, sess *conversation.Session) error {
	if sess == nil {
		return fmt.Errorf("%w: session is required", conversation.ErrInvalidArgument)
	}
	s.log.Debug("Session already indexed",
		logger.SessionIDField(sess.ID),
		logger.IntField("events_count", len(sess.Events)))
	return nil
}

// Search returns the events of userID in appName sharing at least one keyword
// with query. A query without keywords matches nothing. Results follow store
// order, chunk by chunk, with duplicates removed; they are not ranked.
func (s *Service) Search(ctx context.Context, appName, userID, query string) ([]conversation.MemoryEntry, error) {
	if err := conversation.RequireOwner(appName, userID); err != nil {
		return nil, err
	}
	start := time.Now()
	log := s.log.WithFields(logger.AppNameField(appName), logger.UserIDField(userID))

	chunks := keywords.Extract(query).Chunk(s.chunkSize)
	if len(chunks) == 0 {
		log.Debug("Memory search has no keywords", logger.StringField("query", query))
		s.metrics.ObserveMemoryResults(0)
		return []conversation.MemoryEntry{}, nil
	}

	results := make([][]docstore.Snapshot, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			snaps, err := s.docs.Query(gctx, docstore.Query{
				Group: conversation.EventsCollection,
				Under: conversation.SessionsPath(userID),
				Filters: []docstore.Filter{
					{Field: event_codec.FieldAppName, Op: docstore.OpEqual, Value: appName},
					{Field: event_codec.FieldUserID, Op: docstore.OpEqual, Value: userID},
					{Field: event_codec.FieldKeywords, Op: docstore.OpArrayContainsAny, Value: chunk},
				},
			})
			if err != nil {
				return fmt.Errorf("keyword chunk %d: %w", i, err)
			}
			results[i] = snaps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("Memory search failed", logger.ErrorField(err))
		return nil, fmt.Errorf("memory search: %w", err)
	}

	seen := make(map[string]struct{})
	entries := make([]conversation.MemoryEntry, 0)
	for _, snaps := range results {
		for _, snap := range snaps {
			if _, dup := seen[snap.Path]; dup {
				continue
			}
			seen[snap.Path] = struct{}{}

			entry, err := event_codec.DecodeMemory(snap.Data)
			if err != nil {
				log.Warn("Skipping malformed memory record",
					logger.StringField("path", snap.Path),
					logger.ErrorField(err))
				continue
			}
			entries = append(entries, entry)
		}
	}

	s.metrics.ObserveMemoryResults(len(entries))
	log.Debug("Memory search completed",
		logger.StringField("query", query),
		logger.IntField("chunks", len(chunks)),
		logger.IntField("results_count", len(entries)),
		logger.DurationField("duration", time.Since(start)))
	return entries, nil
}
