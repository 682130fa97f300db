// Package services assembles the conversation store components on top of one
// opened backend, so that the ops server and the command line share a single
// wiring.
package services

import (
	"context"
	"fmt"

	"github.com/lewisedginton/conversation_store/internal/adk_bridge"
	"github.com/lewisedginton/conversation_store/internal/backend"
	appconfig "github.com/lewisedginton/conversation_store/internal/config"
	"github.com/lewisedginton/conversation_store/internal/memory_service"
	"github.com/lewisedginton/conversation_store/internal/preference_cache"
	"github.com/lewisedginton/conversation_store/internal/session_manager"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

// Services holds every component built over one backend.
type Services struct {
	Backend     *backend.Backend
	Store       *session_manager.Store
	Memory      *memory_service.Service
	Preferences *preference_cache.Cache

	// Sessions and Recall are the agent runtime view of Store and Memory.
	Sessions *adk_bridge.SessionService
	Recall   *adk_bridge.MemoryService
}

// Open opens the configured backend and builds the components on it. m may be
// nil.
func Open(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, m *metrics.Metrics) (*Services, error) {
	b, err := backend.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return New(b, cfg.Memory, log, m), nil
}

// New builds the components over an already opened backend.
func New(b *backend.Backend, memCfg appconfig.MemoryConfig, log logger.Logger, m *metrics.Metrics) *Services {
	store := session_manager.NewStore(b.Store, log, session_manager.WithMetrics(m))
	mem := memory_service.New(memory_service.Config{
		Store:     b.Store,
		Logger:    log,
		Metrics:   m,
		ChunkSize: memCfg.ChunkSize,
	})
	return &Services{
		Backend:     b,
		Store:       store,
		Memory:      mem,
		Preferences: preference_cache.New(b.Store, log, m),
		Sessions:    adk_bridge.NewSessionService(store, log),
		Recall:      adk_bridge.NewMemoryService(mem),
	}
}

// Close releases the backend.
func (s *Services) Close() error {
	return s.Backend.Close()
}
