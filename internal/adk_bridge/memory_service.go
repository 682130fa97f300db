package adk_bridge

import (
	"context"
	"fmt"

	"google.golang.org/adk/memory"
	"google.golang.org/adk/session"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/memory_service"
)

// MemoryService implements memory.Service on keyword search.
type MemoryService struct {
	search *memory_service.Service
}

var _ memory.Service = (*MemoryService)(nil)

// NewMemoryService creates the ADK memory adapter.
func NewMemoryService(search *memory_service.Service) *MemoryService {
	if search == nil {
		panic("memory service cannot be nil")
	}
	return &MemoryService{search: search}
}

// AddSession is a no-op: events are indexed as they are appended.
func (m *MemoryService) AddSession(ctx context.Context, sess session.Session) error {
	if sess == nil {
		return fmt.Errorf("%w: session cannot be nil", conversation.ErrInvalidArgument)
	}
	return m.search.AddSessionToMemory(ctx, &conversation.Session{
		ID:      sess.ID(),
		AppName: sess.AppName(),
		UserID:  sess.UserID(),
	})
}

// Search returns stored events sharing a keyword with the query.
func (m *MemoryService) Search(ctx context.Context, req *memory.SearchRequest) (*memory.SearchResponse, error) {
	if req == nil {
		return &memory.SearchResponse{}, nil
	}
	entries, err := m.search.Search(ctx, req.AppName, req.UserID, req.Query)
	if err != nil {
		return nil, err
	}
	resp := &memory.SearchResponse{Memories: make([]memory.Entry, 0, len(entries))}
	for _, e := range entries {
		resp.Memories = append(resp.Memories, memory.Entry{
			Content:   toGenai(e.Content),
			Author:    e.Author,
			Timestamp: e.Timestamp,
		})
	}
	return resp, nil
}
