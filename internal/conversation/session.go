package conversation

import (
	"maps"
	"strings"
	"sync"
	"time"
)

// Event is one durable turn unit: a message, a tool call or a tool result.
type Event struct {
	// ID is assigned by the store when the event is appended.
	ID        string
	Author    string
	Timestamp time.Time
	Content   Content
	Actions   EventActions
}

// EventActions carries side effects requested alongside an event.
type EventActions struct {
	// StateDelta keys prefixed with "_app_" or "_user_" target app or user
	// scoped state; everything else updates the session. A nil value deletes.
	StateDelta map[string]any
}

// Session is a conversation between one user and the agent.
//
// State, Events and LastUpdateTime are mutated by the store when events are
// appended. Code sharing a Session across goroutines reads them under Lock.
// A Session must not be copied by value.
type Session struct {
	ID             string
	AppName        string
	UserID         string
	State          map[string]any
	Events         []*Event
	LastUpdateTime time.Time

	mu sync.Mutex
}

// Lock guards the mutable fields of s.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the lock taken by Lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Summary returns the metadata-only view of s.
func (s *Session) Summary() SessionSummary {
	s.Lock()
	defer s.Unlock()
	return SessionSummary{
		ID:             s.ID,
		AppName:        s.AppName,
		UserID:         s.UserID,
		LastUpdateTime: s.LastUpdateTime,
	}
}

// Clone copies s deeply enough that mutating the copy's state map or event
// slice does not affect s. Events themselves are shared.
func (s *Session) Clone() *Session {
	s.Lock()
	defer s.Unlock()
	state := maps.Clone(s.State)
	if state == nil {
		state = map[string]any{}
	}
	return &Session{
		ID:             s.ID,
		AppName:        s.AppName,
		UserID:         s.UserID,
		State:          state,
		Events:         append([]*Event(nil), s.Events...),
		LastUpdateTime: s.LastUpdateTime,
	}
}

// RoleOf infers the logical role of e within a session owned by userID.
// Function responses are always fed back as user input.
func RoleOf(e *Event, userID string) string {
	if e.Content.HasFunctionResponse() {
		return RoleUser
	}
	if strings.EqualFold(e.Author, userID) {
		return RoleUser
	}
	return RoleModel
}

// SessionSummary is what ListSessions returns: no state, no events.
type SessionSummary struct {
	ID             string    `json:"id"`
	AppName        string    `json:"appName"`
	UserID         string    `json:"userId"`
	LastUpdateTime time.Time `json:"updateTime"`
}

// MemoryEntry is a search hit projected from a stored event.
type MemoryEntry struct {
	Author    string
	Content   Content
	Timestamp time.Time
}
