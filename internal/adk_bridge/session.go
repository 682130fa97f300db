package adk_bridge

import (
	"fmt"
	"iter"
	"sync"
	"time"

	"google.golang.org/adk/session"

	"github.com/lewisedginton/conversation_store/internal/conversation"
)

// adkSession implements session.Session over a stored session.
type adkSession struct {
	stored *conversation.Session
	state  *sessionState
	events *sessionEvents
}

func newADKSession(stored *conversation.Session, app, user map[string]any) *adkSession {
	events := make([]*session.Event, 0, len(stored.Events))
	for _, e := range stored.Events {
		events = append(events, fromEvent(e, stored.UserID))
	}
	return &adkSession{
		stored: stored,
		state:  &sessionState{data: mergedState(stored.State, app, user)},
		events: &sessionEvents{events: events},
	}
}

// AppName returns the application name.
func (s *adkSession) AppName() string { return s.stored.AppName }

// UserID returns the user ID.
func (s *adkSession) UserID() string { return s.stored.UserID }

// ID returns the session ID.
func (s *adkSession) ID() string { return s.stored.ID }

// State returns the session state.
func (s *adkSession) State() session.State { return s.state }

// Events returns the session events.
func (s *adkSession) Events() session.Events { return s.events }

// LastUpdateTime returns when the session was last updated.
func (s *adkSession) LastUpdateTime() time.Time {
	s.stored.Lock()
	defer s.stored.Unlock()
	return s.stored.LastUpdateTime
}

// sessionState implements session.State.
// Changes made via Set() are NOT persisted. State changes must go through
// event.Actions.StateDelta.
type sessionState struct {
	data  map[string]any
	mutex sync.RWMutex
}

// Get retrieves the value associated with a given key.
func (s *sessionState) Get(key string) (any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return nil, fmt.Errorf("key %s does not exist", key)
	}
	return value, nil
}

// Set assigns the given value to the given key in memory only.
func (s *sessionState) Set(key string, value any) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.data == nil {
		s.data = make(map[string]any)
	}
	s.data[key] = value
	return nil
}

// All returns an iterator over all key-value pairs.
func (s *sessionState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()

		for key, value := range s.data {
			if !yield(key, value) {
				return
			}
		}
	}
}

// apply mirrors a persisted delta: nil deletes, temporary keys are skipped.
func (s *sessionState) apply(delta map[string]any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for k, v := range delta {
		if isTemporaryKey(k) {
			continue
		}
		if v == nil {
			delete(s.data, k)
			continue
		}
		s.data[k] = v
	}
}

// sessionEvents implements session.Events.
type sessionEvents struct {
	events []*session.Event
	mutex  sync.RWMutex
}

// All returns an iterator over all events.
func (e *sessionEvents) All() iter.Seq[*session.Event] {
	return func(yield func(*session.Event) bool) {
		e.mutex.RLock()
		defer e.mutex.RUnlock()

		for _, event := range e.events {
			if !yield(event) {
				return
			}
		}
	}
}

// Len returns the total number of events.
func (e *sessionEvents) Len() int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return len(e.events)
}

// At returns the event at the specified index.
func (e *sessionEvents) At(i int) *session.Event {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if i < 0 || i >= len(e.events) {
		return nil
	}
	return e.events[i]
}

func (e *sessionEvents) append(event *session.Event) {
	e.mutex.Lock()
	e.events = append(e.events, event)
	e.mutex.Unlock()
}
