// Package session_manager persists sessions, their event logs and the app and
// user scoped state on top of a docstore.Store.
package session_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

// Session document fields.
const (
	fieldID         = "id"
	fieldAppName    = "appName"
	fieldUserID     = "userId"
	fieldUpdateTime = "updateTime"
	fieldState      = "state"
)

// deleteConcurrency bounds the event deletes DeleteSession runs at once.
const deleteConcurrency = 16

// Store is the session store. It holds no per-session locks: concurrent
// appends to one session race on the session document and the last write wins.
type Store struct {
	docs    docstore.Store
	log     logger.Logger
	metrics *metrics.Metrics

	now          func() time.Time
	newSessionID func() string
}

// Option customises a Store.
type Option func(*Store)

// WithMetrics records store operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSessionIDs replaces the session id generator used when callers leave
// the id blank.
func WithSessionIDs(gen func() string) Option {
	return func(s *Store) { s.newSessionID = gen }
}

// NewStore creates a Store over docs.
func NewStore(docs docstore.Store, log logger.Logger, opts ...Option) *Store {
	if docs == nil {
		panic("document store cannot be nil")
	}
	if log == nil {
		panic("logger cannot be nil")
	}
	s := &Store{
		docs:         docs,
		log:          log,
		now:          time.Now,
		newSessionID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Docs returns the underlying document store.
func (s *Store) Docs() docstore.Store {
	return s.docs
}

func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// track starts timing op. The returned func records it with the outcome of
// *errp, for use as: defer s.track("op")(&err).
func (s *Store) track(op string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		s.observe(op, start, *errp)
	}
}

func (s *Store) observe(op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrSessionNotFound):
		outcome = metrics.OutcomeNotFound
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveStoreOp(op, outcome, start)
}

func writeErr(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", conversation.ErrStoreWrite, action, err)
}

func notFound(userID, sessionID string) error {
	return fmt.Errorf("%w: %s (user: %s)", conversation.ErrSessionNotFound, sessionID, userID)
}
