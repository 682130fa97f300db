package adk_bridge

import (
	"context"
	"fmt"

	"google.golang.org/adk/session"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/session_manager"
	"github.com/lewisedginton/conversation_store/internal/state_scope"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// SessionService implements session.Service on a session_manager.Store.
type SessionService struct {
	store *session_manager.Store
	log   logger.Logger
}

var _ session.Service = (*SessionService)(nil)

// NewSessionService creates the ADK session adapter.
func NewSessionService(store *session_manager.Store, log logger.Logger) *SessionService {
	if store == nil {
		panic("session store cannot be nil")
	}
	if log == nil {
		panic("logger cannot be nil")
	}
	return &SessionService{store: store, log: log}
}

// Create creates a new session. App and user keys of the initial state are
// merged into their scopes; temporary keys are dropped.
func (s *SessionService) Create(ctx context.Context, req *session.CreateRequest) (*session.CreateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: create request cannot be nil", conversation.ErrInvalidArgument)
	}

	scopes := state_scope.Split(toStoreKeys(req.State))
	stored, err := s.store.CreateSession(ctx, session_manager.CreateRequest{
		AppName:   req.AppName,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		State:     scopes.ApplySession(nil),
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.MergeScopedState(ctx, req.AppName, req.UserID, scopes.App, scopes.User); err != nil {
		return nil, err
	}

	app, user, err := s.store.ScopedState(ctx, req.AppName, req.UserID)
	if err != nil {
		return nil, err
	}
	return &session.CreateResponse{Session: newADKSession(stored, app, user)}, nil
}

// Get retrieves an existing session with its app and user state.
func (s *SessionService) Get(ctx context.Context, req *session.GetRequest) (*session.GetResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: get request cannot be nil", conversation.ErrInvalidArgument)
	}

	stored, err := s.store.GetSession(ctx, session_manager.GetRequest{
		AppName:         req.AppName,
		UserID:          req.UserID,
		SessionID:       req.SessionID,
		After:           req.After,
		NumRecentEvents: req.NumRecentEvents,
	})
	if err != nil {
		return nil, err
	}
	app, user, err := s.store.ScopedState(ctx, req.AppName, req.UserID)
	if err != nil {
		return nil, err
	}
	return &session.GetResponse{Session: newADKSession(stored, app, user)}, nil
}

// List lists the sessions of one user. Listed sessions carry no state or events.
func (s *SessionService) List(ctx context.Context, req *session.ListRequest) (*session.ListResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: list request cannot be nil", conversation.ErrInvalidArgument)
	}

	summaries, err := s.store.ListSessions(ctx, req.AppName, req.UserID)
	if err != nil {
		return nil, err
	}
	sessions := make([]session.Session, 0, len(summaries))
	for _, sum := range summaries {
		sessions = append(sessions, newADKSession(&conversation.Session{
			ID:             sum.ID,
			AppName:        sum.AppName,
			UserID:         sum.UserID,
			State:          map[string]any{},
			LastUpdateTime: sum.LastUpdateTime,
		}, nil, nil))
	}
	return &session.ListResponse{Sessions: sessions}, nil
}

// Delete removes a session and its events.
func (s *SessionService) Delete(ctx context.Context, req *session.DeleteRequest) error {
	if req == nil {
		return fmt.Errorf("%w: delete request cannot be nil", conversation.ErrInvalidArgument)
	}
	return s.store.DeleteSession(ctx, req.AppName, req.UserID, req.SessionID)
}

// AppendEvent persists event and mirrors it into sess, which the runner keeps
// using for the rest of the invocation. Partial events are not persisted.
func (s *SessionService) AppendEvent(ctx context.Context, sess session.Session, event *session.Event) error {
	if sess == nil || event == nil {
		return fmt.Errorf("%w: session and event are required", conversation.ErrInvalidArgument)
	}
	if event.Partial {
		return nil
	}

	own, ok := sess.(*adkSession)
	if !ok {
		own = adopt(sess)
	}

	stored := toEvent(event)
	if _, err := s.store.AppendEvent(ctx, own.stored, stored); err != nil {
		return err
	}

	event.ID = stored.ID
	event.Timestamp = stored.Timestamp
	own.events.append(event)
	own.state.apply(event.Actions.StateDelta)

	s.log.Debug("Appended agent event",
		logger.SessionIDField(own.ID()),
		logger.StringField("event_id", event.ID),
		logger.StringField("author", event.Author))
	return nil
}

// adopt wraps a session.Session created elsewhere. Only its session scoped
// state is carried over.
func adopt(sess session.Session) *adkSession {
	state := make(map[string]any)
	for k, v := range sess.State().All() {
		if isTemporaryKey(k) {
			continue
		}
		state[k] = v
	}
	scopes := state_scope.Split(toStoreKeys(state))
	stored := &conversation.Session{
		ID:             sess.ID(),
		AppName:        sess.AppName(),
		UserID:         sess.UserID(),
		State:          scopes.ApplySession(nil),
		LastUpdateTime: sess.LastUpdateTime(),
	}
	own := newADKSession(stored, scopes.App, scopes.User)
	own.events.events = append(own.events.events, collect(sess.Events())...)
	return own
}

func collect(events session.Events) []*session.Event {
	out := make([]*session.Event, 0, events.Len())
	for e := range events.All() {
		out = append(out, e)
	}
	return out
}
