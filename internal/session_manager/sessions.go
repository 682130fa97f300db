package session_manager

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// CreateRequest describes a new session. A blank SessionID gets a generated UUID.
type CreateRequest struct {
	AppName   string
	UserID    string
	SessionID string
	State     map[string]any
}

// GetRequest selects a session and the slice of its events to load. After is
// an exclusive lower bound on event time; NumRecentEvents keeps only the last
// N events once ordered. Zero values disable either bound.
type GetRequest struct {
	AppName         string
	UserID          string
	SessionID       string
	After           time.Time
	NumRecentEvents int
}

// CreateSession writes a new session document. An existing session with the
// same id is overwritten.
func (s *Store) CreateSession(ctx context.Context, req CreateRequest) (_ *conversation.Session, err error) {
	defer s.track("create_session")(&err)

	if err := conversation.RequireOwner(req.AppName, req.UserID); err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = s.newSessionID()
	}
	if err := conversation.RequireID("session id", sessionID); err != nil {
		return nil, err
	}

	state := maps.Clone(req.State)
	if state == nil {
		state = map[string]any{}
	}
	sess := &conversation.Session{
		ID:             sessionID,
		AppName:        req.AppName,
		UserID:         req.UserID,
		State:          state,
		Events:         []*conversation.Event{},
		LastUpdateTime: s.clock(),
	}

	log := s.log.WithFields(
		logger.AppNameField(sess.AppName),
		logger.UserIDField(sess.UserID),
		logger.SessionIDField(sess.ID))

	if err := s.docs.Set(ctx, conversation.SessionPath(sess.UserID, sess.ID), sessionRecord(sess)); err != nil {
		log.Error("Failed to create session", logger.ErrorField(err))
		return nil, writeErr("create session", err)
	}

	log.Info("Created session")
	return sess, nil
}

// GetSession loads a session with its state and the requested events in
// ascending time order. A session stored under another app is not found.
func (s *Store) GetSession(ctx context.Context, req GetRequest) (_ *conversation.Session, err error) {
	defer s.track("get_session")(&err)

	if err := conversation.RequireSessionKey(req.AppName, req.UserID, req.SessionID); err != nil {
		return nil, err
	}
	if req.NumRecentEvents < 0 {
		return nil, fmt.Errorf("%w: negative event count %d", conversation.ErrInvalidArgument, req.NumRecentEvents)
	}

	sess, err := s.loadSession(ctx, req.AppName, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}

	snaps, err := s.docs.Query(ctx, eventsQuery(req.UserID, req.SessionID, req.After, req.NumRecentEvents))
	if err != nil {
		return nil, fmt.Errorf("query events of session %s: %w", req.SessionID, err)
	}
	sess.Events = s.decodeEvents(snaps, req.UserID)

	s.log.Debug("Loaded session",
		logger.SessionIDField(sess.ID),
		logger.IntField("events_count", len(sess.Events)))
	return sess, nil
}

// loadSession reads the session document without events.
func (s *Store) loadSession(ctx context.Context, appName, userID, sessionID string) (*conversation.Session, error) {
	snap, err := s.docs.Get(ctx, conversation.SessionPath(userID, sessionID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, notFound(userID, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	sess := s.sessionFromSnapshot(snap, userID)
	if sess.AppName != appName {
		return nil, notFound(userID, sessionID)
	}
	return sess, nil
}

// ListSessions returns the metadata of every session userID has in appName.
func (s *Store) ListSessions(ctx context.Context, appName, userID string) (_ []conversation.SessionSummary, err error) {
	defer s.track("list_sessions")(&err)

	if err := conversation.RequireOwner(appName, userID); err != nil {
		return nil, err
	}

	snaps, err := s.docs.Query(ctx, docstore.Query{
		Collection: conversation.SessionsPath(userID),
		Filters:    []docstore.Filter{{Field: fieldAppName, Op: docstore.OpEqual, Value: appName}},
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions of %s: %w", userID, err)
	}

	out := make([]conversation.SessionSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, s.sessionFromSnapshot(snap, userID).Summary())
	}
	return out, nil
}

// DeleteSession removes every event of the session, then the session document.
// It is not atomic: a failure can leave some events behind. Deleting a session
// that does not exist, or that belongs to another app, succeeds and removes
// nothing.
func (s *Store) DeleteSession(ctx context.Context, appName, userID, sessionID string) (err error) {
	defer s.track("delete_session")(&err)

	if err := conversation.RequireSessionKey(appName, userID, sessionID); err != nil {
		return err
	}
	log := s.log.WithFields(
		logger.AppNameField(appName),
		logger.UserIDField(userID),
		logger.SessionIDField(sessionID))

	if _, err := s.loadSession(ctx, appName, userID, sessionID); err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			log.Debug("Session to delete not found")
			return nil
		}
		return err
	}

	snaps, err := s.docs.Query(ctx, docstore.Query{Collection: conversation.EventsPath(userID, sessionID)})
	if err != nil {
		return fmt.Errorf("list events of session %s: %w", sessionID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, snap := range snaps {
		g.Go(func() error {
			return s.docs.Delete(gctx, snap.Path)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("Failed to delete session events", logger.ErrorField(err))
		return writeErr("delete events", err)
	}

	if err := s.docs.Delete(ctx, conversation.SessionPath(userID, sessionID)); err != nil {
		log.Error("Failed to delete session", logger.ErrorField(err))
		return writeErr("delete session", err)
	}

	log.Info("Deleted session", logger.IntField("events_deleted", len(snaps)))
	return nil
}

// GetOrCreate returns the session if it exists and creates it with state
// otherwise. A blank sessionID always creates.
func (s *Store) GetOrCreate(ctx context.Context, appName, userID, sessionID string, state map[string]any) (*conversation.Session, error) {
	if strings.TrimSpace(sessionID) != "" {
		sess, err := s.GetSession(ctx, GetRequest{AppName: appName, UserID: userID, SessionID: sessionID})
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, conversation.ErrSessionNotFound) {
			return nil, err
		}
	}
	return s.CreateSession(ctx, CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
		State:     state,
	})
}

// ScopedState reads the app and user scoped state of (appName, userID).
// Missing documents read as empty maps.
func (s *Store) ScopedState(ctx context.Context, appName, userID string) (map[string]any, map[string]any, error) {
	if err := conversation.RequireOwner(appName, userID); err != nil {
		return nil, nil, err
	}
	var app, user map[string]any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		app, err = s.readState(gctx, conversation.AppStatePath(appName))
		return err
	})
	g.Go(func() error {
		var err error
		user, err = s.readState(gctx, conversation.UserStatePath(appName, userID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return app, user, nil
}

func (s *Store) readState(ctx context.Context, path string) (map[string]any, error) {
	snap, err := s.docs.Get(ctx, path)
	if errors.Is(err, docstore.ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	if snap.Data == nil {
		return map[string]any{}, nil
	}
	return snap.Data, nil
}

// MergeScopedState merges app and user scoped entries outside of an event,
// as when a session is created with scoped initial state. Empty maps are
// skipped.
func (s *Store) MergeScopedState(ctx context.Context, appName, userID string, app, user map[string]any) (err error) {
	defer s.track("merge_scoped_state")(&err)

	if err := conversation.RequireOwner(appName, userID); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	if len(app) > 0 {
		g.Go(func() error {
			return s.docs.Merge(gctx, conversation.AppStatePath(appName), app)
		})
	}
	if len(user) > 0 {
		g.Go(func() error {
			return s.docs.Merge(gctx, conversation.UserStatePath(appName, userID), user)
		})
	}
	if err := g.Wait(); err != nil {
		return writeErr("merge scoped state", err)
	}
	return nil
}
