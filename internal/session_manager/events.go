package session_manager

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/internal/event_codec"
	"github.com/lewisedginton/conversation_store/internal/state_scope"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// AppendEvent persists event into sess and returns it with its assigned id.
//
// The session scope of the event's state delta is applied to sess in memory
// first, under the session's lock. Then the app state merge, user state merge,
// event insert and session document update are issued concurrently and all
// awaited. The writes themselves are not serialized: concurrent appends to one
// session settle last write wins on the session document. Any failure yields
// ErrStoreWrite, with sess already mutated and possibly some writes applied.
// Each call inserts a new event document, so callers must not retry blindly.
func (s *Store) AppendEvent(ctx context.Context, sess *conversation.Session, event *conversation.Event) (_ *conversation.Event, err error) {
	defer s.track("append_event")(&err)

	if sess == nil || event == nil {
		return nil, fmt.Errorf("%w: session and event are required", conversation.ErrInvalidArgument)
	}
	if err := conversation.RequireSessionKey(sess.AppName, sess.UserID, sess.ID); err != nil {
		return nil, err
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	event.Timestamp = event.Timestamp.UTC().Truncate(time.Millisecond)

	scopes := state_scope.Split(event.Actions.StateDelta)
	event.ID = s.docs.NewID()
	record, kw := event_codec.Encode(event, sess.AppName, sess.UserID)

	sess.Lock()
	sess.State = scopes.ApplySession(sess.State)
	sess.Events = append(sess.Events, event)
	if event.Timestamp.After(sess.LastUpdateTime) {
		sess.LastUpdateTime = event.Timestamp
	}
	sessionFields := map[string]any{
		fieldUpdateTime: event_codec.FormatTime(sess.LastUpdateTime),
		fieldState:      maps.Clone(sess.State),
	}
	sess.Unlock()

	log := s.log.WithFields(
		logger.AppNameField(sess.AppName),
		logger.UserIDField(sess.UserID),
		logger.SessionIDField(sess.ID),
		logger.StringField("event_id", event.ID))

	var g multierror.Group
	if len(scopes.App) > 0 {
		g.Go(func() error {
			if err := s.docs.Merge(ctx, conversation.AppStatePath(sess.AppName), scopes.App); err != nil {
				return fmt.Errorf("merge app state: %w", err)
			}
			return nil
		})
	}
	if len(scopes.User) > 0 {
		g.Go(func() error {
			if err := s.docs.Merge(ctx, conversation.UserStatePath(sess.AppName, sess.UserID), scopes.User); err != nil {
				return fmt.Errorf("merge user state: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		path := docstore.Child(conversation.EventsPath(sess.UserID, sess.ID), event.ID)
		if err := s.docs.Set(ctx, path, record); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.docs.Update(ctx, conversation.SessionPath(sess.UserID, sess.ID), sessionFields); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})

	if merr := g.Wait(); merr.ErrorOrNil() != nil {
		log.Error("Failed to append event", logger.ErrorField(merr))
		return nil, writeErr("append event", merr)
	}

	log.Debug("Appended event",
		logger.StringField("author", event.Author),
		logger.IntField("keywords", len(kw)))
	return event, nil
}

// ListEvents returns every event of the session in ascending time order.
func (s *Store) ListEvents(ctx context.Context, appName, userID, sessionID string) (_ []*conversation.Event, err error) {
	defer s.track("list_events")(&err)

	if err := conversation.RequireSessionKey(appName, userID, sessionID); err != nil {
		return nil, err
	}
	if _, err := s.loadSession(ctx, appName, userID, sessionID); err != nil {
		return nil, err
	}

	snaps, err := s.docs.Query(ctx, eventsQuery(userID, sessionID, time.Time{}, 0))
	if err != nil {
		return nil, fmt.Errorf("query events of session %s: %w", sessionID, err)
	}
	return s.decodeEvents(snaps, userID), nil
}

// RecordEvents drains an agent event stream into sess, appending each event in
// order. It stops at the first stream or append error and reports how many
// events were stored. Nil events are ignored.
func (s *Store) RecordEvents(ctx context.Context, sess *conversation.Session, events iter.Seq2[*conversation.Event, error]) (int, error) {
	n := 0
	for event, err := range events {
		if err != nil {
			return n, fmt.Errorf("event stream: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if event == nil {
			continue
		}
		if _, err := s.AppendEvent(ctx, sess, event); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
