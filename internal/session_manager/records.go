package session_manager

import (
	"maps"
	"time"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/internal/event_codec"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

func sessionRecord(sess *conversation.Session) map[string]any {
	state := maps.Clone(sess.State)
	if state == nil {
		state = map[string]any{}
	}
	return map[string]any{
		fieldID:         sess.ID,
		fieldAppName:    sess.AppName,
		fieldUserID:     sess.UserID,
		fieldUpdateTime: event_codec.FormatTime(sess.LastUpdateTime),
		fieldState:      state,
	}
}

// sessionFromSnapshot reads the metadata and state of a session document.
// Unparseable update times are logged and left zero.
func (s *Store) sessionFromSnapshot(snap docstore.Snapshot, userID string) *conversation.Session {
	sess := &conversation.Session{
		ID:     snap.ID(),
		UserID: userID,
		State:  map[string]any{},
		Events: []*conversation.Event{},
	}
	if app, ok := snap.Data[fieldAppName].(string); ok {
		sess.AppName = app
	}
	if st, ok := snap.Data[fieldState].(map[string]any); ok {
		sess.State = st
	}
	if raw, ok := snap.Data[fieldUpdateTime].(string); ok {
		t, err := event_codec.ParseTime(raw)
		if err != nil {
			s.log.Warn("Unparseable session update time",
				logger.StringField("path", snap.Path),
				logger.StringField("update_time", raw))
		} else {
			sess.LastUpdateTime = t.UTC()
		}
	}
	return sess
}

// decodeEvents turns event snapshots into events, skipping malformed records.
func (s *Store) decodeEvents(snaps []docstore.Snapshot, userID string) []*conversation.Event {
	events := make([]*conversation.Event, 0, len(snaps))
	for _, snap := range snaps {
		e, err := event_codec.Decode(snap.ID(), snap.Data, userID)
		if err != nil {
			s.log.Warn("Skipping malformed event record",
				logger.StringField("path", snap.Path),
				logger.ErrorField(err))
			continue
		}
		events = append(events, e)
	}
	return events
}

func eventsQuery(userID, sessionID string, after time.Time, last int) docstore.Query {
	q := docstore.Query{
		Collection: conversation.EventsPath(userID, sessionID),
		OrderBy:    event_codec.FieldTimestamp,
	}
	if !after.IsZero() {
		q.Filters = append(q.Filters, docstore.Filter{
			Field: event_codec.FieldTimestamp,
			Op:    docstore.OpGreaterThan,
			Value: event_codec.FormatTime(after),
		})
	}
	if last > 0 {
		q.LimitToLast = last
	}
	return q
}
