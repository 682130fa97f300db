package adk_bridge

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/event_codec"
)

// SessionView is the JSON form of a session as the agent runtime sees it:
// state carries the app: and user: keys next to the session's own.
type SessionView struct {
	ID         string         `json:"id"`
	AppName    string         `json:"appName"`
	UserID     string         `json:"userId"`
	UpdateTime string         `json:"updateTime"`
	State      map[string]any `json:"state"`
	Events     []EventView    `json:"events"`
}

// EventView is the JSON form of one event.
type EventView struct {
	ID         string         `json:"id"`
	Author     string         `json:"author"`
	Timestamp  string         `json:"timestamp"`
	Content    *genai.Content `json:"content,omitempty"`
	StateDelta map[string]any `json:"stateDelta,omitempty"`
}

// MemoryView is the JSON form of a memory search hit.
type MemoryView struct {
	Author    string         `json:"author"`
	Timestamp string         `json:"timestamp"`
	Content   *genai.Content `json:"content"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return event_codec.FormatTime(t)
}

// NewSessionView renders sess with its state and events.
func NewSessionView(sess session.Session) SessionView {
	v := SessionView{
		ID:         sess.ID(),
		AppName:    sess.AppName(),
		UserID:     sess.UserID(),
		UpdateTime: formatTime(sess.LastUpdateTime()),
		State:      map[string]any{},
		Events:     make([]EventView, 0, sess.Events().Len()),
	}
	for k, val := range sess.State().All() {
		v.State[k] = val
	}
	for e := range sess.Events().All() {
		v.Events = append(v.Events, NewEventView(e))
	}
	return v
}

// NewEventView renders e.
func NewEventView(e *session.Event) EventView {
	v := EventView{
		ID:        e.ID,
		Author:    e.Author,
		Timestamp: formatTime(e.Timestamp),
		Content:   e.Content,
	}
	if len(e.Actions.StateDelta) > 0 {
		v.StateDelta = e.Actions.StateDelta
	}
	return v
}

// NewMemoryView renders a memory hit.
func NewMemoryView(m memory.Entry) MemoryView {
	return MemoryView{
		Author:    m.Author,
		Timestamp: formatTime(m.Timestamp),
		Content:   m.Content,
	}
}

// EventInput is a completed turn submitted from outside an agent runtime.
type EventInput struct {
	// Author is "user" for the user's own turns, otherwise the agent name.
	Author     string         `json:"author"`
	Text       string         `json:"text"`
	StateDelta map[string]any `json:"stateDelta,omitempty"`
	// Timestamp defaults to now.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Event builds the session event for in. Agent authors speak with the model
// role.
func (in EventInput) Event(invocationID string) (*session.Event, error) {
	author := strings.TrimSpace(in.Author)
	if author == "" {
		return nil, fmt.Errorf("%w: event author is required", conversation.ErrInvalidArgument)
	}
	role := genai.Role(genai.RoleModel)
	if strings.EqualFold(author, conversation.RoleUser) {
		role = genai.RoleUser
	}

	e := session.NewEvent(invocationID)
	e.Author = author
	if !in.Timestamp.IsZero() {
		e.Timestamp = in.Timestamp
	}
	if in.Text != "" {
		e.Content = genai.NewContentFromText(in.Text, role)
	}
	for k, v := range in.StateDelta {
		e.Actions.StateDelta[k] = v
	}
	return e, nil
}

// Stored builds the store's form of in directly, for callers that record
// events without an agent runtime session.
func (in EventInput) Stored() (*conversation.Event, error) {
	e, err := in.Event("")
	if err != nil {
		return nil, err
	}
	return toEvent(e), nil
}
