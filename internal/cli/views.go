package cli

import (
	"time"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/event_codec"
)

type sessionView struct {
	ID         string         `json:"id"`
	AppName    string         `json:"appName"`
	UserID     string         `json:"userId"`
	UpdateTime string         `json:"updateTime"`
	State      map[string]any `json:"state"`
	Events     []eventView    `json:"events"`
}

type eventView struct {
	ID        string           `json:"id"`
	Author    string           `json:"author"`
	Timestamp string           `json:"timestamp"`
	Role      string           `json:"role"`
	Parts     []map[string]any `json:"parts"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return event_codec.FormatTime(t)
}

func newSessionView(s *conversation.Session) sessionView {
	v := sessionView{
		ID:         s.ID,
		AppName:    s.AppName,
		UserID:     s.UserID,
		UpdateTime: formatTime(s.LastUpdateTime),
		State:      s.State,
		Events:     make([]eventView, 0, len(s.Events)),
	}
	if v.State == nil {
		v.State = map[string]any{}
	}
	for _, e := range s.Events {
		v.Events = append(v.Events, newEventView(e))
	}
	return v
}

func newEventView(e *conversation.Event) eventView {
	v := eventView{
		ID:        e.ID,
		Author:    e.Author,
		Timestamp: formatTime(e.Timestamp),
		Role:      e.Content.Role,
		Parts:     make([]map[string]any, 0, len(e.Content.Parts)),
	}
	for _, p := range e.Content.Parts {
		switch p := p.(type) {
		case conversation.Text:
			v.Parts = append(v.Parts, map[string]any{"text": p.Text})
		case conversation.FunctionCall:
			v.Parts = append(v.Parts, map[string]any{"functionCall": map[string]any{"name": p.Name, "args": p.Args}})
		case conversation.FunctionResponse:
			v.Parts = append(v.Parts, map[string]any{"functionResponse": map[string]any{"name": p.Name, "response": p.Response}})
		case conversation.FileData:
			v.Parts = append(v.Parts, map[string]any{"fileData": map[string]any{"fileUri": p.FileURI, "mimeType": p.MIMEType}})
		}
	}
	return v
}
