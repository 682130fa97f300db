// Package adk_bridge exposes the conversation store as the ADK session and
// memory services, so an agent runner can persist its event stream directly.
package adk_bridge //nolint:revive // var-naming: using underscores for domain clarity

import (
	"strings"

	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/state_scope"
)

// fromGenai keeps the parts the store can represent. Inline data, code
// execution and thought signatures are dropped.
func fromGenai(c *genai.Content) conversation.Content {
	if c == nil {
		return conversation.Content{}
	}
	out := conversation.Content{Role: c.Role}
	for _, p := range c.Parts {
		if p == nil {
			continue
		}
		switch {
		case p.FunctionCall != nil:
			out.Parts = append(out.Parts, conversation.FunctionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
		case p.FunctionResponse != nil:
			out.Parts = append(out.Parts, conversation.FunctionResponse{Name: p.FunctionResponse.Name, Response: p.FunctionResponse.Response})
		case p.FileData != nil:
			out.Parts = append(out.Parts, conversation.FileData{FileURI: p.FileData.FileURI, MIMEType: p.FileData.MIMEType})
		case p.Text != "":
			out.Parts = append(out.Parts, conversation.Text{Text: p.Text})
		}
	}
	return out
}

func toGenai(c conversation.Content) *genai.Content {
	out := &genai.Content{
		Role:  c.Role,
		Parts: make([]*genai.Part, 0, len(c.Parts)),
	}
	for _, p := range c.Parts {
		switch v := p.(type) {
		case conversation.Text:
			out.Parts = append(out.Parts, &genai.Part{Text: v.Text})
		case conversation.FunctionCall:
			out.Parts = append(out.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: v.Name, Args: v.Args}})
		case conversation.FunctionResponse:
			out.Parts = append(out.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{Name: v.Name, Response: v.Response}})
		case conversation.FileData:
			out.Parts = append(out.Parts, &genai.Part{FileData: &genai.FileData{FileURI: v.FileURI, MIMEType: v.MIMEType}})
		}
	}
	return out
}

// toEvent converts an ADK event for storage. Temporary state keys are dropped
// and app/user keys are renamed to the store's scope prefixes.
func toEvent(e *session.Event) *conversation.Event {
	return &conversation.Event{
		ID:        e.ID,
		Author:    e.Author,
		Timestamp: e.Timestamp,
		Content:   fromGenai(e.Content),
		Actions:   conversation.EventActions{StateDelta: toStoreKeys(e.Actions.StateDelta)},
	}
}

// fromEvent converts a stored event for the runner. The store records user
// turns under the user's id; ADK expects the "user" author back.
func fromEvent(e *conversation.Event, userID string) *session.Event {
	author := e.Author
	if strings.EqualFold(author, userID) {
		author = conversation.RoleUser
	}
	out := &session.Event{
		ID:        e.ID,
		Author:    author,
		Timestamp: e.Timestamp,
	}
	out.Content = toGenai(e.Content)
	return out
}

func isTemporaryKey(key string) bool {
	return strings.HasPrefix(key, session.KeyPrefixTemp)
}

// toStoreKeys maps "app:k" to "_app_k" and "user:k" to "_user_k", dropping
// "temp:" keys.
func toStoreKeys(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		switch {
		case isTemporaryKey(k):
		case strings.HasPrefix(k, session.KeyPrefixApp):
			out[state_scope.AppPrefix+strings.TrimPrefix(k, session.KeyPrefixApp)] = v
		case strings.HasPrefix(k, session.KeyPrefixUser):
			out[state_scope.UserPrefix+strings.TrimPrefix(k, session.KeyPrefixUser)] = v
		default:
			out[k] = v
		}
	}
	return out
}

// mergedState is the ADK view of a session: its own state plus the app and
// user scopes under their ADK prefixes.
func mergedState(sessionState, app, user map[string]any) map[string]any {
	out := make(map[string]any, len(sessionState)+len(app)+len(user))
	for k, v := range sessionState {
		out[k] = v
	}
	for k, v := range app {
		out[session.KeyPrefixApp+k] = v
	}
	for k, v := range user {
		out[session.KeyPrefixUser+k] = v
	}
	return out
}
