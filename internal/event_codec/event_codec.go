// Package event_codec converts conversation events to and from the flat
// document records kept under a session's event sub-collection.
package event_codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/keywords"
)

// TimeLayout is fixed-width UTC with millisecond precision, so that string
// order equals time order in every backend.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Record field names.
const (
	FieldAuthor    = "author"
	FieldTimestamp = "timestamp"
	FieldAppName   = "appName"
	FieldUserID    = "userId"
	FieldContent   = "content"
	FieldParts     = "parts"
	FieldKeywords  = "keywords"
)

const (
	partText             = "text"
	partFunctionCall     = "functionCall"
	partFunctionResponse = "functionResponse"
	partFileData         = "fileData"
)

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts TimeLayout and any RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Encode builds the stored record of e for a session owned by (appName, userID)
// and returns the keyword set of its text parts. An author of "user" is stored
// as userID so that role inference works on read. The keywords field is only
// written when the set is non-empty.
func Encode(e *conversation.Event, appName, userID string) (map[string]any, keywords.Set) {
	author := e.Author
	if strings.EqualFold(author, conversation.RoleUser) {
		author = userID
	}

	parts := make([]any, 0, len(e.Content.Parts))
	for _, p := range e.Content.Parts {
		if enc := encodePart(p); enc != nil {
			parts = append(parts, enc)
		}
	}

	kw := keywords.ExtractAll(e.Content.Texts()...)
	record := map[string]any{
		FieldAuthor:    author,
		FieldTimestamp: FormatTime(e.Timestamp),
		FieldAppName:   appName,
		FieldUserID:    userID,
		FieldContent:   map[string]any{FieldParts: parts},
	}
	if len(kw) > 0 {
		record[FieldKeywords] = kw.Sorted()
	}
	return record, kw
}

func encodePart(p conversation.Part) map[string]any {
	switch v := p.(type) {
	case conversation.Text:
		return map[string]any{partText: v.Text}
	case conversation.FunctionCall:
		fc := map[string]any{"name": v.Name}
		if v.Args != nil {
			fc["args"] = v.Args
		}
		return map[string]any{partFunctionCall: fc}
	case conversation.FunctionResponse:
		fr := map[string]any{"name": v.Name}
		if v.Response != nil {
			fr["response"] = v.Response
		}
		return map[string]any{partFunctionResponse: fr}
	case conversation.FileData:
		return map[string]any{partFileData: map[string]any{"fileUri": v.FileURI, "mimeType": v.MIMEType}}
	default:
		return nil
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", conversation.ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// Decode rebuilds an event from its stored record. userID is the owner of the
// session and drives role inference. Missing author, timestamp or content, or
// fields of the wrong type, yield ErrMalformedRecord. Parts of unknown shape
// are skipped.
func Decode(id string, data map[string]any, userID string) (*conversation.Event, error) {
	author, ts, content, err := decodeCommon(data)
	if err != nil {
		return nil, err
	}
	e := &conversation.Event{
		ID:        id,
		Author:    author,
		Timestamp: ts,
		Content:   content,
	}
	e.Content.Role = conversation.RoleOf(e, userID)
	return e, nil
}

// DecodeMemory projects a stored record into a search hit. Only text parts are
// kept, and the content role is the record's author.
func DecodeMemory(data map[string]any) (conversation.MemoryEntry, error) {
	author, ts, content, err := decodeCommon(data)
	if err != nil {
		return conversation.MemoryEntry{}, err
	}
	content.Role = author
	return conversation.MemoryEntry{
		Author:    author,
		Timestamp: ts,
		Content:   content.TextOnly(),
	}, nil
}

func decodeCommon(data map[string]any) (string, time.Time, conversation.Content, error) {
	var content conversation.Content
	if data == nil {
		return "", time.Time{}, content, malformed("empty record")
	}

	author, ok := data[FieldAuthor].(string)
	if !ok || author == "" {
		return "", time.Time{}, content, malformed("missing author")
	}
	raw, ok := data[FieldTimestamp].(string)
	if !ok {
		return "", time.Time{}, content, malformed("missing timestamp")
	}
	ts, err := ParseTime(raw)
	if err != nil {
		return "", time.Time{}, content, malformed("bad timestamp %q", raw)
	}
	cm, ok := data[FieldContent].(map[string]any)
	if !ok {
		return "", time.Time{}, content, malformed("missing content")
	}

	if rawParts, present := cm[FieldParts]; present && rawParts != nil {
		list, ok := rawParts.([]any)
		if !ok {
			return "", time.Time{}, content, malformed("parts is %T", rawParts)
		}
		for i, rp := range list {
			pm, ok := rp.(map[string]any)
			if !ok {
				return "", time.Time{}, content, malformed("part %d is %T", i, rp)
			}
			part, err := decodePart(pm)
			if err != nil {
				return "", time.Time{}, content, malformed("part %d: %v", i, err)
			}
			if part != nil {
				content.Parts = append(content.Parts, part)
			}
		}
	}
	return author, ts.UTC(), content, nil
}

func decodePart(pm map[string]any) (conversation.Part, error) {
	if v, ok := pm[partText]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("text is %T", v)
		}
		return conversation.Text{Text: s}, nil
	}
	if v, ok := pm[partFunctionCall]; ok {
		m, err := asMap(v)
		if err != nil || m == nil {
			return nil, err
		}
		name, _ := m["name"].(string)
		args, err := asMap(m["args"])
		if err != nil {
			return nil, err
		}
		return conversation.FunctionCall{Name: name, Args: args}, nil
	}
	if v, ok := pm[partFunctionResponse]; ok {
		m, err := asMap(v)
		if err != nil || m == nil {
			return nil, err
		}
		name, _ := m["name"].(string)
		resp, err := asMap(m["response"])
		if err != nil {
			return nil, err
		}
		return conversation.FunctionResponse{Name: name, Response: resp}, nil
	}
	if v, ok := pm[partFileData]; ok {
		m, err := asMap(v)
		if err != nil || m == nil {
			return nil, err
		}
		uri, _ := m["fileUri"].(string)
		mime, _ := m["mimeType"].(string)
		return conversation.FileData{FileURI: uri, MIMEType: mime}, nil
	}
	return nil, nil
}

func asMap(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	return m, nil
}
