package adk_bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/memory"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore/memdb"
	"github.com/lewisedginton/conversation_store/internal/memory_service"
	"github.com/lewisedginton/conversation_store/internal/session_manager"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.ErrorLevel,
		Format: "text",
	})
}

func newServices(t *testing.T) (*SessionService, *MemoryService, *memdb.Store) {
	t.Helper()
	docs := memdb.New()
	store := session_manager.NewStore(docs, testLogger())
	search := memory_service.New(memory_service.Config{Store: docs, Logger: testLogger()})
	return NewSessionService(store, testLogger()), NewMemoryService(search), docs
}

func textEvent(author, text string, ts time.Time) *session.Event {
	e := &session.Event{Author: author, Timestamp: ts}
	e.Content = genai.NewContentFromText(text, "user")
	return e
}

func TestSessionService_CreateSplitsState(t *testing.T) {
	svc, _, docs := newServices(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, &session.CreateRequest{
		AppName:   "app",
		UserID:    "u1",
		SessionID: "s1",
		State: map[string]any{
			"k":          "v",
			"app:theme":  "dark",
			"user:lang":  "fr",
			"temp:draft": "x",
		},
	})
	require.NoError(t, err)

	sess := resp.Session
	assert.Equal(t, "s1", sess.ID())
	for key, want := range map[string]any{"k": "v", "app:theme": "dark", "user:lang": "fr"} {
		got, err := sess.State().Get(key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = sess.State().Get("temp:draft")
	assert.Error(t, err)

	app, err := docs.Get(ctx, conversation.AppStatePath("app"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark"}, app.Data)
}

func TestSessionService_AppendAndGet(t *testing.T) {
	svc, _, _ := newServices(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &session.CreateRequest{AppName: "app", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	sess := created.Session

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	userTurn := textEvent("user", "hello world", ts)
	userTurn.Actions.StateDelta = map[string]any{"topic": "greeting", "user:name": "Ada", "temp:scratch": 1}
	require.NoError(t, svc.AppendEvent(ctx, sess, userTurn))
	assert.NotEmpty(t, userTurn.ID)

	partial := textEvent("agent", "hel", ts.Add(time.Second))
	partial.LLMResponse = model.LLMResponse{Content: partial.Content, Partial: true}
	require.NoError(t, svc.AppendEvent(ctx, sess, partial))

	reply := &session.Event{Author: "agent", Timestamp: ts.Add(2 * time.Second)}
	reply.Content = &genai.Content{Role: "model", Parts: []*genai.Part{
		{Text: "calling tool"},
		{FunctionCall: &genai.FunctionCall{Name: "lookup", Args: map[string]any{"q": "x"}}},
	}}
	require.NoError(t, svc.AppendEvent(ctx, sess, reply))

	// The in-memory session is kept current.
	assert.Equal(t, 2, sess.Events().Len())
	topic, err := sess.State().Get("topic")
	require.NoError(t, err)
	assert.Equal(t, "greeting", topic)
	_, err = sess.State().Get("temp:scratch")
	assert.Error(t, err)

	got, err := svc.Get(ctx, &session.GetRequest{AppName: "app", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	loaded := got.Session
	require.Equal(t, 2, loaded.Events().Len())

	first := loaded.Events().At(0)
	assert.Equal(t, userTurn.ID, first.ID)
	assert.Equal(t, "user", first.Author)
	assert.Equal(t, "user", first.Content.Role)
	assert.Equal(t, "hello world", first.Content.Parts[0].Text)

	second := loaded.Events().At(1)
	assert.Equal(t, "model", second.Content.Role)
	require.Len(t, second.Content.Parts, 2)
	assert.Equal(t, "lookup", second.Content.Parts[1].FunctionCall.Name)

	name, err := loaded.State().Get("user:name")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)
	topic, err = loaded.State().Get("topic")
	require.NoError(t, err)
	assert.Equal(t, "greeting", topic)
}

func TestSessionService_GetNotFound(t *testing.T) {
	svc, _, _ := newServices(t)
	_, err := svc.Get(context.Background(), &session.GetRequest{AppName: "a", UserID: "u", SessionID: "nope"})
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
}

func TestSessionService_ListAndDelete(t *testing.T) {
	svc, _, _ := newServices(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		_, err := svc.Create(ctx, &session.CreateRequest{AppName: "app", UserID: "u1", SessionID: id})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, &session.ListRequest{AppName: "app", UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, list.Sessions, 2)
	for _, s := range list.Sessions {
		assert.Equal(t, 0, s.Events().Len())
	}

	require.NoError(t, svc.Delete(ctx, &session.DeleteRequest{AppName: "app", UserID: "u1", SessionID: "s1"}))
	list, err = svc.List(ctx, &session.ListRequest{AppName: "app", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "s2", list.Sessions[0].ID())
}

func TestSessionService_NilRequests(t *testing.T) {
	svc, _, _ := newServices(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, nil)
	assert.ErrorIs(t, err, conversation.ErrInvalidArgument)
	_, err = svc.Get(ctx, nil)
	assert.ErrorIs(t, err, conversation.ErrInvalidArgument)
	assert.ErrorIs(t, svc.Delete(ctx, nil), conversation.ErrInvalidArgument)
	assert.ErrorIs(t, svc.AppendEvent(ctx, nil, nil), conversation.ErrInvalidArgument)
}

func TestMemoryService_Search(t *testing.T) {
	svc, mem, _ := newServices(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &session.CreateRequest{AppName: "app", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, svc.AppendEvent(ctx, created.Session,
		textEvent("user", "schedule an appointment for Monday", time.Now())))

	require.NoError(t, mem.AddSession(ctx, created.Session))

	resp, err := mem.Search(ctx, &memory.SearchRequest{AppName: "app", UserID: "u1", Query: "Monday appointment"})
	require.NoError(t, err)
	require.Len(t, resp.Memories, 1)
	assert.Equal(t, "u1", resp.Memories[0].Author)
	assert.Equal(t, "schedule an appointment for Monday", resp.Memories[0].Content.Parts[0].Text)

	resp, err = mem.Search(ctx, &memory.SearchRequest{AppName: "app", UserID: "u1", Query: "refund"})
	require.NoError(t, err)
	assert.Empty(t, resp.Memories)
}

func TestToStoreKeys(t *testing.T) {
	got := toStoreKeys(map[string]any{
		"app:a":  1,
		"user:b": 2,
		"temp:c": 3,
		"d":      nil,
	})
	assert.Equal(t, map[string]any{"_app_a": 1, "_user_b": 2, "d": nil}, got)
	assert.Nil(t, toStoreKeys(nil))
}

func TestContentConversion(t *testing.T) {
	in := &genai.Content{Role: "model", Parts: []*genai.Part{
		{Text: "hi"},
		{FunctionResponse: &genai.FunctionResponse{Name: "f", Response: map[string]any{"ok": true}}},
		{FileData: &genai.FileData{FileURI: "gs://b/o", MIMEType: "text/plain"}},
		{InlineData: &genai.Blob{Data: []byte("x"), MIMEType: "text/plain"}},
		nil,
	}}

	c := fromGenai(in)
	require.Len(t, c.Parts, 3)

	out := toGenai(c)
	assert.Equal(t, "model", out.Role)
	assert.Equal(t, "hi", out.Parts[0].Text)
	assert.Equal(t, "f", out.Parts[1].FunctionResponse.Name)
	assert.Equal(t, "gs://b/o", out.Parts[2].FileData.FileURI)
}
