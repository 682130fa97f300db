package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/conversation_store/internal/adk_bridge"
	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore/sqlitedb"
	"github.com/lewisedginton/conversation_store/internal/session_manager"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// seed writes one session with two events and a preferences document into a
// fresh SQLite file and points the configuration at it.
func seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("STORAGE_SQLITE_PATH", path)

	docs, err := sqlitedb.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, docs.Close()) }()

	store := session_manager.NewStore(docs, logger.NewNopLogger())
	sess, err := store.CreateSession(ctx, session_manager.CreateRequest{
		AppName:   "chat",
		UserID:    "u1",
		SessionID: "s1",
		State:     map[string]any{"topic": "travel"},
	})
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, sess, &conversation.Event{
		Author:    "user",
		Timestamp: t0,
		Content:   conversation.NewTextContent(conversation.RoleUser, "Planning a trip to Lisbon"),
	})
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, sess, &conversation.Event{
		Author:    "travel_agent",
		Timestamp: t0.Add(time.Minute),
		Content:   conversation.NewTextContent(conversation.RoleModel, "Lisbon is lovely in spring"),
	})
	require.NoError(t, err)

	require.NoError(t, docs.Set(ctx, conversation.PreferencesPath("u1"), map[string]any{"language": "pt"}))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWithInput(t, "", args...)
}

func runWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp("test")
	app.Reader = strings.NewReader(input)
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(context.Background(), append([]string{"convostore"}, args...))
	return out.String(), err
}

func TestSessionsList(t *testing.T) {
	seed(t)

	out, err := run(t, "sessions", "list", "chat", "u1")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0]["id"])
	assert.Equal(t, "chat", got[0]["appName"])
}

func TestSessionsGet(t *testing.T) {
	seed(t)

	out, err := run(t, "sessions", "get", "--recent", "1", "chat", "u1", "s1")
	require.NoError(t, err)

	var got sessionView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "travel", got.State["topic"])
	require.Len(t, got.Events, 1)
	assert.Equal(t, "travel_agent", got.Events[0].Author)
	assert.Equal(t, conversation.RoleModel, got.Events[0].Role)
	assert.Equal(t, "Lisbon is lovely in spring", got.Events[0].Parts[0]["text"])
}

func TestSessionsEvents(t *testing.T) {
	seed(t)

	out, err := run(t, "sessions", "events", "chat", "u1", "s1")
	require.NoError(t, err)

	var got []eventView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].Author)
	assert.Equal(t, conversation.RoleUser, got[0].Role)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", got[0].Timestamp)
}

func TestSessionsDelete(t *testing.T) {
	seed(t)

	_, err := run(t, "sessions", "delete", "chat", "u1", "s1")
	require.NoError(t, err)

	_, err = run(t, "sessions", "get", "chat", "u1", "s1")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)

	out, err := run(t, "sessions", "list", "chat", "u1")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestSessionsUsage(t *testing.T) {
	seed(t)

	_, err := run(t, "sessions", "get", "chat", "u1")
	require.Error(t, err)
	exitErr, ok := err.(cli.ExitCoder)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestMemorySearch(t *testing.T) {
	seed(t)

	out, err := run(t, "memory", "search", "chat", "u1", "what", "about", "Lisbon?")
	require.NoError(t, err)

	var got []adk_bridge.MemoryView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	authors := []string{got[0].Author, got[1].Author}
	assert.ElementsMatch(t, []string{"u1", "travel_agent"}, authors)
	for _, m := range got {
		require.NotNil(t, m.Content)
		assert.Contains(t, m.Content.Parts[0].Text, "Lisbon")
	}

	out, err = run(t, "memory", "search", "chat", "u2", "Lisbon")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestSessionsCreate(t *testing.T) {
	seed(t)

	out, err := run(t, "sessions", "create", "--state", `{"topic":"food","app:greeting":"hi"}`, "chat", "u1", "s2")
	require.NoError(t, err)

	var created adk_bridge.SessionView
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "s2", created.ID)
	assert.Equal(t, "food", created.State["topic"])
	assert.Equal(t, "hi", created.State["app:greeting"])
	assert.Empty(t, created.Events)

	out, err = run(t, "state", "get", "chat", "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"app":{"greeting":"hi"},"user":{}}`, out)

	_, err = run(t, "sessions", "create", "--state", "not json", "chat", "u1")
	require.Error(t, err)
	exitErr, ok := err.(cli.ExitCoder)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestSessionsCreateGeneratesID(t *testing.T) {
	seed(t)

	out, err := run(t, "sessions", "create", "chat", "u1")
	require.NoError(t, err)

	var created adk_bridge.SessionView
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.NotEmpty(t, created.ID)

	out, err = run(t, "sessions", "list", "chat", "u1")
	require.NoError(t, err)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Len(t, listed, 2)
}

func TestEventsAppend(t *testing.T) {
	seed(t)

	out, err := run(t, "events", "append", "--text", "Any good museums in Lisbon?", "--state-delta", `{"step":2}`, "chat", "u1", "s1")
	require.NoError(t, err)

	var appended adk_bridge.EventView
	require.NoError(t, json.Unmarshal([]byte(out), &appended))
	assert.NotEmpty(t, appended.ID)
	assert.Equal(t, "user", appended.Author)
	assert.Equal(t, "user", appended.Content.Role)

	out, err = run(t, "sessions", "get", "chat", "u1", "s1")
	require.NoError(t, err)
	var got sessionView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Events, 3)
	assert.Equal(t, "Any good museums in Lisbon?", got.Events[2].Parts[0]["text"])
	assert.Equal(t, float64(2), got.State["step"])

	out, err = run(t, "memory", "search", "chat", "u1", "museums")
	require.NoError(t, err)
	var hits []adk_bridge.MemoryView
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	assert.Len(t, hits, 1)
}

func TestEventsAppendToMissingSession(t *testing.T) {
	seed(t)

	_, err := run(t, "events", "append", "--text", "hello", "chat", "u1", "nope")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)

	_, err = run(t, "events", "append", "--author", " ", "--text", "hello", "chat", "u1", "s1")
	assert.ErrorIs(t, err, conversation.ErrInvalidArgument)
}

func TestEventsImport(t *testing.T) {
	seed(t)

	input := `{"author":"user","text":"Booking a hotel in Porto","timestamp":"2024-05-02T09:00:00Z"}
{"author":"travel_agent","text":"Porto has great hotels by the river","timestamp":"2024-05-02T09:01:00Z"}
`
	out, err := runWithInput(t, input, "events", "import", "chat", "u1", "trip")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionId":"trip","recorded":2}`, out)

	out, err = run(t, "sessions", "events", "chat", "u1", "trip")
	require.NoError(t, err)
	var got []eventView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-02T09:00:00.000Z", got[0].Timestamp)
	assert.Equal(t, conversation.RoleModel, got[1].Role)

	out, err = runWithInput(t, "{\"author\":\"user\",\"text\":\"more\"}\n{broken", "events", "import", "chat", "u1", "trip")
	require.Error(t, err)
	assert.ErrorIs(t, err, conversation.ErrInvalidArgument)
	assert.Empty(t, out)

	out, err = run(t, "sessions", "events", "chat", "u1", "trip")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 3)
}

func TestStateSet(t *testing.T) {
	seed(t)

	out, err := run(t, "state", "set", "--app", `{"model":"small"}`, "--user", `{"name":"Ana"}`, "chat", "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"app":{"model":"small"},"user":{"name":"Ana"}}`, out)

	out, err = run(t, "sessions", "get", "--recent", "1", "chat", "u1", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, `"topic": "travel"`)

	_, err = run(t, "state", "set", "chat", "u1")
	require.Error(t, err)
	exitErr, ok := err.(cli.ExitCoder)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.ExitCode())

	_, err = run(t, "state", "set", "--app", "[1,2]", "chat", "u1")
	require.Error(t, err)
}

func TestPrefsGet(t *testing.T) {
	seed(t)

	out, err := run(t, "prefs", "get", "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u1","found":true,"preferences":{"language":"pt"}}`, out)

	out, err = run(t, "prefs", "get", "nobody")
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"nobody","found":false,"preferences":{}}`, out)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "mongo")

	_, err := run(t, "sessions", "list", "chat", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage backend must be one of")
}
