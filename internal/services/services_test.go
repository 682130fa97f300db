package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	appconfig "github.com/lewisedginton/conversation_store/internal/config"
	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

func TestOpenSharesOneBackend(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNopLogger()
	m := metrics.NewMetrics("test", false, log)
	cfg := &appconfig.AppConfig{Storage: appconfig.StorageConfig{Backend: appconfig.BackendMemory}}

	svc, err := Open(ctx, cfg, log, m)
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()
	assert.Equal(t, appconfig.BackendMemory, svc.Backend.Name)

	created, err := svc.Sessions.Create(ctx, &session.CreateRequest{AppName: "chat", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	event := session.NewEvent("inv-1")
	event.Author = "travel_agent"
	event.Content = genai.NewContentFromText("Lisbon is lovely in spring", genai.RoleModel)
	require.NoError(t, svc.Sessions.AppendEvent(ctx, created.Session, event))

	// Written through the agent runtime view, read back through the store.
	stored, err := svc.Store.ListEvents(ctx, "chat", "u1", "s1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, event.ID, stored[0].ID)

	resp, err := svc.Recall.Search(ctx, &memory.SearchRequest{AppName: "chat", UserID: "u1", Query: "spring"})
	require.NoError(t, err)
	require.Len(t, resp.Memories, 1)
	assert.Equal(t, "travel_agent", resp.Memories[0].Author)

	require.NoError(t, svc.Backend.Store.Set(ctx, conversation.PreferencesPath("u1"), map[string]any{"tone": "brief"}))
	prefs, found, err := svc.Preferences.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "brief", prefs["tone"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("append_event", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreferenceCache.WithLabelValues("miss")))
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := &appconfig.AppConfig{Storage: appconfig.StorageConfig{Backend: "mongo"}}

	_, err := Open(context.Background(), cfg, logger.NewNopLogger(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open storage")
}
