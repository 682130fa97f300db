package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/conversation_store/internal/adk_bridge"
	"github.com/lewisedginton/conversation_store/internal/backend"
	appconfig "github.com/lewisedginton/conversation_store/internal/config"
	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/docstore/memdb"
	"github.com/lewisedginton/conversation_store/internal/services"
	"github.com/lewisedginton/conversation_store/pkg/health"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

func newAPIServer(t *testing.T) (http.Handler, *services.Services, *metrics.Metrics) {
	t.Helper()
	log := logger.NewNopLogger()
	m := metrics.NewMetrics("test", false, log)
	svc := services.New(&backend.Backend{Name: "memory", Store: memdb.New()}, appconfig.MemoryConfig{}, log, m)
	t.Cleanup(func() { _ = svc.Close() })

	checker := health.New(health.WithTimeout(time.Second), health.WithFailureThreshold(1))
	api := NewAPI(svc.Sessions, svc.Recall, svc.Preferences, log)
	return New(testConfig(), log, checker, m, WithAPI(api)).Handler(), svc, m
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPIConversationRoundTrip(t *testing.T) {
	h, _, m := newAPIServer(t)
	const base = APIPrefix + "/apps/chat/users/u1"

	rec := call(h, http.MethodPost, base+"/sessions", `{"sessionId":"s1","state":{"topic":"travel","user:name":"Ana"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[adk_bridge.SessionView](t, rec)
	assert.Equal(t, "s1", created.ID)
	assert.Equal(t, "travel", created.State["topic"])
	assert.Equal(t, "Ana", created.State["user:name"])

	rec = call(h, http.MethodPost, base+"/sessions/s1/events", `{"author":"user","text":"Planning a trip to Lisbon"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[adk_bridge.EventView](t, rec)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "user", first.Content.Role)

	rec = call(h, http.MethodPost, base+"/sessions/s1/events", `{"author":"travel_agent","text":"Lisbon is lovely in spring","stateDelta":{"step":2}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(h, http.MethodGet, base+"/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[adk_bridge.SessionView](t, rec)
	require.Len(t, got.Events, 2)
	assert.Equal(t, first.ID, got.Events[0].ID)
	assert.Equal(t, "user", got.Events[0].Author)
	assert.Equal(t, "travel_agent", got.Events[1].Author)
	assert.EqualValues(t, 2, got.State["step"])
	assert.Equal(t, "Ana", got.State["user:name"])

	rec = call(h, http.MethodGet, base+"/sessions/s1?recent=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	recent := decode[adk_bridge.SessionView](t, rec)
	require.Len(t, recent.Events, 1)
	assert.Equal(t, "travel_agent", recent.Events[0].Author)

	rec = call(h, http.MethodGet, base+"/memory?q=what+about+Lisbon", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hits := decode[struct {
		Memories []adk_bridge.MemoryView `json:"memories"`
	}](t, rec)
	assert.Len(t, hits.Memories, 2)

	rec = call(h, http.MethodGet, base+"/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]adk_bridge.SessionView](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "s1", listed[0].ID)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("append_event", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("create_session", metrics.OutcomeOK)))

	rec = call(h, http.MethodDelete, base+"/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(h, http.MethodGet, base+"/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, rec).Code)
}

func TestAPIRejectsBadInput(t *testing.T) {
	h, _, _ := newAPIServer(t)
	const base = APIPrefix + "/apps/chat/users/u1"

	rec := call(h, http.MethodPost, base+"/sessions", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "malformed body", method: http.MethodPost, path: base + "/sessions/s1/events", body: `{`, status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "missing author", method: http.MethodPost, path: base + "/sessions/s1/events", body: `{"text":"hi"}`, status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "unknown session", method: http.MethodPost, path: base + "/sessions/nope/events", body: `{"author":"user","text":"hi"}`, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "negative recent", method: http.MethodGet, path: base + "/sessions/s1?recent=-1", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "bad after", method: http.MethodGet, path: base + "/sessions/s1?after=yesterday", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Code)
		})
	}
}

func TestAPIDeleteMissingSession(t *testing.T) {
	h, _, _ := newAPIServer(t)

	rec := call(h, http.MethodDelete, APIPrefix+"/apps/chat/users/u1/sessions/nope", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIPreferences(t *testing.T) {
	h, svc, m := newAPIServer(t)
	require.NoError(t, svc.Backend.Store.Set(context.Background(), conversation.PreferencesPath("u1"), map[string]any{"language": "pt"}))

	rec := call(h, http.MethodGet, APIPrefix+"/users/u1/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"u1","found":true,"preferences":{"language":"pt"}}`, rec.Body.String())

	rec = call(h, http.MethodGet, APIPrefix+"/users/u1/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreferenceCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreferenceCache.WithLabelValues("hit")))

	rec = call(h, http.MethodDelete, APIPrefix+"/users/u1/preferences/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"u1","invalidated":true}`, rec.Body.String())

	rec = call(h, http.MethodGet, APIPrefix+"/users/nobody/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"nobody","found":false,"preferences":{}}`, rec.Body.String())
}
