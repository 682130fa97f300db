package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/adk/memory"
	"google.golang.org/adk/session"

	"github.com/lewisedginton/conversation_store/internal/adk_bridge"
	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// APIPrefix is where the conversation API is mounted.
const APIPrefix = "/v1"

const maxBodyBytes = 1 << 20

// Preferences is the preference cache as the API uses it.
type Preferences interface {
	Get(ctx context.Context, userID string) (map[string]any, bool, error)
	Invalidate(userID string) bool
}

// API serves stored conversations through the agent runtime interfaces, so
// that an out-of-process runner can record and recall turns.
type API struct {
	sessions session.Service
	memory   memory.Service
	prefs    Preferences
	log      logger.Logger
}

// NewAPI creates the conversation API.
func NewAPI(sessions session.Service, mem memory.Service, prefs Preferences, log logger.Logger) *API {
	if sessions == nil || mem == nil || prefs == nil {
		panic("session, memory and preference services are required")
	}
	if log == nil {
		panic("logger cannot be nil")
	}
	return &API{sessions: sessions, memory: mem, prefs: prefs, log: log}
}

// Routes returns the API router, relative to APIPrefix.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/apps/{app}/users/{user}", func(r chi.Router) {
		r.Get("/sessions", a.listSessions)
		r.Post("/sessions", a.createSession)
		r.Get("/sessions/{session}", a.getSession)
		r.Delete("/sessions/{session}", a.deleteSession)
		r.Post("/sessions/{session}/events", a.appendEvent)
		r.Get("/memory", a.searchMemory)
	})
	r.Get("/users/{user}/preferences", a.getPreferences)
	r.Delete("/users/{user}/preferences/cache", a.invalidatePreferences)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type createSessionBody struct {
	SessionID string         `json:"sessionId"`
	State     map[string]any `json:"state"`
}

type memoryResponse struct {
	Memories []adk_bridge.MemoryView `json:"memories"`
}

type preferencesResponse struct {
	UserID      string         `json:"userId"`
	Found       bool           `json:"found"`
	Preferences map[string]any `json:"preferences"`
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	resp, err := a.sessions.List(r.Context(), &session.ListRequest{
		AppName: chi.URLParam(r, "app"),
		UserID:  chi.URLParam(r, "user"),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views := make([]adk_bridge.SessionView, 0, len(resp.Sessions))
	for _, s := range resp.Sessions {
		views = append(views, adk_bridge.NewSessionView(s))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	resp, err := a.sessions.Create(r.Context(), &session.CreateRequest{
		AppName:   chi.URLParam(r, "app"),
		UserID:    chi.URLParam(r, "user"),
		SessionID: body.SessionID,
		State:     body.State,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, adk_bridge.NewSessionView(resp.Session))
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	req := &session.GetRequest{
		AppName:   chi.URLParam(r, "app"),
		UserID:    chi.URLParam(r, "user"),
		SessionID: chi.URLParam(r, "session"),
	}
	q := r.URL.Query()
	if v := q.Get("recent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			a.writeError(w, r, fmt.Errorf("%w: recent must be a non-negative integer", conversation.ErrInvalidArgument))
			return
		}
		req.NumRecentEvents = n
	}
	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.writeError(w, r, fmt.Errorf("%w: after must be an RFC 3339 time", conversation.ErrInvalidArgument))
			return
		}
		req.After = t
	}

	resp, err := a.sessions.Get(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adk_bridge.NewSessionView(resp.Session))
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := a.sessions.Delete(r.Context(), &session.DeleteRequest{
		AppName:   chi.URLParam(r, "app"),
		UserID:    chi.URLParam(r, "user"),
		SessionID: chi.URLParam(r, "session"),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) appendEvent(w http.ResponseWriter, r *http.Request) {
	var in adk_bridge.EventInput
	if err := decodeBody(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	event, err := in.Event(logger.GetCorrelationIDFromContext(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	// Only state and the update time matter for an append, not history.
	resp, err := a.sessions.Get(r.Context(), &session.GetRequest{
		AppName:         chi.URLParam(r, "app"),
		UserID:          chi.URLParam(r, "user"),
		SessionID:       chi.URLParam(r, "session"),
		NumRecentEvents: 1,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.sessions.AppendEvent(r.Context(), resp.Session, event); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, adk_bridge.NewEventView(event))
}

func (a *API) searchMemory(w http.ResponseWriter, r *http.Request) {
	resp, err := a.memory.Search(r.Context(), &memory.SearchRequest{
		AppName: chi.URLParam(r, "app"),
		UserID:  chi.URLParam(r, "user"),
		Query:   r.URL.Query().Get("q"),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := memoryResponse{Memories: make([]adk_bridge.MemoryView, 0, len(resp.Memories))}
	for _, m := range resp.Memories {
		out.Memories = append(out.Memories, adk_bridge.NewMemoryView(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	prefs, found, err := a.prefs.Get(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if prefs == nil {
		prefs = map[string]any{}
	}
	writeJSON(w, http.StatusOK, preferencesResponse{UserID: userID, Found: found, Preferences: prefs})
}

func (a *API) invalidatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":      userID,
		"invalidated": a.prefs.Invalidate(userID),
	})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed request body: %v", conversation.ErrInvalidArgument, err)
	}
	return nil
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "INVALID_ARGUMENT"})
	case errors.Is(err, conversation.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request cancelled", Code: "CANCELLED"})
	default:
		logger.FromContext(r.Context(), a.log).Error("Conversation API request failed",
			logger.HTTPPathField(r.URL.Path),
			logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Code: "INTERNAL_ERROR"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
