// Package server runs the HTTP endpoints of the conversation store: health
// checks, Prometheus metrics and, when configured, the conversation API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appconfig "github.com/lewisedginton/conversation_store/internal/config"
	"github.com/lewisedginton/conversation_store/pkg/health"
	"github.com/lewisedginton/conversation_store/pkg/httpmiddleware"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

// Endpoint paths.
const (
	LivenessPath  = "/healthz/live"
	ReadinessPath = "/healthz/ready"
	MetricsPath   = "/metrics"
)

const shutdownTimeout = 10 * time.Second

// Server is the ops HTTP server.
type Server struct {
	cfg     *appconfig.AppConfig
	log     logger.Logger
	health  *health.HealthChecker
	metrics *metrics.Metrics
	api     *API
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAPI mounts the conversation API under APIPrefix.
func WithAPI(api *API) Option {
	return func(s *Server) { s.api = api }
}

// New builds the server. m may be nil, in which case /metrics is not mounted.
func New(cfg *appconfig.AppConfig, log logger.Logger, checker *health.HealthChecker, m *metrics.Metrics, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log,
		health:  checker,
		metrics: m,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return s
}

// Handler returns the router with every middleware and route installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.EnableLogging = true
	mw.Timeout = s.cfg.HTTP.WriteTimeout
	if len(s.cfg.HTTP.AllowedOrigins) > 0 {
		mw.CORS.AllowedOrigins = s.cfg.HTTP.AllowedOrigins
	} else {
		mw.EnableCORS = false
	}
	httpmiddleware.ApplyToRouter(r, mw)

	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware())
		r.Method(http.MethodGet, MetricsPath, s.metrics.Handler())
	}
	r.Get(LivenessPath, s.health.LivenessHandler())
	r.Get(ReadinessPath, s.health.ReadinessHandler())
	if s.api != nil {
		r.Mount(APIPrefix, s.api.Routes())
	}

	return r
}

// Listen starts serving in the background. It returns a channel that
// receives a fatal serve error, a forceful closer and a graceful closer.
func (s *Server) Listen() (chan error, func(), func()) {
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)
		s.log.Info("Starting HTTP server", logger.StringField("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	closer := func() {
		s.log.Info("Forcefully closing HTTP server")
		if err := s.server.Close(); err != nil {
			s.log.Error("Error during forced shutdown", logger.ErrorField(err))
		}
	}

	gracefulCloser := func() {
		s.log.Info("Gracefully closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.log.Error("Error during graceful shutdown", logger.ErrorField(err))
		}
	}

	return errChan, closer, gracefulCloser
}
