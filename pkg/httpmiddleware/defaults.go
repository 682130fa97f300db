package httpmiddleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger   logger.Logger // Required for logging middleware
	CORS     *CORSConfig
	Security *secure.Options // nil uses DefaultSecurityOptions
	Timeout  time.Duration

	EnableCorrelationID bool
	EnableLogging       bool // requires Logger
	EnableRecovery      bool
	EnableCORS          bool
	EnableSecurity      bool
	EnableRealIP        bool
	EnableTimeout       bool
	EnableHeartbeat     bool // serves /ping
}

// DefaultConfig returns the middleware stack of the ops server. Logging is
// off until a Logger is set.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		CORS:    &corsConfig,
		Timeout: 30 * time.Second,

		EnableCorrelationID: true,
		EnableRecovery:      true,
		EnableCORS:          true,
		EnableSecurity:      true,
		EnableRealIP:        true,
		EnableTimeout:       true,
		EnableHeartbeat:     true,
	}
}

// ApplyToRouter installs the enabled middleware, outermost first:
// correlation id, security headers, real IP, logging, recovery, CORS,
// timeout, heartbeat.
func ApplyToRouter(router chi.Router, config Config) {
	if config.EnableCorrelationID {
		router.Use(CorrelationID())
	}
	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}
	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}
	if config.EnableLogging && config.Logger != nil {
		router.Use(NewHTTPLogger(config.Logger).Middleware)
	}
	if config.EnableRecovery {
		router.Use(Recovery(config.Logger))
	}
	if config.EnableCORS && config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}
	if config.EnableTimeout && config.Timeout > 0 {
		router.Use(middleware.Timeout(config.Timeout))
	}
	if config.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// WithLogger applies DefaultConfig with request logging to log.
func WithLogger(router chi.Router, log logger.Logger) {
	config := DefaultConfig()
	config.Logger = log
	config.EnableLogging = true
	ApplyToRouter(router, config)
}
