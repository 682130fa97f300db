package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/unrolled/secure"
)

// CORSConfig represents CORS configuration options
type CORSConfig struct {
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowedOrigins   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig allows the methods the ops endpoints and the conversation
// API use.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Correlation-ID"},
		AllowedOrigins: []string{"https://*", "http://*"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}
}

// CORS middleware configures Cross-Origin Resource Sharing
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedMethods:   config.AllowedMethods,
		AllowedHeaders:   config.AllowedHeaders,
		AllowedOrigins:   config.AllowedOrigins,
		ExposedHeaders:   config.ExposedHeaders,
		AllowCredentials: config.AllowCredentials,
		MaxAge:           config.MaxAge,
	})
}

// DefaultSecurityOptions sets the headers that matter for JSON endpoints.
// TLS is terminated in front of the service, so no redirect or HSTS here.
func DefaultSecurityOptions() secure.Options {
	return secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	}
}

// Security middleware adds security headers
func Security(opts *secure.Options) func(http.Handler) http.Handler {
	if opts == nil {
		o := DefaultSecurityOptions()
		opts = &o
	}
	return secure.New(*opts).Handler
}
