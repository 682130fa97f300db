package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// HTTPServerConfig holds listener settings for the operational HTTP server.
type HTTPServerConfig struct {
	Port         int           `env:"HTTP_PORT" yaml:"port" default:"8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" yaml:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" yaml:"write_timeout" default:"15s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`
	// AllowedOrigins feeds the CORS middleware. Empty disables CORS headers.
	AllowedOrigins []string `env:"HTTP_ALLOWED_ORIGINS" yaml:"allowed_origins"`
}

// Validate checks the port range.
func (h HTTPServerConfig) Validate() error {
	var result error
	if h.Port < 1 || h.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("http port must be between 1-65535, got %d", h.Port))
	}
	return result
}
