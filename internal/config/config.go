// Package config holds the application configuration of the conversation store.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/conversation_store/pkg/config"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	config.CommonConfig `yaml:",inline"`

	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"convostore"`

	HTTP    config.HTTPServerConfig `yaml:"http"`
	Metrics config.MetricsConfig    `yaml:"metrics"`
	Health  HealthConfig            `yaml:"health"`
	Storage StorageConfig           `yaml:"storage"`
	Memory  MemoryConfig            `yaml:"memory"`
}

// HealthConfig holds health check configuration
type HealthConfig struct {
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"5s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
}

// MemoryConfig tunes keyword memory search.
type MemoryConfig struct {
	// ChunkSize is the most keywords sent in one contains-any query.
	// Firestore rejects more than 30.
	ChunkSize int `env:"MEMORY_CHUNK_SIZE" yaml:"chunk_size" default:"10"`
}

// Load reads path (may be empty) and the environment into a validated AppConfig.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := config.GetConfig(cfg, path, false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c AppConfig) Validate() error {
	var result error
	for _, err := range []error{
		c.CommonConfig.Validate(),
		c.HTTP.Validate(),
		c.Storage.Validate(),
	} {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.Health.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("health timeout must be greater than 0"))
	}
	if c.Health.FailureThreshold < 1 {
		result = multierror.Append(result, fmt.Errorf("health failure_threshold must be at least 1, got %d", c.Health.FailureThreshold))
	}
	if c.Memory.ChunkSize < 1 || c.Memory.ChunkSize > 30 {
		result = multierror.Append(result, fmt.Errorf("memory chunk_size must be between 1-30, got %d", c.Memory.ChunkSize))
	}
	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}

// NewLogger builds the service logger from the logging settings.
func (c *AppConfig) NewLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   c.GetLogLevel(),
		Format:  c.LogFormat,
		Service: c.ServiceName,
	})
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("log_level", c.LogLevel),
		logger.IntField("http_port", c.HTTP.Port),
		logger.BoolField("metrics_enabled", !c.Metrics.Disabled),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.IntField("memory_chunk_size", c.Memory.ChunkSize),
	)
}

func oneOf(v string, allowed []string) bool {
	return slices.Contains(allowed, v)
}
