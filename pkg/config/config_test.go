package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	CommonConfig `yaml:",inline"`
	HTTP         HTTPServerConfig `yaml:"http"`
	Database     DatabaseConfig   `yaml:"database"`
	Metrics      MetricsConfig    `yaml:"metrics"`

	APIKey   string   `env:"TEST_API_KEY" yaml:"api_key" required:"true"`
	Features []string `env:"TEST_FEATURES" yaml:"features"`
	Ratio    float64  `env:"TEST_RATIO" yaml:"ratio" default:"0.5"`
}

func (c testConfig) Validate() error {
	return errors.Join(c.CommonConfig.Validate(), c.HTTP.Validate(), c.Database.Validate())
}

func TestGetConfigFromEnvVars(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "k")

		var cfg testConfig
		require.NoError(t, GetConfigFromEnvVars(&cfg))

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, 8080, cfg.HTTP.Port)
		assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
		assert.Equal(t, "conversations", cfg.Database.Database)
		assert.Equal(t, 5*time.Minute, cfg.Database.MaxIdleTime)
		assert.Equal(t, "convostore", cfg.Metrics.Namespace)
		assert.False(t, cfg.Metrics.Disabled)
		assert.Equal(t, 0.5, cfg.Ratio)
		assert.Nil(t, cfg.Features)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "k")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("HTTP_PORT", "3000")
		t.Setenv("HTTP_IDLE_TIMEOUT", "2m")
		t.Setenv("TEST_FEATURES", "a, b ,c")
		t.Setenv("METRICS_DISABLED", "true")

		var cfg testConfig
		require.NoError(t, GetConfigFromEnvVars(&cfg))

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 3000, cfg.HTTP.Port)
		assert.Equal(t, 2*time.Minute, cfg.HTTP.IdleTimeout)
		assert.Equal(t, []string{"a", "b", "c"}, cfg.Features)
		assert.True(t, cfg.Metrics.Disabled)
	})

	t.Run("missing required resets config", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "")

		cfg := testConfig{Ratio: 9}
		err := GetConfigFromEnvVars(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TEST_API_KEY")
		assert.Equal(t, testConfig{}, cfg)
	})

	t.Run("bad value", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "k")
		t.Setenv("HTTP_PORT", "eighty")

		var cfg testConfig
		assert.Error(t, GetConfigFromEnvVars(&cfg))
	})

	t.Run("validation runs", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "k")
		t.Setenv("LOG_LEVEL", "loud")

		var cfg testConfig
		err := GetConfigFromEnvVars(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
}

func TestGetConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_key: from-file
log_level: warn
http:
  port: 9000
database:
  url: postgres://u:p@db:5432/x
`), 0o600))

	t.Run("file then env", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "error")

		var cfg testConfig
		require.NoError(t, GetConfig(&cfg, path, false))

		assert.Equal(t, "from-file", cfg.APIKey)
		assert.Equal(t, "error", cfg.LogLevel)
		assert.Equal(t, 9000, cfg.HTTP.Port)
		assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Database.ConnectionString())
	})

	t.Run("missing file strict", func(t *testing.T) {
		var cfg testConfig
		assert.Error(t, GetConfig(&cfg, filepath.Join(dir, "nope.yaml"), false))
	})

	t.Run("missing file lenient", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "env")

		var cfg testConfig
		require.NoError(t, GetConfig(&cfg, filepath.Join(dir, "nope.yaml"), true))
		assert.Equal(t, "env", cfg.APIKey)
	})
}

func TestDatabaseConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, Database: "db", Username: "u", Password: "p@ss", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@h:5433/db?sslmode=disable", d.ConnectionString())
}

func TestDatabaseValidate(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, Database: "db", MaxConnections: 2, MinConnections: 3}
	assert.Error(t, d.Validate())

	d.MinConnections = 1
	assert.NoError(t, d.Validate())
}
