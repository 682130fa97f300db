package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/conversation_store/pkg/logger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "convostore", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "convo:", cfg.Storage.RedisPrefix)
	assert.Equal(t, 10, cfg.Memory.ChunkSize)
	assert.Equal(t, 5*time.Second, cfg.Health.Timeout)
	assert.Equal(t, 3, cfg.Health.FailureThreshold)
	assert.Equal(t, logger.InfoLevel, cfg.GetLogLevel())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service_name: sessions
log_level: debug
storage:
  backend: sqlite
  sqlite_path: /var/lib/convo/store.db
memory:
  chunk_size: 5
`), 0o600))
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sessions", cfg.ServiceName)
	assert.Equal(t, logger.DebugLevel, cfg.GetLogLevel())
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/convo/store.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 5, cfg.Memory.ChunkSize)
	assert.Equal(t, 9100, cfg.HTTP.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStorageValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StorageConfig
		wantErr string
	}{
		{name: "memory", cfg: StorageConfig{Backend: BackendMemory}},
		{name: "unknown backend", cfg: StorageConfig{Backend: "mongo"}, wantErr: "storage backend must be one of"},
		{name: "s3 without bucket", cfg: StorageConfig{Backend: BackendS3}, wantErr: "s3_bucket is required"},
		{name: "s3", cfg: StorageConfig{Backend: BackendS3, S3Bucket: "b"}},
		{name: "firestore without project", cfg: StorageConfig{Backend: BackendFirestore}, wantErr: "firestore_project is required"},
		{name: "redis without url", cfg: StorageConfig{Backend: BackendRedis}, wantErr: "redis_url is required"},
		{name: "local without dir", cfg: StorageConfig{Backend: BackendLocal}, wantErr: "local_dir is required"},
		{name: "postgres with bad pool", cfg: StorageConfig{Backend: BackendPostgres}, wantErr: "max_connections must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAppConfigValidateChunkSize(t *testing.T) {
	t.Setenv("MEMORY_CHUNK_SIZE", "31")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size must be between 1-30")
}
