package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/conversation_store/pkg/config"
)

// Storage backends.
const (
	BackendMemory    = "memory"
	BackendLocal     = "local"
	BackendS3        = "s3"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

// Backends lists every accepted StorageConfig.Backend value.
var Backends = []string{
	BackendMemory, BackendLocal, BackendS3, BackendPostgres,
	BackendSQLite, BackendRedis, BackendFirestore,
}

// StorageConfig selects the document store and holds the settings of each backend.
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" yaml:"backend" default:"memory"`

	LocalDir string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"./data"`

	S3Bucket  string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix  string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`
	S3Region  string `env:"STORAGE_S3_REGION" yaml:"s3_region"`
	S3Profile string `env:"STORAGE_S3_PROFILE" yaml:"s3_profile"`

	SQLitePath string `env:"STORAGE_SQLITE_PATH" yaml:"sqlite_path" default:"./data/conversations.db"`

	RedisURL    string `env:"STORAGE_REDIS_URL" yaml:"redis_url" default:"redis://localhost:6379/0"`
	RedisPrefix string `env:"STORAGE_REDIS_PREFIX" yaml:"redis_prefix" default:"convo:"`

	// FirestoreProject is the Google Cloud project id.
	FirestoreProject string `env:"STORAGE_FIRESTORE_PROJECT" yaml:"firestore_project"`

	Database config.DatabaseConfig `yaml:"database"`
}

// Validate checks the backend name and the settings that backend needs.
func (s StorageConfig) Validate() error {
	backend := strings.ToLower(s.Backend)
	if !oneOf(backend, Backends) {
		return fmt.Errorf("storage backend must be one of [%s], got %q", strings.Join(Backends, ", "), s.Backend)
	}

	var result error
	switch backend {
	case BackendLocal:
		if s.LocalDir == "" {
			result = multierror.Append(result, fmt.Errorf("storage local_dir is required for the local backend"))
		}
	case BackendS3:
		if s.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage s3_bucket is required for the s3 backend"))
		}
	case BackendSQLite:
		if s.SQLitePath == "" {
			result = multierror.Append(result, fmt.Errorf("storage sqlite_path is required for the sqlite backend"))
		}
	case BackendRedis:
		if s.RedisURL == "" {
			result = multierror.Append(result, fmt.Errorf("storage redis_url is required for the redis backend"))
		}
	case BackendFirestore:
		if s.FirestoreProject == "" {
			result = multierror.Append(result, fmt.Errorf("storage firestore_project is required for the firestore backend"))
		}
	case BackendPostgres:
		if err := s.Database.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
