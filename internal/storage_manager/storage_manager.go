package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BackendType represents the type of storage backend.
type BackendType string

const (
	// BackendLocal uses the local filesystem for storage.
	BackendLocal BackendType = "local"
	// BackendS3 uses AWS S3 for storage.
	BackendS3 BackendType = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Backend BackendType
	// BaseDir is the root directory for BackendLocal.
	BaseDir string
	// Bucket and Prefix locate objects for BackendS3.
	Bucket string
	Prefix string
	// Client is required for BackendS3.
	Client *s3.Client
}

// StorageManager hands out namespaced providers over one backend.
type StorageManager struct {
	backend  BackendType
	provider FileProvider
	ping     func(ctx context.Context) error
}

// New builds a StorageManager for the configured backend.
func New(config Config) (*StorageManager, error) {
	switch config.Backend {
	case BackendLocal:
		if config.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		return &StorageManager{
			backend:  BackendLocal,
			provider: NewLocalFileProvider(config.BaseDir),
		}, nil

	case BackendS3:
		if config.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		if config.Client == nil {
			return nil, fmt.Errorf("s3 client is required for s3 backend")
		}
		client := NewAWSS3Client(config.Client)
		return &StorageManager{
			backend:  BackendS3,
			provider: NewS3FileProvider(config.Bucket, config.Prefix, client),
			ping:     func(ctx context.Context) error { return client.Ping(ctx, config.Bucket) },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %q", config.Backend)
	}
}

// NewWithProvider wraps a custom provider, mainly for tests.
func NewWithProvider(provider FileProvider) *StorageManager {
	return &StorageManager{provider: provider}
}

// GetProvider returns a provider scoped to namespace. An empty namespace
// returns the root provider.
func (m *StorageManager) GetProvider(namespace string) FileProvider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedFileProvider(m.provider, namespace)
}

// Backend returns the configured backend type.
func (m *StorageManager) Backend() BackendType {
	return m.backend
}

// Ping checks backend reachability. Local and custom providers always succeed.
func (m *StorageManager) Ping(ctx context.Context) error {
	if m.ping == nil {
		return nil
	}
	return m.ping(ctx)
}
