// Package backend opens the document store selected in the storage configuration.
package backend

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/lewisedginton/conversation_store/internal/config"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/internal/docstore/filedb"
	"github.com/lewisedginton/conversation_store/internal/docstore/firestoredb"
	"github.com/lewisedginton/conversation_store/internal/docstore/memdb"
	"github.com/lewisedginton/conversation_store/internal/docstore/pgdb"
	"github.com/lewisedginton/conversation_store/internal/docstore/redisdb"
	"github.com/lewisedginton/conversation_store/internal/docstore/sqlitedb"
	"github.com/lewisedginton/conversation_store/internal/storage_manager"
	"github.com/lewisedginton/conversation_store/pkg/health"
	"github.com/lewisedginton/conversation_store/pkg/health/checkers"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// documentsNamespace is the directory (or key prefix) file backends keep documents under.
const documentsNamespace = "documents"

// Backend is an opened document store plus the readiness checks that cover it.
type Backend struct {
	Name   string
	Store  docstore.Store
	Checks []health.Check
}

// Close releases the store.
func (b *Backend) Close() error {
	return b.Store.Close()
}

// Open connects to the backend named in cfg.
func Open(ctx context.Context, cfg appconfig.StorageConfig, log logger.Logger) (*Backend, error) {
	name := strings.ToLower(cfg.Backend)
	log = log.WithFields(logger.StringField("storage_backend", name))

	var (
		store docstore.Store
		err   error
	)
	switch name {
	case appconfig.BackendMemory:
		log.Warn("Using in-memory storage; nothing survives a restart")
		store = memdb.New()

	case appconfig.BackendLocal:
		store, err = openLocal(cfg, log)

	case appconfig.BackendS3:
		store, err = openS3(ctx, cfg, log)

	case appconfig.BackendPostgres:
		log.Info("Using PostgreSQL storage")
		store, err = pgdb.Open(ctx, cfg.Database, log)

	case appconfig.BackendSQLite:
		log.Info("Using SQLite storage", logger.StringField("path", cfg.SQLitePath))
		store, err = sqlitedb.Open(cfg.SQLitePath)

	case appconfig.BackendRedis:
		log.Info("Using Redis storage", logger.StringField("prefix", cfg.RedisPrefix))
		var rs *redisdb.Store
		rs, err = redisdb.Open(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err == nil {
			return &Backend{
				Name:   name,
				Store:  rs,
				Checks: []health.Check{checkers.NewRedisChecker(rs.Client(), "redis")},
			}, nil
		}

	case appconfig.BackendFirestore:
		log.Info("Using Firestore storage", logger.StringField("project", cfg.FirestoreProject))
		store, err = firestoredb.Open(ctx, cfg.FirestoreProject)

	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", name, err)
	}

	b := &Backend{Name: name, Store: store}
	if p, ok := store.(docstore.Pinger); ok {
		b.Checks = append(b.Checks, checkers.NewPingChecker(p, name))
	}
	return b, nil
}

func openLocal(cfg appconfig.StorageConfig, log logger.Logger) (docstore.Store, error) {
	log.Info("Using local file-based storage", logger.StringField("directory", cfg.LocalDir))

	// 0750 needed for directory traversal
	if err := os.MkdirAll(cfg.LocalDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	sm, err := storage_manager.New(storage_manager.Config{
		Backend: storage_manager.BackendLocal,
		BaseDir: cfg.LocalDir,
	})
	if err != nil {
		return nil, err
	}
	return filedb.New(sm.GetProvider(documentsNamespace), sm.Ping), nil
}

func openS3(ctx context.Context, cfg appconfig.StorageConfig, log logger.Logger) (docstore.Store, error) {
	log.Info("Using S3-based storage",
		logger.StringField("bucket", cfg.S3Bucket),
		logger.StringField("prefix", cfg.S3Prefix),
		logger.StringField("region", cfg.S3Region))

	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required when using S3 storage")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.S3Profile))
	}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	sm, err := storage_manager.New(storage_manager.Config{
		Backend: storage_manager.BackendS3,
		Bucket:  cfg.S3Bucket,
		Prefix:  cfg.S3Prefix,
		Client:  s3.NewFromConfig(awsCfg),
	})
	if err != nil {
		return nil, err
	}
	return filedb.New(sm.GetProvider(documentsNamespace), sm.Ping), nil
}
