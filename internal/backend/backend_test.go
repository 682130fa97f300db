package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/lewisedginton/conversation_store/internal/config"
	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  appconfig.StorageConfig
	}{
		{name: "memory", cfg: appconfig.StorageConfig{Backend: appconfig.BackendMemory}},
		{name: "local", cfg: appconfig.StorageConfig{Backend: appconfig.BackendLocal, LocalDir: filepath.Join(dir, "files")}},
		{name: "sqlite", cfg: appconfig.StorageConfig{Backend: "SQLite", SQLitePath: filepath.Join(dir, "db", "store.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b, err := Open(ctx, tt.cfg, logger.NewNopLogger())
			require.NoError(t, err)
			defer func() { assert.NoError(t, b.Close()) }()

			require.Len(t, b.Checks, 1)
			assert.NoError(t, b.Checks[0].Check(ctx))

			require.NoError(t, b.Store.Set(ctx, "user_roles/u1", map[string]any{"theme": "dark"}))
			snap, err := b.Store.Get(ctx, "user_roles/u1")
			require.NoError(t, err)
			assert.Equal(t, "dark", snap.Data["theme"])

			_, err = b.Store.Get(ctx, "user_roles/u2")
			assert.ErrorIs(t, err, docstore.ErrNotFound)
		})
	}
}

func TestOpenLocalKeepsDocumentsUnderNamespace(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(context.Background(), appconfig.StorageConfig{Backend: appconfig.BackendLocal, LocalDir: dir}, logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, b.Store.Set(context.Background(), "app_state/chat", map[string]any{"k": "v"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, documentsNamespace, entries[0].Name())
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), appconfig.StorageConfig{Backend: "mongo"}, logger.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage backend")
}

func TestOpenS3RequiresBucket(t *testing.T) {
	_, err := Open(context.Background(), appconfig.StorageConfig{Backend: appconfig.BackendS3}, logger.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3 bucket is required")
}
