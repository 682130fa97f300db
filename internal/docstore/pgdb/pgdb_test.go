package pgdb

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/internal/docstore/docstoretest"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

func TestConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("conversations"),
		tcPostgres.WithUsername("convo"),
		tcPostgres.WithPassword("convo"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	log := logger.NewNopLogger()
	require.NoError(t, Migrate(pool, log))
	require.NoError(t, Migrate(pool, log), "second run is a no-op")

	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		_, err := pool.Exec(ctx, "TRUNCATE documents")
		require.NoError(t, err)
		return New(pool)
	})
}
