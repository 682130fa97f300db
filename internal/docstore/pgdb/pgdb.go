// Package pgdb is a docstore.Store on PostgreSQL. Every document is one row
// of the documents table holding its JSONB body plus its parent collection
// path and collection id, which serve collection and collection group queries.
package pgdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/conversation_store/internal/docstore"
	"github.com/lewisedginton/conversation_store/pkg/config"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// Store is a docstore.Store backed by a pgx pool.
type Store struct {
	pool    *pgxpool.Pool
	queries *Queries
	owned   bool
}

// New wraps an existing pool. The caller keeps ownership of it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: newQueries(pool)}
}

// Open connects using cfg, verifies the connection and applies migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections) //nolint:gosec // bounded by Validate
	poolCfg.MinConns = int32(cfg.MinConnections) //nolint:gosec // bounded by Validate
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.MaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	s := New(pool)
	s.owned = true
	return s, nil
}

func row(path string, data []byte) writeDocumentParams {
	return writeDocumentParams{
		Path:         path,
		Parent:       docstore.Parent(path),
		CollectionID: docstore.CollectionID(path),
		Data:         data,
	}
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if err := docstore.ValidateDocPath(path); err != nil {
		return docstore.Snapshot{}, err
	}
	raw, err := s.queries.GetDocument(ctx, path)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Snapshot{}, fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	data, err := docstore.Decode(raw)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return docstore.Snapshot{Path: path, Data: data}, nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	return s.write(ctx, path, data, s.queries.SetDocument)
}

func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	return s.write(ctx, path, data, s.queries.MergeDocument)
}

func (s *Store) write(ctx context.Context, path string, data map[string]any,
	exec func(context.Context, writeDocumentParams) error) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	raw, err := docstore.Encode(data)
	if err != nil {
		return err
	}
	if err := exec(ctx, row(path, raw)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, path string, data map[string]any) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	raw, err := docstore.Encode(data)
	if err != nil {
		return err
	}
	n, err := s.queries.UpdateDocument(ctx, path, raw)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	if err := s.queries.DeleteDocument(ctx, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Query pushes the source, the subtree, string/number/bool equality filters
// and one string array-contains-any filter down to SQL. Ordering, range filters and
// the limit are applied in process.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := queryDocumentsParams{AnyValues: []string{}}
	if q.Collection != "" {
		params.Parent = pgtype.Text{String: strings.Trim(q.Collection, "/"), Valid: true}
	} else {
		params.CollectionID = pgtype.Text{String: q.Group, Valid: true}
	}
	if under := strings.Trim(q.Under, "/"); under != "" {
		params.PathPrefix = pgtype.Text{String: under + "/", Valid: true}
	}

	contains := map[string]any{}
	for _, f := range q.Filters {
		switch f.Op {
		case docstore.OpEqual:
			switch f.Value.(type) {
			case string, bool, int, int64, float64:
				contains[f.Field] = f.Value
			}
		case docstore.OpArrayContainsAny:
			if values, ok := f.Value.([]string); ok && !params.AnyField.Valid {
				params.AnyField = pgtype.Text{String: f.Field, Valid: true}
				params.AnyValues = values
			}
		}
	}
	raw, err := docstore.Encode(contains)
	if err != nil {
		return nil, err
	}
	params.Contains = raw

	rows, err := s.queries.QueryDocuments(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	snaps := make([]docstore.Snapshot, 0, len(rows))
	for _, r := range rows {
		data, err := docstore.Decode(r.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Path, err)
		}
		snaps = append(snaps, docstore.Snapshot{Path: r.Path, Data: data})
	}
	return docstore.Apply(q, snaps), nil
}

func (s *Store) NewID() string {
	return docstore.NewULID()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool if Open created it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}
