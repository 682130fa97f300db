// Package sqlitedb is a single-file docstore.Store on SQLite (pure Go driver).
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lewisedginton/conversation_store/internal/docstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path          TEXT PRIMARY KEY,
	parent        TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	data          TEXT NOT NULL,
	updated_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent);
CREATE INDEX IF NOT EXISTS idx_documents_collection_id ON documents(collection_id);
`

// Store is a docstore.Store on a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer concurrent
	// read-modify-write cycles with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func notFound(path string) error {
	return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if err := docstore.ValidateDocPath(path); err != nil {
		return docstore.Snapshot{}, err
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Snapshot{}, notFound(path)
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	data, err := docstore.Decode([]byte(raw))
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return docstore.Snapshot{Path: path, Data: data}, nil
}

const upsert = `
INSERT INTO documents (path, parent, collection_id, data) VALUES (?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET data = excluded.data,
	updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	raw, err := docstore.Encode(data)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsert, path, docstore.Parent(path), docstore.CollectionID(path), string(raw)); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	return s.patch(ctx, path, data, false)
}

func (s *Store) Update(ctx context.Context, path string, data map[string]any) error {
	return s.patch(ctx, path, data, true)
}

// patch merges top-level fields inside a transaction. json_patch is not used
// because it merges recursively and treats null as delete.
func (s *Store) patch(ctx context.Context, path string, data map[string]any, mustExist bool) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	in, err := docstore.Clone(data)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur map[string]any
	var raw string
	err = tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if mustExist {
			return notFound(path)
		}
	case err != nil:
		return fmt.Errorf("read %s: %w", path, err)
	default:
		if cur, err = docstore.Decode([]byte(raw)); err != nil {
			return err
		}
	}

	out, err := docstore.Encode(docstore.MergeFields(cur, in))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsert, path, docstore.Parent(path), docstore.CollectionID(path), string(out)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Query filters by source and string equality in SQL and evaluates the rest in process.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if q.Collection != "" {
		where = append(where, "parent = ?")
		args = append(args, strings.Trim(q.Collection, "/"))
	} else {
		where = append(where, "collection_id = ?")
		args = append(args, q.Group)
	}
	if under := strings.Trim(q.Under, "/"); under != "" {
		// '0' sorts right after '/', so this is a prefix scan on the key.
		where = append(where, "path > ? AND path < ?")
		args = append(args, under+"/", under+"0")
	}
	for _, f := range q.Filters {
		if v, ok := f.Value.(string); ok && f.Op == docstore.OpEqual {
			where = append(where, "json_extract(data, ?) = ?")
			args = append(args, "$."+strconv.Quote(f.Field), v)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, data FROM documents WHERE `+strings.Join(where, " AND ")+` ORDER BY path`, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []docstore.Snapshot
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		data, err := docstore.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		snaps = append(snaps, docstore.Snapshot{Path: path, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docstore.Apply(q, snaps), nil
}

func (s *Store) NewID() string {
	return docstore.NewULID()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
