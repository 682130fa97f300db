package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Queries holds the statements of queries.sql.
type Queries struct {
	db DBTX
}

func newQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const getDocument = `SELECT data FROM documents WHERE path = $1`

func (q *Queries) GetDocument(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := q.db.QueryRow(ctx, getDocument, path).Scan(&data)
	return data, err
}

type writeDocumentParams struct {
	Path         string
	Parent       string
	CollectionID string
	Data         []byte
}

const setDocument = `INSERT INTO documents (path, parent, collection_id, data)
VALUES ($1, $2, $3, $4::jsonb)
ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

func (q *Queries) SetDocument(ctx context.Context, arg writeDocumentParams) error {
	_, err := q.db.Exec(ctx, setDocument, arg.Path, arg.Parent, arg.CollectionID, arg.Data)
	return err
}

const mergeDocument = `INSERT INTO documents (path, parent, collection_id, data)
VALUES ($1, $2, $3, $4::jsonb)
ON CONFLICT (path) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`

func (q *Queries) MergeDocument(ctx context.Context, arg writeDocumentParams) error {
	_, err := q.db.Exec(ctx, mergeDocument, arg.Path, arg.Parent, arg.CollectionID, arg.Data)
	return err
}

const updateDocument = `UPDATE documents SET data = data || $2::jsonb, updated_at = now() WHERE path = $1`

func (q *Queries) UpdateDocument(ctx context.Context, path string, data []byte) (int64, error) {
	tag, err := q.db.Exec(ctx, updateDocument, path, data)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteDocument = `DELETE FROM documents WHERE path = $1`

func (q *Queries) DeleteDocument(ctx context.Context, path string) error {
	_, err := q.db.Exec(ctx, deleteDocument, path)
	return err
}

type queryDocumentsParams struct {
	Parent       pgtype.Text
	CollectionID pgtype.Text
	Contains     []byte
	AnyField     pgtype.Text
	AnyValues    []string
	PathPrefix   pgtype.Text
}

type documentRow struct {
	Path string
	Data []byte
}

const queryDocuments = `SELECT path, data FROM documents
WHERE ($1::text IS NULL OR parent = $1)
  AND ($2::text IS NULL OR collection_id = $2)
  AND data @> $3::jsonb
  AND ($4::text IS NULL OR (data -> $4::text) ?| $5::text[])
  AND ($6::text IS NULL OR starts_with(path, $6))
ORDER BY path`

func (q *Queries) QueryDocuments(ctx context.Context, arg queryDocumentsParams) ([]documentRow, error) {
	rows, err := q.db.Query(ctx, queryDocuments,
		arg.Parent, arg.CollectionID, arg.Contains, arg.AnyField, arg.AnyValues, arg.PathPrefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []documentRow
	for rows.Next() {
		var i documentRow
		if err := rows.Scan(&i.Path, &i.Data); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
