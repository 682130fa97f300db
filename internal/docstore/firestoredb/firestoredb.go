// Package firestoredb is a docstore.Store on Cloud Firestore, the store the
// persisted layout was designed for. Queries are pushed down natively.
package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lewisedginton/conversation_store/internal/docstore"
)

// Store is a docstore.Store on a Firestore client.
type Store struct {
	client *firestore.Client
}

// New wraps an existing client.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Open creates a client for projectID. Credentials come from the environment;
// FIRESTORE_EMULATOR_HOST redirects the client to an emulator.
func Open(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return New(client), nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *Store) doc(path string) (*firestore.DocumentRef, error) {
	if err := docstore.ValidateDocPath(path); err != nil {
		return nil, err
	}
	ref := s.client.Doc(strings.Trim(path, "/"))
	if ref == nil {
		return nil, fmt.Errorf("%q is not a valid firestore document path", path)
	}
	return ref, nil
}

// relPath turns a full resource name into a store-relative document path.
func relPath(ref *firestore.DocumentRef) string {
	const marker = "/documents/"
	if i := strings.Index(ref.Path, marker); i >= 0 {
		return ref.Path[i+len(marker):]
	}
	return ref.Path
}

func snapshot(snap *firestore.DocumentSnapshot) docstore.Snapshot {
	data := snap.Data()
	if data == nil {
		data = map[string]any{}
	}
	return docstore.Snapshot{
		Path: relPath(snap.Ref),
		Data: docstore.Normalize(data).(map[string]any),
	}
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	ref, err := s.doc(path)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	snap, err := ref.Get(ctx)
	if isNotFound(err) {
		return docstore.Snapshot{}, fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	return snapshot(snap), nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, data); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Merge overwrites only the top-level fields present in data. MergeAll is
// avoided for non-empty data because it merges nested maps recursively.
func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	opt := firestore.MergeAll
	if len(data) > 0 {
		fields := make([]firestore.FieldPath, 0, len(data))
		for k := range data {
			fields = append(fields, firestore.FieldPath{k})
		}
		opt = firestore.Merge(fields...)
	}
	if _, err := ref.Set(ctx, data, opt); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		if _, err := ref.Get(ctx); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
			}
			return fmt.Errorf("update %s: %w", path, err)
		}
		return nil
	}

	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	_, err = ref.Update(ctx, updates)
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var query firestore.Query
	if q.Collection != "" {
		query = s.client.Collection(strings.Trim(q.Collection, "/")).Query
	} else {
		query = s.client.CollectionGroup(q.Group).Query
	}
	for _, f := range q.Filters {
		query = query.WherePath(firestore.FieldPath{f.Field}, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		query = query.OrderByPath(firestore.FieldPath{q.OrderBy}, firestore.Asc)
	}
	if q.LimitToLast > 0 {
		query = query.LimitToLast(q.LimitToLast)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	out := make([]docstore.Snapshot, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		sn := snapshot(snap)
		if !docstore.Within(sn.Path, q.Under) {
			continue
		}
		out = append(out, sn)
	}
	return out, nil
}

// NewID returns a Firestore-style random id. No RPC is made.
func (s *Store) NewID() string {
	return s.client.Collection("ids").NewDoc().ID
}

// Ping reads a document that need not exist; only transport errors fail.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Doc("_health/ping").Get(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
