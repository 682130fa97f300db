// Package redisdb is a docstore.Store on Redis. Each document is a JSON
// string key; set keys index it by parent collection path, by collection id
// and by collection id within its top-level document, so that queries never
// need KEYS or SCAN and a group query narrowed to a subtree reads one owner.
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lewisedginton/conversation_store/internal/docstore"
)

const maxWatchRetries = 10

// Store is a docstore.Store on a go-redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// New uses client with every key under prefix (for example "convo:").
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open parses a redis:// URL and connects.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client, prefix), nil
}

// Client exposes the underlying client for health checks.
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) docKey(path string) string   { return s.prefix + "doc:" + path }
func (s *Store) collKey(parent string) string { return s.prefix + "coll:" + parent }
func (s *Store) groupKey(id string) string    { return s.prefix + "group:" + id }

// ownerKey indexes the members of group id below one top-level document.
func (s *Store) ownerKey(id, root string) string {
	return s.prefix + "group:" + id + ":" + root
}

// nested reports whether path lies below a top-level document, and so has an
// owner index entry.
func nested(path string) bool {
	return docstore.Root(docstore.Parent(path)) != ""
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if err := docstore.ValidateDocPath(path); err != nil {
		return docstore.Snapshot{}, err
	}
	raw, err := s.client.Get(ctx, s.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
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

// store queues the document body and its index entries on pipe.
func (s *Store) store(ctx context.Context, pipe redis.Pipeliner, path string, raw []byte) {
	pipe.Set(ctx, s.docKey(path), raw, 0)
	pipe.SAdd(ctx, s.collKey(docstore.Parent(path)), path)
	pipe.SAdd(ctx, s.groupKey(docstore.CollectionID(path)), path)
	if nested(path) {
		pipe.SAdd(ctx, s.ownerKey(docstore.CollectionID(path), docstore.Root(path)), path)
	}
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	raw, err := docstore.Encode(data)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.store(ctx, pipe, path, raw)
		return nil
	})
	if err != nil {
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

// patch is an optimistic read-modify-write under WATCH, retried on conflict.
func (s *Store) patch(ctx context.Context, path string, data map[string]any, mustExist bool) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	in, err := docstore.Clone(data)
	if err != nil {
		return err
	}
	key := s.docKey(path)

	txf := func(tx *redis.Tx) error {
		var cur map[string]any
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if mustExist {
				return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
			}
		case err != nil:
			return err
		default:
			if cur, err = docstore.Decode(raw); err != nil {
				return err
			}
		}

		out, err := docstore.Encode(docstore.MergeFields(cur, in))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.store(ctx, pipe, path, out)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("patch %s: %w", path, err)
		}
		return err
	}
	return fmt.Errorf("patch %s: too much contention", path)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := docstore.ValidateDocPath(path); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(path))
		pipe.SRem(ctx, s.collKey(docstore.Parent(path)), path)
		pipe.SRem(ctx, s.groupKey(docstore.CollectionID(path)), path)
		if nested(path) {
			pipe.SRem(ctx, s.ownerKey(docstore.CollectionID(path), docstore.Root(path)), path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	index := s.indexKey(q)
	paths, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", index, err)
	}
	if len(paths) == 0 {
		return []docstore.Snapshot{}, nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = s.docKey(p)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	snaps := make([]docstore.Snapshot, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // removed between SMEMBERS and MGET
		}
		data, err := docstore.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
		snaps = append(snaps, docstore.Snapshot{Path: paths[i], Data: data})
	}
	return docstore.Apply(q, snaps), nil
}

// indexKey picks the narrowest set holding every candidate of q.
func (s *Store) indexKey(q docstore.Query) string {
	switch {
	case q.Collection != "":
		return s.collKey(strings.Trim(q.Collection, "/"))
	case docstore.Root(q.Under) != "":
		return s.ownerKey(q.Group, docstore.Root(q.Under))
	default:
		return s.groupKey(q.Group)
	}
}

func (s *Store) NewID() string {
	return docstore.NewULID()
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
