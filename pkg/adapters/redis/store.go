// Package redis stores workflows in Redis and provides a distributed lock.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "lattice:workflow:"

// Store implements ports.WorkflowStore using Redis: one JSON value per
// workflow and a per-user ZSET index scored by update time.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(userID, id string) string {
	return s.prefix + userID + ":" + id
}

func (s *Store) indexKey(userID string) string {
	return s.prefix + "index:" + userID
}

// Save writes the workflow and indexes it in one pipeline.
func (s *Store) Save(ctx context.Context, wf *domain.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(wf.UserID, wf.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(wf.UserID), backend.Z{
		Score:  float64(wf.UpdatedAt.UnixMilli()),
		Member: wf.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get retrieves one workflow.
func (s *Store) Get(ctx context.Context, userID, id string) (*domain.Workflow, error) {
	val, err := s.client.Get(ctx, s.key(userID, id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var wf domain.Workflow
	if err := json.Unmarshal(val, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &wf, nil
}

// Delete removes the workflow and its index entry.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(userID, id))
	pipe.ZRem(ctx, s.indexKey(userID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrWorkflowNotFound
	}
	return nil
}

// List returns the user's workflows, newest first. Index entries whose value
// has gone are dropped from the index.
func (s *Store) List(ctx context.Context, userID string) ([]*domain.Workflow, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Workflow{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(userID, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	out := make([]*domain.Workflow, 0, len(vals))
	var stale []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var wf domain.Workflow
		if err := json.Unmarshal([]byte(raw), &wf); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", ids[i], err)
		}
		out = append(out, &wf)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune workflow index: %w", err)
		}
	}
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
