// Package redis provides a Store and a DistributedLocker backed by Redis.
//
// Keys (with the default "hitch:" prefix):
//
//	hitch:thread:<id>       JSON thread record
//	hitch:checkpoints:<id>  hash of step index -> JSON checkpoint (HSETNX)
//	hitch:index             ZSET of thread IDs scored by expiry
//	hitch:lock:<id>         lock key held by Locker
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/hitch/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "hitch:"

// Store implements ports.Store using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for threads and their checkpoints.
//
// Threads are otherwise kept until deleted. With a TTL, redis removes an idle
// thread and its log on its own, so a thread waiting for a reply longer than
// ttl is lost. The TTL is refreshed on every write.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

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
		prefix: defaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to build a Locker sharing the connection pool.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Prefix returns the key prefix in use.
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) threadKey(threadID string) string {
	return s.prefix + "thread:" + threadID
}

func (s *Store) checkpointsKey(threadID string) string {
	return s.prefix + "checkpoints:" + threadID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Append stores the checkpoint with HSETNX so that only the first writer of
// an index succeeds.
func (s *Store) Append(ctx context.Context, threadID string, cp domain.Checkpoint) error {
	cp.ThreadID = threadID
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	key := s.checkpointsKey(threadID)
	ok, err := s.client.HSetNX(ctx, key, strconv.Itoa(cp.Index), data).Result()
	if err != nil {
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	if !ok {
		return domain.ErrCheckpointConflict
	}

	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set checkpoint expiry: %w", err)
		}
	}
	return nil
}

// List returns the thread's checkpoints ordered by index.
func (s *Store) List(ctx context.Context, threadID string) ([]domain.Checkpoint, error) {
	fields, err := s.client.HGetAll(ctx, s.checkpointsKey(threadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	cps := make([]domain.Checkpoint, 0, len(fields))
	for field, val := range fields {
		var cp domain.Checkpoint
		if err := json.Unmarshal([]byte(val), &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", field, err)
		}
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].Index < cps[j].Index })
	return cps, nil
}

// SaveThread persists the thread record and indexes it.
func (s *Store) SaveThread(ctx context.Context, thread *domain.Thread) error {
	data, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	pipe := s.client.Pipeline()

	// Use 0 for no expiration if ttl is not set.
	pipe.Set(ctx, s.threadKey(thread.ID), data, s.ttl)

	// Score = Now + TTL. If TTL = 0, Score = +Inf (approx).
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}

	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: thread.ID,
	})

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// LoadThread retrieves the thread record.
func (s *Store) LoadThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	val, err := s.client.Get(ctx, s.threadKey(threadID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var thread domain.Thread
	if err := json.Unmarshal([]byte(val), &thread); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread: %w", err)
	}
	return &thread, nil
}

// DeleteThread removes the thread record, its checkpoints and its index entry.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.threadKey(threadID), s.checkpointsKey(threadID))
	pipe.ZRem(ctx, s.indexKey(), threadID)

	_, err := pipe.Exec(ctx)
	return err
}

// ListThreads returns indexed threads, lazily pruning expired entries.
func (s *Store) ListThreads(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	// If everything is infinite, this removes nothing.
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired threads: %w", err)
	}

	threads, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
