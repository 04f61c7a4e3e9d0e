package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/registrar/internal/model"
)

const maxWatchRetries = 8

// RedisStore keeps records as Redis strings. Update uses WATCH so a
// concurrent writer aborts the transaction instead of interleaving.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix. Default is "registrar".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "registrar"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) get(ctx context.Context, c getter, name string) ([]byte, error) {
	data, err := c.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return data, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// LoadMode returns the stored mode.
func (s *RedisStore) LoadMode(ctx context.Context) (model.Mode, error) {
	data, err := s.get(ctx, s.client, keyMode)
	if err != nil {
		return model.Mode{}, err
	}
	return decodeMode(data)
}

// SaveMode replaces or deletes the stored mode.
func (s *RedisStore) SaveMode(ctx context.Context, mode *model.Mode) error {
	if mode == nil {
		if err := s.client.Del(ctx, s.key(keyMode)).Err(); err != nil {
			return fmt.Errorf("redis del mode: %w", err)
		}
		return nil
	}
	data, err := encodeMode(*mode)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(keyMode), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set mode: %w", err)
	}
	return nil
}

// Load returns the stored state.
func (s *RedisStore) Load(ctx context.Context) (model.PersistedState, error) {
	data, err := s.get(ctx, s.client, keyState)
	if err != nil {
		return model.PersistedState{}, err
	}
	return decodeState(data)
}

// Update runs an optimistic read-modify-write, retrying when the key
// changed between WATCH and EXEC.
func (s *RedisStore) Update(ctx context.Context, mutate func(*model.PersistedState) error) (model.PersistedState, error) {
	key := s.key(keyState)
	var result model.PersistedState

	txf := func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, keyState)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		state, data, err := applyUpdate(current, mutate)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = state
		return nil
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.PersistedState{}, fmt.Errorf("redis update: %w", err)
	}
	return model.PersistedState{}, fmt.Errorf("redis update: gave up after %d conflicts", maxWatchRetries)
}

// Clear deletes the state record.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(keyState)).Err(); err != nil {
		return fmt.Errorf("redis del state: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
