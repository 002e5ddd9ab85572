package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const scanPageSize = 100

// readCmdable is the read surface shared by *redis.Client and *redis.Tx.
type readCmdable interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SInter(ctx context.Context, keys ...string) *redis.StringSliceCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LIndex(ctx context.Context, key string, index int64) *redis.StringCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	redisReader
	client *redis.Client
}

// NewRedisStore wraps an existing client. The client's lifetime is owned by the store after this call.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redisReader: redisReader{c: client}, client: client}
}

// Client returns the underlying go-redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	return s.client.SAdd(ctx, key, toArgs(members)...).Err()
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	return s.client.SRem(ctx, key, toArgs(members)...).Err()
}

func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) error {
	return s.client.RPush(ctx, key, toArgs(values)...).Err()
}

func (s *RedisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.client.LTrim(ctx, key, start, stop).Err()
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

// Exec wraps the queued commands in MULTI/EXEC.
func (s *RedisStore) Exec(ctx context.Context, fn func(Batch)) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(&redisBatch{ctx: ctx, pipe: pipe})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}

// Watch runs fn under WATCH keys and retries when EXEC aborts because a key changed.
func (s *RedisStore) Watch(ctx context.Context, fn func(Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			return fn(&redisTx{redisReader: redisReader{c: tx}, tx: tx})
		}, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

// DeletePattern walks the keyspace with SCAN and deletes every match page by page.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis del: %w", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisReader struct {
	c readCmdable
}

func (r redisReader) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.c.SMembers(ctx, key).Result()
}

func (r redisReader) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.c.SIsMember(ctx, key, member).Result()
}

func (r redisReader) SInter(ctx context.Context, keys ...string) ([]string, error) {
	return r.c.SInter(ctx, keys...).Result()
}

func (r redisReader) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.c.LRange(ctx, key, start, stop).Result()
}

func (r redisReader) LIndex(ctx context.Context, key string, index int64) (string, bool, error) {
	val, err := r.c.LIndex(ctx, key, index).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r redisReader) LLen(ctx context.Context, key string) (int64, error) {
	return r.c.LLen(ctx, key).Result()
}

func (r redisReader) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

type redisTx struct {
	redisReader
	tx *redis.Tx
}

func (t *redisTx) Exec(ctx context.Context, fn func(Batch)) error {
	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(&redisBatch{ctx: ctx, pipe: pipe})
		return nil
	})
	return err
}

type redisBatch struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (b *redisBatch) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	b.pipe.SAdd(b.ctx, key, toArgs(members)...)
}

func (b *redisBatch) SRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	b.pipe.SRem(b.ctx, key, toArgs(members)...)
}

func (b *redisBatch) RPush(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	b.pipe.RPush(b.ctx, key, toArgs(values)...)
}

func (b *redisBatch) LTrim(key string, start, stop int64) {
	b.pipe.LTrim(b.ctx, key, start, stop)
}

func (b *redisBatch) Set(key, value string) {
	b.pipe.Set(b.ctx, key, value, 0)
}

func (b *redisBatch) Del(keys ...string) {
	b.pipe.Del(b.ctx, keys...)
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

var _ Store = (*RedisStore)(nil)
