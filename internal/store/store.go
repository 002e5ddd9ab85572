// Package store is the thin key-value/set/list layer the chat domain persists through.
// It carries no business logic; keys are composed by the repositories.
package store

import (
	"context"
	"errors"
)

// ErrConflict is returned by Watch when a watched key kept changing across every retry.
var ErrConflict = errors.New("store: watched keys changed concurrently")

// maxWatchRetries bounds optimistic transaction retries.
const maxWatchRetries = 8

// Batch queues write commands that are applied together.
type Batch interface {
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	RPush(key string, values ...string)
	LTrim(key string, start, stop int64)
	Set(key, value string)
	Del(keys ...string)
}

// Reader exposes the read commands shared by Store and Tx.
type Reader interface {
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SInter(ctx context.Context, keys ...string) ([]string, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LIndex(ctx context.Context, key string, index int64) (string, bool, error)
	LLen(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
}

// Tx is handed to Watch callbacks. Reads see the watched snapshot; Exec commits
// the batch only if no watched key changed since the watch began.
type Tx interface {
	Reader
	Exec(ctx context.Context, fn func(Batch)) error
}

// Store abstracts the external persistence collaborator.
type Store interface {
	Reader

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	Set(ctx context.Context, key, value string) error

	// Exec applies every queued command atomically.
	Exec(ctx context.Context, fn func(Batch)) error
	// Watch runs fn as an optimistic transaction over keys, retrying on conflict.
	Watch(ctx context.Context, fn func(Tx) error, keys ...string) error
	// DeletePattern removes every key matching a glob pattern and reports how many went.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
