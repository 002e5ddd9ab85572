package store

import (
	"context"
	"path"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for development runs and tests.
// A single mutex serializes every command, which gives Exec and Watch the same
// all-or-nothing visibility Redis MULTI/EXEC provides.
type MemoryStore struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	lists   map[string][]string
	strings map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets:    make(map[string]map[string]struct{}),
		lists:   make(map[string][]string),
		strings: make(map[string]string),
	}
}

func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smembers(key), nil
}

func (s *MemoryStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

func (s *MemoryStore) SInter(_ context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinter(keys...), nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lrange(key, start, stop), nil
}

func (s *MemoryStore) LIndex(_ context.Context, key string, index int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.lindex(key, index)
	return val, ok, nil
}

func (s *MemoryStore) LLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[key])), nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.strings[key]
	return val, ok, nil
}

func (s *MemoryStore) SAdd(ctx context.Context, key string, members ...string) error {
	return s.Exec(ctx, func(b Batch) { b.SAdd(key, members...) })
}

func (s *MemoryStore) SRem(ctx context.Context, key string, members ...string) error {
	return s.Exec(ctx, func(b Batch) { b.SRem(key, members...) })
}

func (s *MemoryStore) RPush(ctx context.Context, key string, values ...string) error {
	return s.Exec(ctx, func(b Batch) { b.RPush(key, values...) })
}

func (s *MemoryStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.Exec(ctx, func(b Batch) { b.LTrim(key, start, stop) })
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	return s.Exec(ctx, func(b Batch) { b.Set(key, value) })
}

// Exec queues the batch and applies it under the store lock.
func (s *MemoryStore) Exec(_ context.Context, fn func(Batch)) error {
	b := &memoryBatch{}
	fn(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range b.ops {
		op(s)
	}
	return nil
}

// Watch holds the store lock for the whole callback, so it never conflicts.
func (s *MemoryStore) Watch(_ context.Context, fn func(Tx) error, _ ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memoryTx{s: s})
}

func (s *MemoryStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, key := range s.keys() {
		if ok, err := path.Match(pattern, key); err != nil {
			return deleted, err
		} else if ok {
			s.del(key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) smembers(key string) []string {
	set := s.sets[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) sinter(keys ...string) []string {
	if len(keys) == 0 {
		return []string{}
	}
	out := []string{}
	for _, m := range s.smembers(keys[0]) {
		inAll := true
		for _, k := range keys[1:] {
			if _, ok := s.sets[k][m]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, m)
		}
	}
	return out
}

func (s *MemoryStore) lrange(key string, start, stop int64) []string {
	list := s.lists[key]
	lo, hi, ok := listBounds(int64(len(list)), start, stop)
	if !ok {
		return []string{}
	}
	out := make([]string, hi-lo+1)
	copy(out, list[lo:hi+1])
	return out
}

func (s *MemoryStore) lindex(key string, index int64) (string, bool) {
	list := s.lists[key]
	n := int64(len(list))
	if index < 0 {
		index += n
	}
	if index < 0 || index >= n {
		return "", false
	}
	return list[index], true
}

func (s *MemoryStore) keys() []string {
	keys := make([]string, 0, len(s.sets)+len(s.lists)+len(s.strings))
	for k := range s.sets {
		keys = append(keys, k)
	}
	for k := range s.lists {
		keys = append(keys, k)
	}
	for k := range s.strings {
		keys = append(keys, k)
	}
	return keys
}

func (s *MemoryStore) del(key string) {
	delete(s.sets, key)
	delete(s.lists, key)
	delete(s.strings, key)
}

// listBounds resolves Redis-style inclusive, possibly negative, indices.
func listBounds(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

type memoryBatch struct {
	ops []func(*MemoryStore)
}

func (b *memoryBatch) SAdd(key string, members ...string) {
	b.ops = append(b.ops, func(s *MemoryStore) {
		if len(members) == 0 {
			return
		}
		set, ok := s.sets[key]
		if !ok {
			set = make(map[string]struct{})
			s.sets[key] = set
		}
		for _, m := range members {
			set[m] = struct{}{}
		}
	})
}

func (b *memoryBatch) SRem(key string, members ...string) {
	b.ops = append(b.ops, func(s *MemoryStore) {
		set, ok := s.sets[key]
		if !ok {
			return
		}
		for _, m := range members {
			delete(set, m)
		}
		if len(set) == 0 {
			delete(s.sets, key)
		}
	})
}

func (b *memoryBatch) RPush(key string, values ...string) {
	b.ops = append(b.ops, func(s *MemoryStore) {
		if len(values) == 0 {
			return
		}
		s.lists[key] = append(s.lists[key], values...)
	})
}

func (b *memoryBatch) LTrim(key string, start, stop int64) {
	b.ops = append(b.ops, func(s *MemoryStore) {
		list, ok := s.lists[key]
		if !ok {
			return
		}
		lo, hi, ok := listBounds(int64(len(list)), start, stop)
		if !ok {
			delete(s.lists, key)
			return
		}
		trimmed := make([]string, hi-lo+1)
		copy(trimmed, list[lo:hi+1])
		s.lists[key] = trimmed
	})
}

func (b *memoryBatch) Set(key, value string) {
	b.ops = append(b.ops, func(s *MemoryStore) {
		s.strings[key] = value
	})
}

func (b *memoryBatch) Del(keys ...string) {
	b.ops = append(b.ops, func(s *MemoryStore) {
		for _, k := range keys {
			s.del(k)
		}
	})
}

// memoryTx runs with the store lock already held.
type memoryTx struct {
	s *MemoryStore
}

func (t *memoryTx) SMembers(_ context.Context, key string) ([]string, error) {
	return t.s.smembers(key), nil
}

func (t *memoryTx) SIsMember(_ context.Context, key, member string) (bool, error) {
	_, ok := t.s.sets[key][member]
	return ok, nil
}

func (t *memoryTx) SInter(_ context.Context, keys ...string) ([]string, error) {
	return t.s.sinter(keys...), nil
}

func (t *memoryTx) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	return t.s.lrange(key, start, stop), nil
}

func (t *memoryTx) LIndex(_ context.Context, key string, index int64) (string, bool, error) {
	val, ok := t.s.lindex(key, index)
	return val, ok, nil
}

func (t *memoryTx) LLen(_ context.Context, key string) (int64, error) {
	return int64(len(t.s.lists[key])), nil
}

func (t *memoryTx) Get(_ context.Context, key string) (string, bool, error) {
	val, ok := t.s.strings[key]
	return val, ok, nil
}

func (t *memoryTx) Exec(_ context.Context, fn func(Batch)) error {
	b := &memoryBatch{}
	fn(b)
	for _, op := range b.ops {
		op(t.s)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
