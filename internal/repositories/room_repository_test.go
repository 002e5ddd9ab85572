package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-hub/internal/store"
)

// faultyStore lets the first Exec land partially and then fail, the way a
// dropped connection mid-transaction would.
type faultyStore struct {
	*store.MemoryStore
	failExec  int
	failWatch error
}

func (f *faultyStore) Exec(ctx context.Context, fn func(store.Batch)) error {
	if f.failExec > 0 {
		f.failExec--
		_ = f.MemoryStore.Exec(ctx, func(b store.Batch) {
			// apply only the first queued command
			first := true
			fn(partialBatch{Batch: b, first: &first})
		})
		return errors.New("connection reset")
	}
	return f.MemoryStore.Exec(ctx, fn)
}

func (f *faultyStore) Watch(ctx context.Context, fn func(store.Tx) error, keys ...string) error {
	if f.failWatch != nil {
		return f.failWatch
	}
	return f.MemoryStore.Watch(ctx, fn, keys...)
}

type partialBatch struct {
	store.Batch
	first *bool
}

func (p partialBatch) SAdd(key string, members ...string) {
	if *p.first {
		*p.first = false
		p.Batch.SAdd(key, members...)
	}
}

func (p partialBatch) Set(string, string) {}

func TestInitializeRoomDeduplicatesDirectRooms(t *testing.T) {
	repo := NewRoomRepo(store.NewMemoryStore())
	ctx := context.Background()

	first, err := repo.InitializeRoom(ctx, []string{"alice", "bob"}, "")
	require.NoError(t, err)
	second, err := repo.InitializeRoom(ctx, []string{"bob", "alice", "bob"}, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rooms, err := repo.ListRoomsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{first}, rooms)
}

func TestInitializeRoomDirectIgnoresSharedGroup(t *testing.T) {
	repo := NewRoomRepo(store.NewMemoryStore())
	ctx := context.Background()

	group, err := repo.InitializeRoom(ctx, []string{"alice", "bob", "carol"}, "")
	require.NoError(t, err)
	direct, err := repo.InitializeRoom(ctx, []string{"alice", "bob"}, "")
	require.NoError(t, err)
	assert.NotEqual(t, group, direct)

	members, err := repo.GetMembers(ctx, direct)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members)
}

func TestInitializeRoomGroupsAlwaysCreate(t *testing.T) {
	repo := NewRoomRepo(store.NewMemoryStore())
	ctx := context.Background()
	members := []string{"alice", "bob", "carol"}

	first, err := repo.InitializeRoom(ctx, members, "trip")
	require.NoError(t, err)
	second, err := repo.InitializeRoom(ctx, members, "trip")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	name, ok, err := repo.GetName(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "trip", name)

	for _, m := range members {
		rooms, err := repo.ListRoomsForUser(ctx, m)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{first, second}, rooms)
	}
}

func TestInitializeRoomRejectsSingleMember(t *testing.T) {
	repo := NewRoomRepo(store.NewMemoryStore())
	_, err := repo.InitializeRoom(context.Background(), []string{"alice", "alice", ""}, "")
	assert.ErrorIs(t, err, ErrInvalidMembers)
}

func TestInitializeRoomConcurrentDirectCallsAgree(t *testing.T) {
	repo := NewRoomRepo(store.NewMemoryStore())
	ctx := context.Background()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := repo.InitializeRoom(ctx, []string{"alice", "bob"}, "")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestInitializeRoomRollsBackOnFailedWrite(t *testing.T) {
	mem := store.NewMemoryStore()
	repo := NewRoomRepo(&faultyStore{MemoryStore: mem, failExec: 1})
	repo.newID = func() string { return "room-1" }
	ctx := context.Background()

	_, err := repo.InitializeRoom(ctx, []string{"alice", "bob", "carol"}, "")
	require.ErrorIs(t, err, ErrRoomInitFailed)

	members, err := mem.SMembers(ctx, RoomUsersKey("room-1"))
	require.NoError(t, err)
	assert.Empty(t, members)
	for _, m := range []string{"alice", "bob", "carol"} {
		rooms, err := mem.SMembers(ctx, UserRoomsKey(m))
		require.NoError(t, err)
		assert.Empty(t, rooms, fmt.Sprintf("rooms of %s", m))
	}
}

func TestInitializeDirectRoomFailureIsRoomInitFailed(t *testing.T) {
	repo := NewRoomRepo(&faultyStore{MemoryStore: store.NewMemoryStore(), failWatch: store.ErrConflict})
	_, err := repo.InitializeRoom(context.Background(), []string{"alice", "bob"}, "")
	assert.ErrorIs(t, err, ErrRoomInitFailed)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestIsMember(t *testing.T) {
	repo := NewRoomRepo(store.NewMemoryStore())
	ctx := context.Background()
	roomID, err := repo.InitializeRoom(ctx, []string{"alice", "bob"}, "")
	require.NoError(t, err)

	ok, err := repo.IsMember(ctx, roomID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsMember(ctx, roomID, "mallory")
	require.NoError(t, err)
	assert.False(t, ok)
}
