package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-hub/internal/models"
	"chat-hub/internal/store"
)

func textMessage(id, sender string, readBy ...string) models.Message {
	if readBy == nil {
		readBy = []string{}
	}
	return models.Message{
		ID:        id,
		SenderID:  sender,
		Type:      models.MessageTypeText,
		Content:   []string{"hello " + id},
		Timestamp: time.Unix(0, 0).UTC(),
		ReadBy:    readBy,
	}
}

func TestAppendKeepsNewestEntries(t *testing.T) {
	repo := NewMessageRepo(store.NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, repo.Append(ctx, "r1", textMessage(fmt.Sprintf("m%03d", i), "alice")))
	}

	msgs, err := repo.Range(ctx, "r1", 1000)
	require.NoError(t, err)
	require.Len(t, msgs, MaxLogSize)
	assert.Equal(t, "m150", msgs[0].ID)
	assert.Equal(t, "m249", msgs[len(msgs)-1].ID)
}

func TestRangeDefaultsAndWindow(t *testing.T) {
	repo := NewMessageRepo(store.NewMemoryStore())
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		require.NoError(t, repo.Append(ctx, "r1", textMessage(fmt.Sprintf("m%02d", i), "alice")))
	}

	msgs, err := repo.Range(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, DefaultHistoryLimit)
	assert.Equal(t, "m10", msgs[0].ID)

	msgs, err = repo.Range(ctx, "r1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m57", "m58", "m59"}, ids(msgs))
}

func TestLatest(t *testing.T) {
	repo := NewMessageRepo(store.NewMemoryStore())
	ctx := context.Background()

	latest, err := repo.Latest(ctx, "empty")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.Append(ctx, "r1", textMessage("m1", "alice")))
	require.NoError(t, repo.Append(ctx, "r1", textMessage("m2", "bob")))
	latest, err = repo.Latest(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "m2", latest.ID)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	repo := NewMessageRepo(store.NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Append(ctx, "r1", textMessage(fmt.Sprintf("m%02d", i), "alice")))
		}(i)
	}
	wg.Wait()

	msgs, err := repo.Range(ctx, "r1", MaxLogSize)
	require.NoError(t, err)
	assert.Len(t, msgs, 40)
}

func TestMarkReadSingleMessage(t *testing.T) {
	repo := NewMessageRepo(store.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, "r1", textMessage("m1", "alice", "alice")))
	require.NoError(t, repo.Append(ctx, "r1", textMessage("m2", "alice", "alice")))

	require.NoError(t, repo.MarkRead(ctx, "r1", "bob", "m1"))

	msgs, err := repo.Range(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, msgs[0].ReadBy)
	assert.Equal(t, []string{"alice"}, msgs[1].ReadBy)

	count, err := repo.UnreadCount(ctx, "r1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkReadAllIsIdempotent(t *testing.T) {
	repo := NewMessageRepo(store.NewMemoryStore())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, "r1", textMessage(fmt.Sprintf("m%d", i), "alice", "alice")))
	}

	require.NoError(t, repo.MarkRead(ctx, "r1", "bob", ""))
	require.NoError(t, repo.MarkRead(ctx, "r1", "bob", ""))

	msgs, err := repo.Range(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for _, m := range msgs {
		assert.Equal(t, []string{"alice", "bob"}, m.ReadBy)
	}

	count, err := repo.UnreadCount(ctx, "r1", "bob")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkReadUnknownMessageIsNoop(t *testing.T) {
	repo := NewMessageRepo(store.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, "r1", textMessage("m1", "alice", "alice")))

	require.NoError(t, repo.MarkRead(ctx, "r1", "bob", "missing"))
	count, err := repo.UnreadCount(ctx, "r1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkReadFailureIsReadMarkFailed(t *testing.T) {
	repo := NewMessageRepo(&faultyStore{MemoryStore: store.NewMemoryStore(), failWatch: store.ErrConflict})
	err := repo.MarkRead(context.Background(), "r1", "bob", "")
	assert.ErrorIs(t, err, ErrReadMarkFailed)
}

func TestMarkReadRacingAppendsKeepsBoth(t *testing.T) {
	repo := NewMessageRepo(store.NewMemoryStore())
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, repo.Append(ctx, "r1", textMessage(fmt.Sprintf("old%d", i), "alice", "alice")))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Append(ctx, "r1", textMessage(fmt.Sprintf("new%d", i), "alice", "alice")))
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.MarkRead(ctx, "r1", "bob", ""))
		}()
	}
	wg.Wait()

	msgs, err := repo.Range(ctx, "r1", MaxLogSize)
	require.NoError(t, err)
	assert.Len(t, msgs, 20)
	for _, m := range msgs[:10] {
		assert.True(t, m.IsReadBy("bob"), m.ID)
	}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
