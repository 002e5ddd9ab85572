package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-hub/internal/config"
	"chat-hub/internal/store"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := Connect(context.Background(), config.Config{StoreDriver: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.SAdd(context.Background(), "chat:r1:users", "alice"))
	members, err := mr.Members("chat:r1:users")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, members)
}

func TestConnectMemory(t *testing.T) {
	s, err := Connect(context.Background(), config.Config{StoreDriver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)
}

func TestConnectFailures(t *testing.T) {
	_, err := Connect(context.Background(), config.Config{StoreDriver: "etcd"})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), config.Config{StoreDriver: "redis", RedisAddr: addr})
	assert.Error(t, err)
}
