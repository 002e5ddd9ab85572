package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-hub/internal/config"
	"chat-hub/internal/observability"
	"chat-hub/internal/store"
)

const pingTimeout = 5 * time.Second

// Connect opens the store selected by cfg.StoreDriver and verifies it answers.
func Connect(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Println("store: using in-memory driver, state is lost on restart")
		return store.NewMemoryStore(), nil
	case "redis", "":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	client.AddHook(observability.RedisMetricsHook{})

	s := store.NewRedisStore(client)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}

	log.Printf("store: connected to redis addr=%s db=%d", cfg.RedisAddr, cfg.RedisDB)
	return s, nil
}
