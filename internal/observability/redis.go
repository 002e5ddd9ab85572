package observability

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMetricsHook records the latency of every redis command and pipeline.
type RedisMetricsHook struct{}

func (RedisMetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		ObserveStoreOp("dial", err, time.Since(start))
		return conn, err
	}
}

func (RedisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		ObserveStoreOp(cmd.Name(), ignoreNil(err), time.Since(start))
		return err
	}
}

func (RedisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		ObserveStoreOp("pipeline", ignoreNil(err), time.Since(start))
		return err
	}
}

// redis.Nil is a cache miss, not a failure.
func ignoreNil(err error) error {
	if err == redis.Nil {
		return nil
	}
	return err
}
