// Package redislock guards pipeline runs across processes with a Redis
// key set via SET NX PX.
package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sellinios/aethra/internal/domain"
)

// DefaultKey is the lock key shared by every pipeline process.
const DefaultKey = "aethra:pipeline:lock"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is never released by us.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// client is the subset of *redis.Client the lock uses.
type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Lock is a best-effort mutual exclusion lease. It implements
// pipeline.RunLock.
type Lock struct {
	client client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// Connect parses a redis:// URL and checks the server responds.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return c, nil
}

// New creates a lock on key that expires after ttl unless released.
func New(c *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *Lock {
	return newLock(c, key, ttl, logger)
}

func newLock(c client, key string, ttl time.Duration, logger *slog.Logger) *Lock {
	if key == "" {
		key = DefaultKey
	}
	return &Lock{client: c, key: key, ttl: ttl, logger: logger}
}

// Acquire takes the lease or returns domain.ErrLockHeld when another
// holder has it. The returned release func is safe to call after expiry.
func (l *Lock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", l.key, domain.ErrLockHeld)
	}
	l.logger.Debug("run lock acquired", "key", l.key, "ttl", l.ttl)

	release := func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Int64()
		if err != nil {
			return fmt.Errorf("release %s: %w", l.key, err)
		}
		if n == 0 {
			l.logger.Warn("run lock expired before release", "key", l.key)
		}
		return nil
	}
	return release, nil
}

// CheckReadiness pings the Redis server.
func (l *Lock) CheckReadiness(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
