package redislock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellinios/aethra/internal/domain"
)

// memClient emulates the three commands the lock issues.
type memClient struct {
	mu    sync.Mutex
	keys  map[string]string
	ttls  map[string]time.Duration
	err   error
	evals int
}

func newMemClient() *memClient {
	return &memClient{keys: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memClient) SetNX(_ context.Context, key string, value any, exp time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if _, ok := m.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.keys[key] = value.(string)
	m.ttls[key] = exp
	return redis.NewBoolResult(true, nil)
}

func (m *memClient) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evals++
	if m.err != nil {
		return redis.NewCmdResult(nil, m.err)
	}
	if m.keys[keys[0]] == args[0].(string) {
		delete(m.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *memClient) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", m.err)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLock_AcquireRelease(t *testing.T) {
	c := newMemClient()
	l := newLock(c, "", time.Minute, discardLogger())

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Contains(t, c.keys, DefaultKey)
	assert.Equal(t, time.Minute, c.ttls[DefaultKey])

	_, err = l.Acquire(context.Background())
	require.ErrorIs(t, err, domain.ErrLockHeld)

	require.NoError(t, release(context.Background()))
	assert.NotContains(t, c.keys, DefaultKey)

	release, err = l.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}

func TestLock_ReleaseDoesNotStealTakenOverLock(t *testing.T) {
	c := newMemClient()
	l := newLock(c, "k", time.Minute, discardLogger())

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	// Simulate expiry followed by another process taking the key.
	c.keys["k"] = "someone-else"

	require.NoError(t, release(context.Background()))
	assert.Equal(t, "someone-else", c.keys["k"])
}

func TestLock_BackendError(t *testing.T) {
	down := errors.New("connection refused")
	c := newMemClient()
	c.err = down
	l := newLock(c, "k", time.Minute, discardLogger())

	_, err := l.Acquire(context.Background())
	require.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, domain.ErrLockHeld)
	require.ErrorIs(t, l.CheckReadiness(context.Background()), down)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url")
	require.Error(t, err)
}
