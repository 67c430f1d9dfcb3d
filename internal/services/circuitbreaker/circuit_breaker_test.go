package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, config Config) (*CircuitBreaker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, "gemini", config), mr
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
		FailureWindow:    2 * time.Minute,
	})
	ctx := context.Background()

	assert.True(t, cb.Allow(ctx))

	cb.RecordFailure(ctx)
	cb.RecordFailure(ctx)
	assert.True(t, cb.Allow(ctx))

	cb.RecordFailure(ctx)
	assert.False(t, cb.Allow(ctx))
}

func TestBreakerClosesOnSuccess(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{
		FailureThreshold: 2,
		OpenTimeout:      30 * time.Second,
		FailureWindow:    2 * time.Minute,
	})
	ctx := context.Background()

	cb.RecordFailure(ctx)
	cb.RecordFailure(ctx)
	require.False(t, cb.Allow(ctx))

	cb.RecordSuccess(ctx)
	assert.True(t, cb.Allow(ctx))

	// The counter was cleared too, so one failure does not re-open it.
	cb.RecordFailure(ctx)
	assert.True(t, cb.Allow(ctx))
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb, mr := newTestBreaker(t, Config{
		FailureThreshold: 1,
		OpenTimeout:      10 * time.Second,
		FailureWindow:    time.Minute,
	})
	ctx := context.Background()

	cb.RecordFailure(ctx)
	require.False(t, cb.Allow(ctx))

	mr.FastForward(11 * time.Second)
	assert.True(t, cb.Allow(ctx))
}

func TestBreakerDisabledWithoutRedis(t *testing.T) {
	cb := New(nil, "gemini", DefaultConfig())
	ctx := context.Background()

	for range 20 {
		cb.RecordFailure(ctx)
	}
	assert.True(t, cb.Allow(ctx))
}

func TestBreakerFailsOpenOnRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cb := New(rdb, "gemini", DefaultConfig())
	ctx := context.Background()

	mr.Close()
	assert.True(t, cb.Allow(ctx))
}

func TestBreakersIsolatedPerProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	config := Config{FailureThreshold: 1, OpenTimeout: 30 * time.Second, FailureWindow: time.Minute}
	gemini := New(rdb, "gemini", config)
	groq := New(rdb, "groq", config)
	ctx := context.Background()

	gemini.RecordFailure(ctx)
	assert.False(t, gemini.Allow(ctx))
	assert.True(t, groq.Allow(ctx))
}
