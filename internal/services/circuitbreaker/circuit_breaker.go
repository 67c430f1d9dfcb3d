// Package circuitbreaker keeps per-provider failure state in Redis so that a
// vendor outage trips once for the whole deployment, not once per process.
package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// Config tunes one breaker.
type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// OpenTimeout is how long the breaker stays open before a probe request
	// is let through again.
	OpenTimeout time.Duration
	// FailureWindow bounds how long failures accumulate before the counter
	// expires on its own.
	FailureWindow time.Duration
}

// DefaultConfig returns the tuning used for provider calls.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		FailureWindow:    2 * time.Minute,
	}
}

// CircuitBreaker guards one provider. A nil Redis client disables the
// breaker entirely (every call is allowed), which keeps single-node dev
// setups working without Redis.
type CircuitBreaker struct {
	rdb      *redis.Client
	provider string
	config   Config
}

func New(rdb *redis.Client, provider string, config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config = DefaultConfig()
	}
	return &CircuitBreaker{
		rdb:      rdb,
		provider: provider,
		config:   config,
	}
}

func (cb *CircuitBreaker) failuresKey() string {
	return fmt.Sprintf("circuit_breaker:%s:failures", cb.provider)
}

func (cb *CircuitBreaker) openKey() string {
	return fmt.Sprintf("circuit_breaker:%s:open", cb.provider)
}

// Allow reports whether a call may proceed. The open marker expires after
// OpenTimeout, so the first call after the window acts as the half-open
// probe. Redis errors fail open: a broken breaker must not take the
// pipeline down with it.
func (cb *CircuitBreaker) Allow(ctx context.Context) bool {
	if cb.rdb == nil {
		return true
	}

	n, err := cb.rdb.Exists(ctx, cb.openKey()).Result()
	if err != nil {
		fiberlog.Warnf("circuit breaker check failed for %s, allowing call: %v", cb.provider, err)
		return true
	}
	return n == 0
}

// RecordSuccess closes the breaker and clears accumulated failures.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context) {
	if cb.rdb == nil {
		return
	}
	if err := cb.rdb.Del(ctx, cb.failuresKey(), cb.openKey()).Err(); err != nil {
		fiberlog.Warnf("circuit breaker reset failed for %s: %v", cb.provider, err)
	}
}

// RecordFailure bumps the failure counter and opens the breaker once the
// threshold is reached.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context) {
	if cb.rdb == nil {
		return
	}

	pipe := cb.rdb.TxPipeline()
	incr := pipe.Incr(ctx, cb.failuresKey())
	pipe.Expire(ctx, cb.failuresKey(), cb.config.FailureWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		fiberlog.Warnf("circuit breaker failure record failed for %s: %v", cb.provider, err)
		return
	}

	if incr.Val() >= int64(cb.config.FailureThreshold) {
		if err := cb.rdb.Set(ctx, cb.openKey(), time.Now().Unix(), cb.config.OpenTimeout).Err(); err != nil {
			fiberlog.Warnf("circuit breaker open failed for %s: %v", cb.provider, err)
			return
		}
		fiberlog.Warnf("circuit breaker opened for provider %s after %d failures", cb.provider, incr.Val())
	}
}
