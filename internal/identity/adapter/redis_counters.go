package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/bagly/claim-intake/internal/redis"
)

// incrementScript increments KEYS[1] and (re)sets its TTL to ARGV[1]
// milliseconds in one round trip, so a counter never exists without expiry.
var incrementScript = redisclient.NewScript(`
local count = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return count
`)

// CounterStore implements app.CounterStore on Redis. Keys are used as given;
// namespacing is the caller's job.
type CounterStore struct {
	cmd redisclient.Cmdable
}

// NewCounterStore creates a CounterStore that uses cmd for Redis operations.
func NewCounterStore(cmd redisclient.Cmdable) *CounterStore {
	return &CounterStore{cmd: cmd}
}

// Get returns the counter value, or 0 when the key is absent or expired.
func (s *CounterStore) Get(ctx context.Context, key string) (int64, error) {
	ctx, span := startSpan(ctx, "redis.counter.get", "redis", "GET")
	defer span.End()

	n, err := s.cmd.Get(ctx, key).Int64()
	if errors.Is(err, redisclient.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, failSpan(span, fmt.Errorf("counter get %q: %w", key, err))
	}
	return n, nil
}

// Increment atomically adds one to key and (re)sets its TTL.
func (s *CounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, span := startSpan(ctx, "redis.counter.increment", "redis", "EVALSHA")
	defer span.End()

	n, err := incrementScript.Run(ctx, s.cmd, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, failSpan(span, fmt.Errorf("counter increment %q: %w", key, err))
	}
	return n, nil
}

// Set stores value under key with the given TTL.
func (s *CounterStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	ctx, span := startSpan(ctx, "redis.counter.set", "redis", "SET")
	defer span.End()

	if err := s.cmd.Set(ctx, key, value, ttl).Err(); err != nil {
		return failSpan(span, fmt.Errorf("counter set %q: %w", key, err))
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *CounterStore) Delete(ctx context.Context, key string) error {
	ctx, span := startSpan(ctx, "redis.counter.delete", "redis", "DEL")
	defer span.End()

	if err := s.cmd.Del(ctx, key).Err(); err != nil {
		return failSpan(span, fmt.Errorf("counter delete %q: %w", key, err))
	}
	return nil
}
