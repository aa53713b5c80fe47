package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCooldown is returned by Acquire while a key is cooling down.
	ErrCooldown = errors.New("cooldown active")
	// ErrCooldownUnavailable wraps Redis failures.
	ErrCooldownUnavailable = errors.New("cooldown store unavailable")
)

// Cooldown grants at most one action per key within a window. Keys are
// case-insensitive.
type Cooldown interface {
	// Acquire starts the window for key. While a window is open it returns
	// the time left and ErrCooldown.
	Acquire(ctx context.Context, key string) (time.Duration, error)
	// Release ends the window for key early, e.g. after the action failed.
	Release(ctx context.Context, key string) error
}

// MemoryCooldown keeps windows in process memory.
type MemoryCooldown struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	until map[string]time.Time
}

// NewMemoryCooldown returns a [MemoryCooldown] with the given window.
func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	return &MemoryCooldown{
		window: window,
		now:    time.Now,
		until:  make(map[string]time.Time),
	}
}

// WithClock overrides the clock. Intended for tests.
func (c *MemoryCooldown) WithClock(now func() time.Time) *MemoryCooldown {
	c.now = now
	return c
}

func (c *MemoryCooldown) Acquire(_ context.Context, key string) (time.Duration, error) {
	if c == nil || c.window <= 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, until := range c.until {
		if !now.Before(until) {
			delete(c.until, k)
		}
	}

	key = normalizeKey(key)
	if until, ok := c.until[key]; ok {
		return until.Sub(now), ErrCooldown
	}
	c.until[key] = now.Add(c.window)
	return 0, nil
}

func (c *MemoryCooldown) Release(_ context.Context, key string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	delete(c.until, normalizeKey(key))
	c.mu.Unlock()
	return nil
}

// RedisCooldown shares windows between processes through Redis keys with a TTL.
type RedisCooldown struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
}

// NewRedisCooldown returns a [RedisCooldown] storing keys under prefix.
func NewRedisCooldown(client redis.UniversalClient, prefix string, window time.Duration) *RedisCooldown {
	if prefix == "" {
		prefix = "portal"
	}
	return &RedisCooldown{redis: client, prefix: prefix, window: window}
}

func (c *RedisCooldown) Acquire(ctx context.Context, key string) (time.Duration, error) {
	if c == nil || c.window <= 0 {
		return 0, nil
	}

	k := c.key(key)
	ok, err := c.redis.SetNX(ctx, k, 1, c.window).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCooldownUnavailable, err)
	}
	if ok {
		return 0, nil
	}

	left, err := c.redis.PTTL(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCooldownUnavailable, err)
	}
	if left < 0 {
		left = c.window
	}
	return left, ErrCooldown
}

func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCooldownUnavailable, err)
	}
	return nil
}

func (c *RedisCooldown) key(key string) string {
	return c.prefix + ":cooldown:" + normalizeKey(key)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
