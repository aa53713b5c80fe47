package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goPortal/session"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis command failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Options configures a [Backend].
type Options struct {
	// Addr like "localhost:6379". Used by Dial only.
	Addr string
	// Prefix namespaces keys. Defaults to "portal".
	Prefix string
	// Profile distinguishes sessions sharing one Redis. Defaults to "default".
	Profile string
	// TTL expires the record when positive; every write restarts it.
	TTL time.Duration
}

// Backend implements [session.Backend] on a Redis string key.
type Backend struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
	owned bool
}

// New returns a [Backend] using client. The caller keeps ownership of client.
func New(client redis.UniversalClient, opts Options) *Backend {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "portal"
	}
	profile := opts.Profile
	if profile == "" {
		profile = "default"
	}
	return &Backend{
		redis: client,
		key:   prefix + ":session:" + profile,
		ttl:   opts.TTL,
	}
}

// Dial connects to opts.Addr, verifies the connection with PING, and returns
// a [Backend] that owns the client.
func Dial(ctx context.Context, opts Options) (*Backend, error) {
	addr := opts.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrRedisUnavailable, addr, err)
	}
	b := New(client, opts)
	b.owned = true
	return b, nil
}

// Key returns the Redis key holding the record.
func (b *Backend) Key() string {
	return b.key
}

// Client returns the underlying Redis client.
func (b *Backend) Client() redis.UniversalClient {
	return b.redis
}

// Close closes the client when the backend owns it.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.redis.Close()
}

func (b *Backend) Get(ctx context.Context) ([]byte, error) {
	data, err := b.redis.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

func (b *Backend) Put(ctx context.Context, data []byte) error {
	if err := b.redis.Set(ctx, b.key, data, b.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context) error {
	if err := b.redis.Del(ctx, b.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
