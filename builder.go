package goPortal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goPortal/authapi"
	"github.com/MrEthical07/goPortal/internal/events"
	"github.com/MrEthical07/goPortal/internal/limiters"
	"github.com/MrEthical07/goPortal/pipeline"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/session/redisstore"
	"github.com/MrEthical07/goPortal/userapi"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Builder assembles a [Client]. A builder is single-use.
type Builder struct {
	config     Config
	backend    session.Backend
	redis      redis.UniversalClient
	logger     zerolog.Logger
	sink       EventSink
	resetter   pipeline.Resetter
	httpClient *http.Client
	tracer     trace.TracerProvider

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBackend stores the session in backend, overriding Config.Session.Backend.
func (b *Builder) WithBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis supplies the Redis client for the redis session backend and the
// shared OTP resend cooldown. The caller keeps ownership of client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger for every component.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink receives lifecycle events. Events are only dispatched when
// Config.Events.Enabled is set.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithResetter runs fn after the pipeline tears a session down.
func (b *Builder) WithResetter(fn pipeline.Resetter) *Builder {
	b.resetter = fn
	return b
}

// WithHTTPClient replaces the HTTP client. Its Timeout is overwritten with
// Config.API.Timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithTracerProvider selects the OpenTelemetry provider for call spans.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// Build validates the configuration, opens the session backend and wires the
// clients. The redis backend without [Builder.WithRedis] dials
// Config.Session.RedisAddr.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, redisClient, closeBackend, err := b.openBackend(&cfg)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(backend, session.WithLogger(b.logger))
	metrics := NewMetrics(cfg.Metrics)
	dispatcher := events.NewDispatcher(events.Config{
		Enabled:    cfg.Events.Enabled,
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, b.sink)

	c := &Client{
		config:       cfg,
		store:        store,
		metrics:      metrics,
		events:       dispatcher,
		logger:       b.logger,
		now:          time.Now,
		closeBackend: closeBackend,
	}

	p, err := pipeline.New(cfg.pipelineConfig(), store,
		pipeline.WithLogger(b.logger),
		pipeline.WithObserver(&observer{client: c}),
		pipeline.WithResetter(b.resetter),
		pipeline.WithHTTPClient(b.httpClient),
		pipeline.WithTracerProvider(b.tracer),
	)
	if err != nil {
		dispatcher.Close()
		if closeBackend != nil {
			_ = closeBackend()
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.pipeline = p

	var cooldown authapi.Cooldown = limiters.NewMemoryCooldown(cfg.Auth.ResendCooldown)
	if redisClient != nil {
		cooldown = limiters.NewRedisCooldown(redisClient, cfg.Session.RedisPrefix, cfg.Auth.ResendCooldown)
	}
	c.auth = authapi.New(p,
		authapi.WithLogger(b.logger),
		authapi.WithCooldown(cooldown),
		authapi.WithOutcomeFunc(c.onOutcome),
	)
	c.users = userapi.New(p)

	b.built = true
	return c, nil
}

func (b *Builder) openBackend(cfg *Config) (session.Backend, redis.UniversalClient, func() error, error) {
	if b.backend != nil {
		return b.backend, b.redis, nil, nil
	}

	switch strings.ToLower(cfg.Session.Backend) {
	case BackendFile:
		path, err := cfg.SessionFile()
		if err != nil {
			return nil, nil, nil, err
		}
		return session.NewFileBackend(path), b.redis, nil, nil
	case BackendRedis:
		opts := redisstore.Options{
			Addr:    cfg.Session.RedisAddr,
			Prefix:  cfg.Session.RedisPrefix,
			Profile: cfg.Session.Profile,
			TTL:     cfg.Session.TTL,
		}
		if b.redis != nil {
			return redisstore.New(b.redis, opts), b.redis, nil, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
		defer cancel()
		backend, err := redisstore.Dial(ctx, opts)
		if err != nil {
			return nil, nil, nil, err
		}
		return backend, backend.Client(), backend.Close, nil
	default:
		return session.NewMemoryBackend(), b.redis, nil, nil
	}
}
