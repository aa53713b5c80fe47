package goPortal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goPortal/authapi"
	"github.com/MrEthical07/goPortal/guard"
	"github.com/MrEthical07/goPortal/internal/events"
	"github.com/MrEthical07/goPortal/pipeline"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/userapi"
	"github.com/rs/zerolog"
)

// Client is the assembled portal SDK.
//
//	Concurrency: safe for use by multiple goroutines. All calls share one
//	session store and one refresh cycle.
type Client struct {
	config   Config
	pipeline *pipeline.Pipeline
	store    *session.Store
	auth     *authapi.Client
	users    *userapi.Client
	metrics  *Metrics
	events   *events.Dispatcher
	logger   zerolog.Logger
	now      func() time.Time

	closeBackend func() error
	closed       atomic.Bool
}

// Auth returns the /auth endpoint client.
func (c *Client) Auth() *authapi.Client {
	return c.auth
}

// Users returns the /users endpoint client.
func (c *Client) Users() *userapi.Client {
	return c.users
}

// Session returns the session store.
func (c *Client) Session() *session.Store {
	return c.store
}

// Pipeline returns the request pipeline for endpoints without a typed client.
func (c *Client) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.config
}

// CurrentUser returns the stored session, or nil for a guest.
func (c *Client) CurrentUser(ctx context.Context) *session.Session {
	return c.store.Load(ctx)
}

// Decide evaluates the route guard for path against the stored session.
func (c *Client) Decide(ctx context.Context, path string) guard.Decision {
	return guard.DecidePath(path, c.store.Load(ctx))
}

// Metrics returns the live metrics.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot copies the current metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped is the number of events dropped under backpressure.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// Close flushes pending events and releases a backend the client opened
// itself. The stored session is kept.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	c.events.Close()
	if c.closeBackend != nil {
		return c.closeBackend()
	}
	return nil
}

func (c *Client) emit(ctx context.Context, e Event) {
	if c.events == nil {
		return
	}
	e.Timestamp = c.now()
	c.events.Emit(ctx, e)
}

func (c *Client) onOutcome(ctx context.Context, out authapi.Outcome) {
	c.metrics.recordOutcome(out)

	c.emit(ctx, events.AuthOutcome(events.Type(out.Op), out.UserID, out.Email, out.Err))
}

// observer fans pipeline outcomes out to metrics and events.
type observer struct {
	client *Client
}

func (o *observer) OnRequest(ctx context.Context, info pipeline.RequestInfo) {
	o.client.metrics.OnRequest(ctx, info)
}

func (o *observer) OnRefresh(ctx context.Context, info pipeline.RefreshInfo) {
	o.client.metrics.OnRefresh(ctx, info)

	o.client.emit(ctx, events.RefreshCycle(info.UserID, info.Waiters, info.Duration, info.Err))
}

func (o *observer) OnReset(ctx context.Context, info pipeline.ResetInfo) {
	o.client.metrics.OnReset(ctx, info)

	o.client.emit(ctx, events.SessionReset(info.UserID, string(info.Reason), info.Err))
}
