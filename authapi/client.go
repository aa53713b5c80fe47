package authapi

import (
	"context"
	"errors"

	"github.com/MrEthical07/goPortal/internal/limiters"
	"github.com/MrEthical07/goPortal/pipeline"
	"github.com/MrEthical07/goPortal/session"
	"github.com/rs/zerolog"
)

// ErrWrongPortal is returned by PortalLogin when the account's role does not
// belong on the chosen login portal.
var ErrWrongPortal = errors.New("wrong login portal")

// Op names an auth operation in an [Outcome].
type Op string

const (
	OpRegister       Op = "register"
	OpLogin          Op = "login"
	OpLogout         Op = "logout"
	OpRefresh        Op = "refresh"
	OpVerifyOTP      Op = "verify_otp"
	OpResetPassword  Op = "reset_password"
	OpChangePassword Op = "change_password"
)

// Outcome describes a finished auth operation.
type Outcome struct {
	Op     Op
	UserID string
	Email  string
	Err    error
}

// Client calls the /auth endpoints.
type Client struct {
	p        *pipeline.Pipeline
	store    *session.Store
	logger   zerolog.Logger
	cooldown Cooldown
	notify   func(context.Context, Outcome)
}

// Option configures a [Client].
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCooldown replaces the in-memory OTP resend cooldown.
func WithCooldown(cooldown Cooldown) Option {
	return func(c *Client) {
		if cooldown != nil {
			c.cooldown = cooldown
		}
	}
}

// WithOutcomeFunc registers a callback run after each credential-changing
// operation.
func WithOutcomeFunc(fn func(context.Context, Outcome)) Option {
	return func(c *Client) {
		c.notify = fn
	}
}

// New returns a [Client] persisting sessions in p's store.
func New(p *pipeline.Pipeline, opts ...Option) *Client {
	c := &Client{
		p:        p,
		store:    p.Store(),
		logger:   zerolog.Nop(),
		cooldown: limiters.NewMemoryCooldown(ResendCooldown),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentUser returns the stored session, or nil for a guest.
func (c *Client) CurrentUser(ctx context.Context) *session.Session {
	return c.store.Load(ctx)
}

func (c *Client) report(ctx context.Context, out Outcome) {
	if c.notify != nil {
		c.notify(ctx, out)
	}
}
