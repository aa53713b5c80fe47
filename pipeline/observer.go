package pipeline

import (
	"context"
	"time"
)

// Attempt identifies which send of a logical request an observation covers.
type Attempt uint8

const (
	// AttemptFirst is the original send.
	AttemptFirst Attempt = iota
	// AttemptResubmit is the single send after a token refresh.
	AttemptResubmit
)

// RequestInfo describes one HTTP exchange.
type RequestInfo struct {
	Method     string
	Path       string
	RequestID  string
	StatusCode int
	Duration   time.Duration
	Attempt    Attempt
	Err        error
}

// RefreshInfo describes one completed refresh cycle.
type RefreshInfo struct {
	UserID   string
	Duration time.Duration
	// Waiters is the number of callers that were queued on this refresh.
	Waiters int
	Err     error
}

// ResetReason says why a session was torn down.
type ResetReason string

const (
	// ResetNoRefreshToken: a 401/403 arrived for a session that cannot refresh.
	ResetNoRefreshToken ResetReason = "no_refresh_token"
	// ResetRefreshFailed: the refresh endpoint rejected the refresh token.
	ResetRefreshFailed ResetReason = "refresh_failed"
	// ResetLogout: the user signed out.
	ResetLogout ResetReason = "logout"
)

// ResetInfo describes a session teardown.
type ResetInfo struct {
	Reason ResetReason
	UserID string
	Err    error
}

// Observer receives pipeline outcomes. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	OnRequest(ctx context.Context, info RequestInfo)
	OnRefresh(ctx context.Context, info RefreshInfo)
	OnReset(ctx context.Context, info ResetInfo)
}

// Resetter returns the application to its unauthenticated entry point after
// the session has been cleared, dropping any client-held state.
type Resetter func(ctx context.Context, info ResetInfo)

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) OnRequest(context.Context, RequestInfo) {}
func (NopObserver) OnRefresh(context.Context, RefreshInfo) {}
func (NopObserver) OnReset(context.Context, ResetInfo) {}
