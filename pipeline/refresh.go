package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goPortal/session"
)

// ErrNoRefreshToken is returned by ForceRefresh for a non-renewable session.
var ErrNoRefreshToken = errors.New("no refresh token available")

type refreshPayload struct {
	AccessToken string `json:"accessToken"`
}

// awaitRefresh obtains a fresh access token for a request that was rejected
// with authErr. The caller either joins the refresh in flight or starts one.
func (p *Pipeline) awaitRefresh(ctx context.Context, authErr *Error) (string, error) {
	p.mu.Lock()
	if p.refreshing {
		ch := p.enqueueLocked()
		p.mu.Unlock()
		return p.wait(ctx, ch)
	}

	sess := p.store.Load(ctx)
	if sess == nil {
		// Guest credentials were rejected; there is nothing to refresh or reset.
		p.mu.Unlock()
		return "", authErr
	}
	if !sess.Renewable() {
		cleared, err := p.store.ClearIf(ctx, sess)
		if err != nil {
			p.logger.Error().Err(err).Msg("session clear failed")
		}
		p.mu.Unlock()

		if cleared || err != nil {
			p.teardown(ctx, ResetInfo{Reason: ResetNoRefreshToken, UserID: sess.UserID, Err: authErr})
		}
		return "", authErr
	}

	p.refreshing = true
	p.mu.Unlock()
	return p.runRefresh(ctx, sess)
}

// ForceRefresh exchanges the stored refresh token for a new access token
// outside the 401 path. A refresh already in flight is joined.
func (p *Pipeline) ForceRefresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.refreshing {
		ch := p.enqueueLocked()
		p.mu.Unlock()
		return p.wait(ctx, ch)
	}

	sess := p.store.Load(ctx)
	if sess == nil || !sess.Renewable() {
		p.mu.Unlock()
		return "", &Error{Message: "No refresh token available", Kind: KindRefresh, Err: ErrNoRefreshToken}
	}

	p.refreshing = true
	p.mu.Unlock()
	return p.runRefresh(ctx, sess)
}

func (p *Pipeline) enqueueLocked() chan refreshResult {
	ch := make(chan refreshResult, 1)
	p.waiters = append(p.waiters, ch)
	return ch
}

func (p *Pipeline) wait(ctx context.Context, ch <-chan refreshResult) (string, error) {
	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		return "", Normalize(nil, ctx.Err())
	}
}

// runRefresh performs the refresh call and settles every queued waiter with
// its outcome. p.refreshing must be set by the caller.
func (p *Pipeline) runRefresh(ctx context.Context, sess *session.Session) (string, error) {
	// The refresh outlives the caller that started it: waiters depend on it.
	detached := context.WithoutCancel(ctx)

	start := p.now()
	token, err := p.requestToken(detached, sess.RefreshToken)

	// The stored session may have been cleared or replaced by another
	// sign-in while the call was out; only the sign-in that started the
	// refresh is patched or cleared.
	reset := false
	p.mu.Lock()
	if err == nil {
		if perr := p.store.PatchAccessToken(detached, sess, token); perr != nil {
			err = &Error{
				Message: ErrSessionLost.Error(),
				Kind:    KindRefresh,
				Err:     fmt.Errorf("%w: %v", ErrSessionLost, perr),
			}
		}
	} else {
		cleared, cerr := p.store.ClearIf(detached, sess)
		if cerr != nil {
			p.logger.Error().Err(cerr).Msg("session clear failed")
		}
		reset = cleared || cerr != nil
	}
	waiters := p.waiters
	p.waiters = nil
	p.refreshing = false
	p.mu.Unlock()

	res := refreshResult{token: token, err: err}
	if err != nil {
		res.token = ""
	}
	for _, ch := range waiters {
		ch <- res
	}

	p.observer.OnRefresh(ctx, RefreshInfo{
		UserID:   sess.UserID,
		Duration: p.now().Sub(start),
		Waiters:  len(waiters),
		Err:      err,
	})

	if err != nil {
		p.logger.Warn().
			Str("user_id", sess.UserID).
			Int("waiters", len(waiters)).
			Err(err).
			Msg("token refresh failed")
		if reset {
			p.teardown(ctx, ResetInfo{Reason: ResetRefreshFailed, UserID: sess.UserID, Err: err})
		}
		return "", err
	}

	p.logger.Debug().
		Str("user_id", sess.UserID).
		Int("waiters", len(waiters)).
		Msg("token refreshed")
	return token, nil
}

// requestToken posts the refresh token to the refresh endpoint. The call
// carries no Authorization header and is never itself retried.
func (p *Pipeline) requestToken(ctx context.Context, refreshToken string) (string, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", refreshError(nil, err)
	}

	req := &Request{Method: http.MethodPost, Path: p.cfg.RefreshPath}
	resp, err := p.roundTrip(ctx, req.Method, req.Path, req, payload, "", p.newRequestID())
	if err != nil {
		return "", refreshError(resp, err)
	}

	var env Envelope[*refreshPayload]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return "", refreshError(resp, fmt.Errorf("%w: %v", ErrDecode, err))
	}
	if !env.Success || env.Data == nil || env.Data.AccessToken == "" {
		msg := env.Message
		if msg == "" {
			msg = "Token refresh failed"
		}
		return "", &Error{
			StatusCode: resp.StatusCode,
			Message:    msg,
			RawBody:    json.RawMessage(resp.Body),
			Kind:       KindRefresh,
			Err:        ErrRefreshFailed,
		}
	}
	return env.Data.AccessToken, nil
}

func refreshError(resp *Response, err error) *Error {
	out := Normalize(resp, err)
	out.Kind = KindRefresh
	return out
}

// ClearSession removes the stored session while holding the refresh lock, so
// a teardown never interleaves with a token patch. The resetter is not run:
// the caller initiated the teardown.
func (p *Pipeline) ClearSession(ctx context.Context, reason ResetReason) error {
	p.mu.Lock()
	var userID string
	if sess := p.store.Load(ctx); sess != nil {
		userID = sess.UserID
	}
	err := p.store.Clear(ctx)
	p.mu.Unlock()

	p.observer.OnReset(ctx, ResetInfo{Reason: reason, UserID: userID, Err: err})
	return err
}

func (p *Pipeline) teardown(ctx context.Context, info ResetInfo) {
	p.logger.Info().
		Str("reason", string(info.Reason)).
		Str("user_id", info.UserID).
		Msg("session reset")
	p.observer.OnReset(ctx, info)
	if p.resetter != nil {
		p.resetter(ctx, info)
	}
}
