package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goPortal/session"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeAPI struct {
	srv *httptest.Server

	mu            sync.Mutex
	valid         string
	issue         string
	refreshStatus int
	rejectAll     bool
	gate          chan struct{}
	seen          []string

	refreshCalls atomic.Int32
	refreshBody  atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{valid: "access-2", issue: "access-2"}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) baseURL() string {
	return f.srv.URL + "/api"
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/api/auth/refresh":
		f.refreshCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.refreshBody.Store(body["refreshToken"])

		f.mu.Lock()
		gate := f.gate
		status := f.refreshStatus
		issue := f.issue
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid refresh token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"accessToken":"` + issue + `"}}`))
		return
	case "/api/missing":
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not found"}`))
		return
	}

	auth := r.Header.Get("Authorization")
	f.mu.Lock()
	f.seen = append(f.seen, auth)
	ok := !f.rejectAll && auth == "Bearer "+f.valid
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Token expired"}`))
		return
	}
	_, _ = w.Write([]byte(`{"success":true,"data":{"path":"` + r.URL.Path + `"}}`))
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func (f *fakeAPI) seenAuth() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func (f *fakeAPI) holdRefresh() chan struct{} {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	return gate
}

type countingBackend struct {
	*session.MemoryBackend
	deletes atomic.Int32
}

func (c *countingBackend) Delete(ctx context.Context) error {
	c.deletes.Add(1)
	return c.MemoryBackend.Delete(ctx)
}

type resetRecorder struct {
	mu    sync.Mutex
	calls []ResetInfo
}

func (r *resetRecorder) reset(_ context.Context, info ResetInfo) {
	r.mu.Lock()
	r.calls = append(r.calls, info)
	r.mu.Unlock()
}

func (r *resetRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func sampleSession() *session.Session {
	return &session.Session{
		UserID:       "u-1",
		FullName:     "Nguyen Van A",
		Email:        "a@fpt.edu.vn",
		Role:         session.RoleStudent,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
}

func newTestPipeline(t *testing.T, api *fakeAPI, sess *session.Session, opts ...Option) (*Pipeline, *session.Store, *countingBackend) {
	t.Helper()
	backend := &countingBackend{MemoryBackend: session.NewMemoryBackend()}
	store := session.NewStore(backend)
	if sess != nil {
		if err := store.Save(context.Background(), sess); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	cfg := DefaultConfig()
	cfg.BaseURL = api.baseURL()
	cfg.Timeout = 5 * time.Second
	p, err := New(cfg, store, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, store, backend
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (p *Pipeline) queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

func TestExecuteSuccessAttachesHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p-1"}}`))
	}))
	defer srv.Close()

	store := session.NewStore(nil)
	if err := store.Save(context.Background(), sampleSession()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/api/"
	cfg.UserAgent = "portalctl/test"
	p, err := New(cfg, store, WithRequestIDFunc(func() string { return "req-1" }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	env, err := Call[struct {
		ID string `json:"id"`
	}](context.Background(), p, Get("/projects"))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !env.Success || env.Data.ID != "p-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	got := <-headers
	if got.Get("Authorization") != "Bearer access-1" {
		t.Fatalf("Authorization = %q", got.Get("Authorization"))
	}
	if got.Get("Content-Type") != "application/json" {
		t.Fatalf("Content-Type = %q", got.Get("Content-Type"))
	}
	if got.Get("X-Request-ID") != "req-1" {
		t.Fatalf("X-Request-ID = %q", got.Get("X-Request-ID"))
	}
	if got.Get("User-Agent") != "portalctl/test" {
		t.Fatalf("User-Agent = %q", got.Get("User-Agent"))
	}
}

func TestExecuteGuestOmitsAuthorization(t *testing.T) {
	api := newFakeAPI(t)
	p, _, _ := newTestPipeline(t, api, nil)

	_, err := p.Execute(context.Background(), Get("/projects"))
	var perr *Error
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if api.refreshCalls.Load() != 0 {
		t.Fatalf("guest must not refresh, got %d calls", api.refreshCalls.Load())
	}
	if seen := api.seenAuth(); len(seen) != 1 || seen[0] != "" {
		t.Fatalf("expected one request without Authorization, got %q", seen)
	}
}

func TestRefreshOnExpiredTokenUpdatesStore(t *testing.T) {
	api := newFakeAPI(t)
	p, store, _ := newTestPipeline(t, api, sampleSession())

	env, err := Call[map[string]string](context.Background(), p, Get("/projects"))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if env.Data["path"] != "/api/projects" {
		t.Fatalf("unexpected data: %+v", env.Data)
	}
	if api.refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", api.refreshCalls.Load())
	}
	if got, _ := api.refreshBody.Load().(string); got != "refresh-1" {
		t.Fatalf("refresh body token = %q", got)
	}

	sess := store.Load(context.Background())
	if sess == nil || sess.AccessToken != "access-2" {
		t.Fatalf("stored token not updated: %+v", sess)
	}
	if sess.RefreshToken != "refresh-1" || sess.Email != "a@fpt.edu.vn" {
		t.Fatalf("refresh changed unrelated fields: %+v", sess)
	}
	if seen := api.seenAuth(); len(seen) != 2 || seen[1] != "Bearer access-2" {
		t.Fatalf("unexpected sends: %q", seen)
	}
	if p.Refreshing() {
		t.Fatalf("refreshing flag left set")
	}
}

func TestConcurrentUnauthorizedSingleRefresh(t *testing.T) {
	api := newFakeAPI(t)
	gate := api.holdRefresh()
	p, store, _ := newTestPipeline(t, api, sampleSession())

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Execute(context.Background(), Get("/projects"))
			errs <- err
		}()
	}

	waitFor(t, "queued callers", func() bool { return p.queued() == n-1 })
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	if api.refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", api.refreshCalls.Load())
	}
	if sess := store.Load(context.Background()); sess == nil || sess.AccessToken != "access-2" {
		t.Fatalf("stored token not updated: %+v", sess)
	}

	resubmits := 0
	for _, auth := range api.seenAuth() {
		if auth == "Bearer access-2" {
			resubmits++
		}
	}
	if resubmits != n {
		t.Fatalf("resubmissions with new token = %d, want %d", resubmits, n)
	}
}

func TestSecondUnauthorizedIsTerminal(t *testing.T) {
	api := newFakeAPI(t)
	api.set(func(f *fakeAPI) { f.rejectAll = true })
	p, _, _ := newTestPipeline(t, api, sampleSession())

	req := Get("/projects")
	_, err := p.Execute(context.Background(), req)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if perr.StatusCode != http.StatusUnauthorized || perr.Message != "Token expired" {
		t.Fatalf("unexpected error: %+v", perr)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized kind, got %v", perr.Kind)
	}
	if api.refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", api.refreshCalls.Load())
	}
	if !req.Retried() {
		t.Fatalf("request not marked retried")
	}
	if seen := api.seenAuth(); len(seen) != 2 {
		t.Fatalf("sends = %d, want 2", len(seen))
	}
}

func TestNoRefreshTokenClearsAndResets(t *testing.T) {
	api := newFakeAPI(t)
	rec := &resetRecorder{}
	sess := sampleSession()
	sess.RefreshToken = ""
	p, store, _ := newTestPipeline(t, api, sess, WithResetter(rec.reset))

	_, err := p.Execute(context.Background(), Get("/projects"))
	var perr *Error
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected original 401, got %v", err)
	}
	if api.refreshCalls.Load() != 0 {
		t.Fatalf("refresh endpoint called %d times", api.refreshCalls.Load())
	}
	if store.Load(context.Background()) != nil {
		t.Fatalf("session not cleared")
	}
	if rec.count() != 1 || rec.calls[0].Reason != ResetNoRefreshToken {
		t.Fatalf("unexpected resets: %+v", rec.calls)
	}
	if p.Refreshing() {
		t.Fatalf("refreshing flag left set")
	}
}

func TestRefreshFailureRejectsAllWaiters(t *testing.T) {
	api := newFakeAPI(t)
	api.set(func(f *fakeAPI) { f.refreshStatus = http.StatusUnauthorized })
	gate := api.holdRefresh()
	rec := &resetRecorder{}
	p, store, backend := newTestPipeline(t, api, sampleSession(), WithResetter(rec.reset))

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Execute(context.Background(), Get("/projects"))
			errs <- err
		}()
	}

	waitFor(t, "queued callers", func() bool { return p.queued() == n-1 })
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrRefreshFailed) {
			t.Fatalf("expected refresh failure, got %v", err)
		}
		var perr *Error
		if !errors.As(err, &perr) || perr.Message != "Invalid refresh token" {
			t.Fatalf("unexpected error payload: %v", err)
		}
	}
	if api.refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", api.refreshCalls.Load())
	}
	if store.Load(context.Background()) != nil {
		t.Fatalf("session not cleared")
	}
	if got := backend.deletes.Load(); got != 1 {
		t.Fatalf("session cleared %d times, want 1", got)
	}
	if rec.count() != 1 || rec.calls[0].Reason != ResetRefreshFailed {
		t.Fatalf("unexpected resets: %+v", rec.calls)
	}
}

func otherSignIn() *session.Session {
	return &session.Session{
		UserID:       "u-2",
		FullName:     "Tran Thi B",
		Email:        "b@fpt.edu.vn",
		Role:         session.RoleAdmin,
		AccessToken:  "access-B",
		RefreshToken: "refresh-B",
	}
}

func TestRefreshDoesNotTouchNewerSignIn(t *testing.T) {
	tests := []struct {
		name          string
		refreshStatus int
		wantErr       error
	}{
		{name: "refresh succeeds", wantErr: ErrSessionLost},
		{name: "refresh fails", refreshStatus: http.StatusUnauthorized, wantErr: ErrRefreshFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.set(func(f *fakeAPI) { f.refreshStatus = tt.refreshStatus })
			gate := api.holdRefresh()
			rec := &resetRecorder{}
			p, store, backend := newTestPipeline(t, api, sampleSession(), WithResetter(rec.reset))

			errs := make(chan error, 1)
			go func() {
				_, err := p.Execute(context.Background(), Get("/projects"))
				errs <- err
			}()

			waitFor(t, "refresh in flight", p.Refreshing)
			if err := store.Save(context.Background(), otherSignIn()); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			close(gate)

			if err := <-errs; !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			got := store.Load(context.Background())
			if got == nil {
				t.Fatalf("newer sign-in was cleared")
			}
			want := otherSignIn()
			if got.UserID != want.UserID || got.Role != want.Role ||
				got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
				t.Fatalf("newer sign-in modified: %+v", got)
			}
			if n := backend.deletes.Load(); n != 0 {
				t.Fatalf("session deleted %d times, want 0", n)
			}
			if rec.count() != 0 {
				t.Fatalf("unexpected resets: %+v", rec.calls)
			}
			if p.Refreshing() {
				t.Fatalf("refresh still marked in flight")
			}
		})
	}
}

func TestLogoutDuringRefreshFailsBatch(t *testing.T) {
	api := newFakeAPI(t)
	gate := api.holdRefresh()
	rec := &resetRecorder{}
	p, store, _ := newTestPipeline(t, api, sampleSession(), WithResetter(rec.reset))

	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Execute(context.Background(), Get("/projects"))
			errs <- err
		}()
	}

	waitFor(t, "queued callers", func() bool { return p.queued() == n-1 })
	if err := p.ClearSession(context.Background(), ResetLogout); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrSessionLost) {
			t.Fatalf("expected ErrSessionLost, got %v", err)
		}
	}
	if api.refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", api.refreshCalls.Load())
	}
	if store.Load(context.Background()) != nil {
		t.Fatalf("token written into a signed-out store")
	}
	if rec.count() != 0 {
		t.Fatalf("unexpected resets: %+v", rec.calls)
	}
	if p.Refreshing() {
		t.Fatalf("refresh still marked in flight")
	}
}

func TestRefreshUnsuccessfulEnvelopeFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh" {
			_, _ = w.Write([]byte(`{"success":false,"message":"Session revoked"}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Forbidden"}`))
	}))
	defer srv.Close()

	store := session.NewStore(nil)
	_ = store.Save(context.Background(), sampleSession())
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/api"
	p, err := New(cfg, store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = p.Execute(context.Background(), Get("/projects"))
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindRefresh || perr.Message != "Session revoked" {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Load(context.Background()) != nil {
		t.Fatalf("session not cleared")
	}
	if p.Refreshing() {
		t.Fatalf("refreshing flag left set")
	}
}

func TestNormalizeServerMessage(t *testing.T) {
	api := newFakeAPI(t)
	p, _, _ := newTestPipeline(t, api, sampleSession())

	_, err := p.Execute(context.Background(), Get("/missing"))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.StatusCode != http.StatusNotFound || perr.Message != "Not found" {
		t.Fatalf("unexpected error: %+v", perr)
	}
	if string(perr.RawBody) != `{"message":"Not found"}` {
		t.Fatalf("RawBody = %s", perr.RawBody)
	}
	if perr.Error() != "404: Not found" {
		t.Fatalf("Error() = %q", perr.Error())
	}
	if api.refreshCalls.Load() != 0 {
		t.Fatalf("404 must not refresh")
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	withoutMessage := Normalize(&Response{StatusCode: 500, Body: []byte(`{"error":"boom"}`)}, &StatusError{StatusCode: 500})
	if withoutMessage.Message != "request failed with status code 500" {
		t.Fatalf("Message = %q", withoutMessage.Message)
	}
	if withoutMessage.Kind != KindResponse {
		t.Fatalf("Kind = %v", withoutMessage.Kind)
	}

	plain := Normalize(&Response{StatusCode: 502, Body: []byte("bad gateway")}, nil)
	if plain.Message != DefaultErrorMessage || plain.RawBody != nil {
		t.Fatalf("unexpected normalization: %+v", plain)
	}
}

func TestTransportFailureNeverRefreshes(t *testing.T) {
	api := newFakeAPI(t)
	p, store, _ := newTestPipeline(t, api, sampleSession())
	api.srv.Close()

	_, err := p.Execute(context.Background(), Get("/projects"))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !perr.IsTransport() || !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %+v", perr)
	}
	if perr.Message == "" {
		t.Fatalf("transport error without message")
	}
	if api.refreshCalls.Load() != 0 {
		t.Fatalf("transport failure triggered refresh")
	}
	if store.Load(context.Background()) == nil {
		t.Fatalf("transport failure cleared the session")
	}
}

func TestWaiterCancellation(t *testing.T) {
	api := newFakeAPI(t)
	gate := api.holdRefresh()
	p, _, _ := newTestPipeline(t, api, sampleSession())

	first := make(chan error, 1)
	go func() {
		_, err := p.Execute(context.Background(), Get("/projects"))
		first <- err
	}()
	waitFor(t, "refresh start", p.Refreshing)

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := p.Execute(ctx, Get("/groups"))
		second <- err
	}()
	waitFor(t, "queued caller", func() bool { return p.queued() == 1 })
	cancel()

	if err := <-second; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("refreshing caller failed: %v", err)
	}
}

func TestForceRefresh(t *testing.T) {
	api := newFakeAPI(t)
	api.set(func(f *fakeAPI) { f.issue = "access-9" })
	p, store, _ := newTestPipeline(t, api, sampleSession())

	token, err := p.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}
	if token != "access-9" || store.Load(context.Background()).AccessToken != "access-9" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestForceRefreshWithoutRefreshToken(t *testing.T) {
	api := newFakeAPI(t)
	sess := sampleSession()
	sess.RefreshToken = ""
	p, _, _ := newTestPipeline(t, api, sess)

	_, err := p.ForceRefresh(context.Background())
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if api.refreshCalls.Load() != 0 {
		t.Fatalf("refresh endpoint called")
	}
}

func TestClearSessionNotifiesObserver(t *testing.T) {
	api := newFakeAPI(t)
	obs := &recordingObserver{}
	rec := &resetRecorder{}
	p, store, _ := newTestPipeline(t, api, sampleSession(), WithObserver(obs), WithResetter(rec.reset))

	if err := p.ClearSession(context.Background(), ResetLogout); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if store.Load(context.Background()) != nil {
		t.Fatalf("session not cleared")
	}
	if len(obs.resets) != 1 || obs.resets[0].UserID != "u-1" || obs.resets[0].Reason != ResetLogout {
		t.Fatalf("unexpected resets: %+v", obs.resets)
	}
	if rec.count() != 0 {
		t.Fatalf("logout must not run the resetter")
	}
}

type recordingObserver struct {
	mu        sync.Mutex
	requests  []RequestInfo
	refreshes []RefreshInfo
	resets    []ResetInfo
}

func (o *recordingObserver) OnRequest(_ context.Context, info RequestInfo) {
	o.mu.Lock()
	o.requests = append(o.requests, info)
	o.mu.Unlock()
}

func (o *recordingObserver) OnRefresh(_ context.Context, info RefreshInfo) {
	o.mu.Lock()
	o.refreshes = append(o.refreshes, info)
	o.mu.Unlock()
}

func (o *recordingObserver) OnReset(_ context.Context, info ResetInfo) {
	o.mu.Lock()
	o.resets = append(o.resets, info)
	o.mu.Unlock()
}

func TestObserverSeesBothAttempts(t *testing.T) {
	api := newFakeAPI(t)
	obs := &recordingObserver{}
	p, _, _ := newTestPipeline(t, api, sampleSession(), WithObserver(obs))

	if _, err := p.Execute(context.Background(), Get("/projects")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(obs.requests) != 2 {
		t.Fatalf("requests observed = %d, want 2", len(obs.requests))
	}
	if obs.requests[0].Attempt != AttemptFirst || obs.requests[0].StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected first attempt: %+v", obs.requests[0])
	}
	if obs.requests[1].Attempt != AttemptResubmit || obs.requests[1].StatusCode != http.StatusOK {
		t.Fatalf("unexpected resubmit: %+v", obs.requests[1])
	}
	if obs.requests[0].RequestID == "" {
		t.Fatalf("missing request id")
	}
	if len(obs.refreshes) != 1 || obs.refreshes[0].Err != nil || obs.refreshes[0].UserID != "u-1" {
		t.Fatalf("unexpected refreshes: %+v", obs.refreshes)
	}
}

func TestExecuteRecordsSpan(t *testing.T) {
	api := newFakeAPI(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	p, _, _ := newTestPipeline(t, api, sampleSession(), WithTracerProvider(tp))
	_, _ = p.Execute(context.Background(), Get("/missing"))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "portal GET /missing" {
		t.Fatalf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("span status = %v", spans[0].Status())
	}
}

func TestWithHTTPClientLeavesCallerClient(t *testing.T) {
	api := newFakeAPI(t)
	shared := &http.Client{Transport: http.DefaultTransport, Timeout: time.Minute}
	p, _, _ := newTestPipeline(t, api, sampleSession(), WithHTTPClient(shared))

	if shared.Timeout != time.Minute {
		t.Fatalf("caller client Timeout = %v, want %v", shared.Timeout, time.Minute)
	}
	if p.http == shared {
		t.Fatalf("pipeline kept the caller's client")
	}
	if p.http.Timeout != 5*time.Second {
		t.Fatalf("pipeline Timeout = %v, want %v", p.http.Timeout, 5*time.Second)
	}
	if p.http.Transport != shared.Transport {
		t.Fatalf("pipeline dropped the caller's transport")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty base":   func(c *Config) { c.BaseURL = "" },
		"relative":     func(c *Config) { c.BaseURL = "/api" },
		"zero timeout": func(c *Config) { c.Timeout = 0 },
		"refresh path": func(c *Config) { c.RefreshPath = "auth/refresh" },
		"negative":     func(c *Config) { c.NearExpirySkew = -time.Second },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestEnvelopeResult(t *testing.T) {
	_, err := Envelope[int]{Success: false}.Result("Login failed")
	var perr *Error
	if !errors.As(err, &perr) || perr.Message != "Login failed" || !errors.Is(err, ErrUnsuccessful) {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := Envelope[int]{Success: true, Data: 7}.Result("x")
	if err != nil || v != 7 {
		t.Fatalf("Result() = %d, %v", v, err)
	}
}

func TestDoDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	p, err := New(cfg, session.NewStore(nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = Do[map[string]any](context.Background(), p, Post("/x", map[string]string{"a": "b"}))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
