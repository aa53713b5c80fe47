package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/session"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 4 << 20

// Pipeline executes authenticated API calls with transparent token refresh.
//
//	Concurrency: safe for use by multiple goroutines. The refreshing flag and
//	the waiter queue are guarded by one mutex.
type Pipeline struct {
	cfg          Config
	baseURL      string
	http         *http.Client
	store        *session.Store
	logger       zerolog.Logger
	observer     Observer
	resetter     Resetter
	tracer       trace.Tracer
	newRequestID func() string
	now          func() time.Time

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

type refreshResult struct {
	token string
	err   error
}

// New validates cfg and returns a [Pipeline] reading credentials from store.
func New(cfg Config, store *session.Store, opts ...Option) (*Pipeline, error) {
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("pipeline: session store is required")
	}

	p := &Pipeline{
		cfg:          cfg,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         &http.Client{},
		store:        store,
		logger:       zerolog.Nop(),
		observer:     NopObserver{},
		tracer:       defaultTracer(),
		newRequestID: defaultRequestID,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.http.Timeout = cfg.Timeout
	return p, nil
}

// Store returns the session store the pipeline reads from.
func (p *Pipeline) Store() *session.Store {
	return p.store
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Refreshing reports whether a refresh cycle is currently in flight.
func (p *Pipeline) Refreshing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshing
}

// Execute sends req with the stored access token. A 401/403 on the first
// attempt triggers (or joins) a token refresh and one resubmission; every
// other failure is returned as an [*Error].
func (p *Pipeline) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	ctx, span := p.tracer.Start(ctx, "portal "+req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	resp, err := p.execute(ctx, span, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (p *Pipeline) execute(ctx context.Context, span trace.Span, req *Request) (*Response, error) {
	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, &Error{Message: err.Error(), Kind: KindTransport, Err: err}
	}

	resp, err := p.send(ctx, req, payload, p.accessToken(ctx), AttemptFirst)
	if err == nil {
		return resp, nil
	}
	if resp == nil || !isAuthStatus(resp.StatusCode) || req.retried {
		return nil, Normalize(resp, err)
	}

	req.retried = true
	authErr := Normalize(resp, err)
	span.AddEvent("auth.retry", trace.WithAttributes(attribute.Int("http.response.status_code", resp.StatusCode)))

	token, err := p.awaitRefresh(ctx, authErr)
	if err != nil {
		return nil, err
	}
	return p.resubmit(ctx, req, payload, token)
}

// resubmit sends req once more with token. The outcome is final.
func (p *Pipeline) resubmit(ctx context.Context, req *Request, payload []byte, token string) (*Response, error) {
	resp, err := p.send(ctx, req, payload, token, AttemptResubmit)
	if err != nil {
		return nil, Normalize(resp, err)
	}
	return resp, nil
}

func (p *Pipeline) accessToken(ctx context.Context) string {
	sess := p.store.Load(ctx)
	if sess == nil {
		return ""
	}
	if p.cfg.NearExpirySkew > 0 && jwt.NearExpiry(sess.AccessToken, p.cfg.NearExpirySkew, p.now()) {
		p.logger.Debug().Str("user_id", sess.UserID).Msg("attaching access token close to expiry")
	}
	return sess.AccessToken
}

func (p *Pipeline) send(ctx context.Context, req *Request, payload []byte, bearer string, attempt Attempt) (*Response, error) {
	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = p.newRequestID()
	}

	start := p.now()
	resp, err := p.roundTrip(ctx, req.Method, req.Path, req, payload, bearer, requestID)
	info := RequestInfo{
		Method:    req.Method,
		Path:      req.Path,
		RequestID: requestID,
		Duration:  p.now().Sub(start),
		Attempt:   attempt,
		Err:       err,
	}
	if resp != nil {
		info.StatusCode = resp.StatusCode
	}
	p.observer.OnRequest(ctx, info)

	evt := p.logger.Debug()
	if err != nil {
		evt = p.logger.Info()
	}
	evt.Str("method", req.Method).
		Str("path", req.Path).
		Str("request_id", requestID).
		Int("status", info.StatusCode).
		Dur("duration", info.Duration).
		Bool("resubmit", attempt == AttemptResubmit).
		Err(err).
		Msg("portal api call")

	return resp, err
}

// roundTrip performs one HTTP exchange. A non-2xx answer returns both the
// response and a [*StatusError]; a transport failure returns only the error.
func (p *Pipeline) roundTrip(
	ctx context.Context,
	method, path string,
	req *Request,
	payload []byte,
	bearer string,
	requestID string,
) (*Response, error) {
	target := p.baseURL + "/" + strings.TrimLeft(path, "/")
	if req != nil && len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if req != nil {
		for key, values := range req.Header {
			for _, v := range values {
				hreq.Header.Add(key, v)
			}
		}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("X-Request-ID", requestID)
	if p.cfg.UserAgent != "" {
		hreq.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	if bearer != "" {
		hreq.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		hreq.Header.Del("Authorization")
	}

	hresp, err := p.http.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(hresp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	resp := &Response{
		StatusCode: hresp.StatusCode,
		Header:     hresp.Header,
		Body:       data,
	}
	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		return resp, &StatusError{StatusCode: hresp.StatusCode}
	}
	return resp, nil
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return data, nil
	}
}
