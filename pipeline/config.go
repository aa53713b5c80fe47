package pipeline

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL matches the portal's development API.
	DefaultBaseURL = "http://localhost:3000/api"
	// DefaultTimeout is the per-call transport ceiling.
	DefaultTimeout = 30 * time.Second
	// DefaultRefreshPath is the token refresh endpoint.
	DefaultRefreshPath = "/auth/refresh"

	tracerName = "github.com/MrEthical07/goPortal/pipeline"
)

// Config holds the transport settings applied uniformly to every call.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshPath string
	UserAgent   string
	// NearExpirySkew enables a debug log when an attached JWT expires within
	// the skew. It never triggers a refresh.
	NearExpirySkew time.Duration
}

// DefaultConfig returns the portal defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Timeout:     DefaultTimeout,
		RefreshPath: DefaultRefreshPath,
	}
}

// Validate checks cfg for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("pipeline: base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("pipeline: base URL must be absolute")
	}
	if c.Timeout <= 0 {
		return errors.New("pipeline: timeout must be > 0")
	}
	if !strings.HasPrefix(c.RefreshPath, "/") {
		return errors.New("pipeline: refresh path must start with /")
	}
	if c.NearExpirySkew < 0 {
		return errors.New("pipeline: near-expiry skew must be >= 0")
	}
	return nil
}

// Option customizes a [Pipeline].
type Option func(*Pipeline)

// WithHTTPClient sets the HTTP client the pipeline sends through. The
// pipeline works on a copy whose Timeout is Config.Timeout; the caller's
// client is left as it was.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) {
		if client != nil {
			c := *client
			p.http = &c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithObserver registers an [Observer] for request, refresh, and reset outcomes.
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		if observer != nil {
			p.observer = observer
		}
	}
}

// WithResetter registers the hook run when the session is torn down.
func WithResetter(resetter Resetter) Option {
	return func(p *Pipeline) {
		p.resetter = resetter
	}
}

// WithTracerProvider selects the OpenTelemetry provider for call spans.
// The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithRequestIDFunc overrides X-Request-ID generation.
func WithRequestIDFunc(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newRequestID = fn
		}
	}
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func defaultRequestID() string {
	return uuid.NewString()
}
