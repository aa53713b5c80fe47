package goPortal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/goPortal/pipeline"
	"github.com/joeshaw/envdecode"
)

// Session backends selectable through [SessionConfig].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the complete client configuration. Every field can be read from
// PORTAL_* environment variables with [LoadConfigFromEnv].
type Config struct {
	API     APIConfig
	Session SessionConfig
	Auth    AuthConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

// APIConfig configures the request pipeline.
type APIConfig struct {
	BaseURL   string        `env:"PORTAL_API_BASE_URL,default=http://localhost:3000/api"`
	Timeout   time.Duration `env:"PORTAL_API_TIMEOUT,default=30s"`
	UserAgent string        `env:"PORTAL_USER_AGENT,default=goPortal"`
	// NearExpirySkew logs attached tokens that expire within the skew.
	NearExpirySkew time.Duration `env:"PORTAL_NEAR_EXPIRY_SKEW"`
}

// SessionConfig selects where the session record lives.
type SessionConfig struct {
	// Backend is one of "memory", "file" or "redis".
	Backend string `env:"PORTAL_SESSION_BACKEND,default=memory"`
	// File is the record path for the file backend. Empty selects
	// <user config dir>/goportal/<profile>.json.
	File        string        `env:"PORTAL_SESSION_FILE"`
	RedisAddr   string        `env:"PORTAL_REDIS_ADDR,default=localhost:6379"`
	RedisPrefix string        `env:"PORTAL_REDIS_PREFIX,default=portal"`
	Profile     string        `env:"PORTAL_PROFILE,default=default"`
	TTL         time.Duration `env:"PORTAL_SESSION_TTL"`
}

// AuthConfig configures the auth client.
type AuthConfig struct {
	// ResendCooldown spaces OTP sends per email address.
	ResendCooldown time.Duration `env:"PORTAL_RESEND_COOLDOWN,default=60s"`
}

// EventsConfig controls the lifecycle event dispatcher.
type EventsConfig struct {
	Enabled    bool `env:"PORTAL_EVENTS_ENABLED"`
	BufferSize int  `env:"PORTAL_EVENTS_BUFFER,default=64"`
	DropIfFull bool `env:"PORTAL_EVENTS_DROP_IF_FULL,default=true"`
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool `env:"PORTAL_METRICS_ENABLED,default=true"`
	EnableLatencyHistograms bool `env:"PORTAL_METRICS_LATENCY,default=true"`
}

// DefaultConfig returns the portal development defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   pipeline.DefaultBaseURL,
			Timeout:   pipeline.DefaultTimeout,
			UserAgent: "goPortal",
		},
		Session: SessionConfig{
			Backend:     BackendMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "portal",
			Profile:     "default",
		},
		Auth: AuthConfig{
			ResendCooldown: 60 * time.Second,
		},
		Events: EventsConfig{
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// LoadConfigFromEnv decodes PORTAL_* variables over the defaults carried in
// the struct tags.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.pipelineConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch strings.ToLower(c.Session.Backend) {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("%w: redis backend requires an address", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session backend %q", ErrInvalidConfig, c.Session.Backend)
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("%w: session TTL must be >= 0", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.Session.Profile, `/\:`) {
		return fmt.Errorf("%w: profile must not contain path separators", ErrInvalidConfig)
	}
	if c.Auth.ResendCooldown < 0 {
		return fmt.Errorf("%w: resend cooldown must be >= 0", ErrInvalidConfig)
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("%w: events buffer must be > 0", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		BaseURL:        c.API.BaseURL,
		Timeout:        c.API.Timeout,
		RefreshPath:    pipeline.DefaultRefreshPath,
		UserAgent:      c.API.UserAgent,
		NearExpirySkew: c.API.NearExpirySkew,
	}
}

// SessionFile returns the record path used by the file backend.
func (c *Config) SessionFile() (string, error) {
	if c.Session.File != "" {
		return c.Session.File, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: no session file and no user config dir: %v", ErrInvalidConfig, err)
	}
	profile := c.Session.Profile
	if profile == "" {
		profile = "default"
	}
	return filepath.Join(dir, "goportal", profile+".json"), nil
}
