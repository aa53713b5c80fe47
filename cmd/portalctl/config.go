package main

import (
	"errors"
	"fmt"
	"io/fs"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// cliConfig is the portalctl configuration. The portal keys are decoded
// straight into goPortal.Config (api.*, session.*, auth.*, events.*,
// metrics.*).
type cliConfig struct {
	Environment string
	Logging     loggingConfig
	Portal      goPortal.Config `mapstructure:",squash"`
}

type loggingConfig struct {
	Level string
}

// envBindings maps config keys onto the PORTAL_* variables the library reads.
var envBindings = map[string]string{
	"environment":                     "PORTAL_ENV",
	"logging.level":                   "PORTAL_LOG_LEVEL",
	"api.baseurl":                     "PORTAL_API_BASE_URL",
	"api.timeout":                     "PORTAL_API_TIMEOUT",
	"api.useragent":                   "PORTAL_USER_AGENT",
	"api.nearexpiryskew":              "PORTAL_NEAR_EXPIRY_SKEW",
	"session.backend":                 "PORTAL_SESSION_BACKEND",
	"session.file":                    "PORTAL_SESSION_FILE",
	"session.redisaddr":               "PORTAL_REDIS_ADDR",
	"session.redisprefix":             "PORTAL_REDIS_PREFIX",
	"session.profile":                 "PORTAL_PROFILE",
	"session.ttl":                     "PORTAL_SESSION_TTL",
	"auth.resendcooldown":             "PORTAL_RESEND_COOLDOWN",
	"events.enabled":                  "PORTAL_EVENTS_ENABLED",
	"events.buffersize":               "PORTAL_EVENTS_BUFFER",
	"events.dropiffull":               "PORTAL_EVENTS_DROP_IF_FULL",
	"metrics.enabled":                 "PORTAL_METRICS_ENABLED",
	"metrics.enablelatencyhistograms": "PORTAL_METRICS_LATENCY",
}

// loadEnvFile reads a .env file into the process environment. A missing
// default file is not an error; an explicitly named one is.
func loadEnvFile(path string, explicit bool) error {
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig layers defaults, the optional YAML file and the environment.
// An empty path searches for portalctl.yaml in the working directory and
// $HOME/.config/goportal.
func loadConfig(path string) (*cliConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("portalctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/goportal")
	}

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	if err := cfg.Portal.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := goPortal.DefaultConfig()

	v.SetDefault("environment", "development")
	v.SetDefault("logging.level", "warn")

	v.SetDefault("api.baseurl", def.API.BaseURL)
	v.SetDefault("api.timeout", def.API.Timeout.String())
	v.SetDefault("api.useragent", "portalctl")
	v.SetDefault("api.nearexpiryskew", "30s")

	// The CLI keeps its session across invocations.
	v.SetDefault("session.backend", goPortal.BackendFile)
	v.SetDefault("session.file", "")
	v.SetDefault("session.redisaddr", def.Session.RedisAddr)
	v.SetDefault("session.redisprefix", def.Session.RedisPrefix)
	v.SetDefault("session.profile", def.Session.Profile)
	v.SetDefault("session.ttl", "0s")

	v.SetDefault("auth.resendcooldown", def.Auth.ResendCooldown.String())

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.buffersize", def.Events.BufferSize)
	v.SetDefault("events.dropiffull", def.Events.DropIfFull)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.enablelatencyhistograms", def.Metrics.EnableLatencyHistograms)
}
