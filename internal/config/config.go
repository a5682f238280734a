// Package config loads server and CLI configuration.
//
// Values are resolved in three layers: built-in defaults, an optional TOML
// file, then environment variables. Later layers win.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"timelock/internal/seal"
	"timelock/internal/timeauth"
)

const (
	DefaultPort      = "5002"
	DefaultLogLevel  = "info"
	DefaultRateLimit = 10.0
	DefaultRateBurst = 20
)

// Duration is a time.Duration that reads from TOML strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds server and CLI configuration.
type Config struct {
	LogLevel  string          `toml:"log_level"`
	Server    ServerConfig    `toml:"server"`
	Authority AuthorityConfig `toml:"authority"`
	Engine    EngineConfig    `toml:"engine"`
}

type ServerConfig struct {
	Port string `toml:"port"`
	// RateLimit is the sustained number of /mcp requests per second.
	RateLimit     float64 `toml:"rate_limit"`
	RateBurst     int     `toml:"rate_burst"`
	AllowedOrigin string  `toml:"allowed_origin"`
}

type AuthorityConfig struct {
	// Kind is "shutter" or "drand".
	Kind            string   `toml:"kind"`
	ShutterAPIBase  string   `toml:"shutter_api_base"`
	ShutterRegistry string   `toml:"shutter_registry_address"`
	DrandBaseURL    string   `toml:"drand_base_url"`
	DrandChainHash  string   `toml:"drand_chain_hash"`
	RequestTimeout  Duration `toml:"request_timeout"`
}

type EngineConfig struct {
	MinLeadTime Duration `toml:"min_lead_time"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Server: ServerConfig{
			Port:          DefaultPort,
			RateLimit:     DefaultRateLimit,
			RateBurst:     DefaultRateBurst,
			AllowedOrigin: "*",
		},
		Authority: AuthorityConfig{
			Kind:            "shutter",
			ShutterAPIBase:  timeauth.DefaultShutterAPIBase,
			ShutterRegistry: timeauth.DefaultShutterRegistry,
			DrandBaseURL:    timeauth.DefaultDrandBaseURL,
			RequestTimeout:  Duration{timeauth.DefaultTimeout},
		},
		Engine: EngineConfig{
			MinLeadTime: Duration{seal.DefaultMinLeadTime},
		},
	}
}

// Load reads configuration from path (optional) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}

	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("TIMELOCK_ALLOWED_ORIGIN", &c.Server.AllowedOrigin)
	str("TIMELOCK_AUTHORITY", &c.Authority.Kind)
	str("SHUTTER_API_BASE", &c.Authority.ShutterAPIBase)
	str("SHUTTER_REGISTRY_ADDRESS", &c.Authority.ShutterRegistry)
	str("DRAND_BASE_URL", &c.Authority.DrandBaseURL)
	str("DRAND_CHAIN_HASH", &c.Authority.DrandChainHash)

	if v, ok := lookup("TIMELOCK_RATE_LIMIT"); ok && v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TIMELOCK_RATE_LIMIT: %w", err)
		}
		c.Server.RateLimit = limit
	}

	if err := dur("TIMELOCK_REQUEST_TIMEOUT", &c.Authority.RequestTimeout); err != nil {
		return err
	}
	return dur("TIMELOCK_MIN_LEAD_TIME", &c.Engine.MinLeadTime)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %q is not a valid port", c.Server.Port))
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, errors.New("server.rate_limit must be positive"))
	}
	if c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("server.rate_burst must be at least 1"))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	switch c.Authority.Kind {
	case "shutter":
		if !strings.HasPrefix(c.Authority.ShutterAPIBase, "http://") && !strings.HasPrefix(c.Authority.ShutterAPIBase, "https://") {
			errs = append(errs, fmt.Errorf("authority.shutter_api_base %q must be an http(s) URL", c.Authority.ShutterAPIBase))
		}
		if c.Authority.ShutterRegistry == "" {
			errs = append(errs, errors.New("authority.shutter_registry_address is required"))
		}
	case "drand":
		if !strings.HasPrefix(c.Authority.DrandBaseURL, "http://") && !strings.HasPrefix(c.Authority.DrandBaseURL, "https://") {
			errs = append(errs, fmt.Errorf("authority.drand_base_url %q must be an http(s) URL", c.Authority.DrandBaseURL))
		}
	default:
		errs = append(errs, fmt.Errorf("authority.kind %q must be shutter or drand", c.Authority.Kind))
	}

	if t := c.Authority.RequestTimeout.Duration; t <= 0 || t > 5*time.Minute {
		errs = append(errs, fmt.Errorf("authority.request_timeout %s must be between 0 and 5m", t))
	}
	if c.Engine.MinLeadTime.Duration < 0 {
		errs = append(errs, errors.New("engine.min_lead_time must not be negative"))
	}

	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// AuthorityOptions converts the authority section for timeauth.NewAuthority.
func (c *Config) AuthorityOptions(client timeauth.HTTPDoer) timeauth.Options {
	return timeauth.Options{
		Kind:            c.Authority.Kind,
		ShutterAPIBase:  c.Authority.ShutterAPIBase,
		ShutterRegistry: c.Authority.ShutterRegistry,
		DrandBaseURL:    c.Authority.DrandBaseURL,
		DrandChainHash:  c.Authority.DrandChainHash,
		Timeout:         c.Authority.RequestTimeout.Duration,
		HTTPClient:      client,
	}
}

// Addr returns the listen address for the server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}
