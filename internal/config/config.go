// Package config loads the site configuration from a TOML file, an optional environment-specific
// overlay, and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/pelletier/go-toml/v2"

	"github.com/dpotapov/toolsite/internal/logging"
)

const (
	// OverlayConfigPattern is the file name pattern for environment-specific overlays, placed next
	// to the base file.
	OverlayConfigPattern = "config.%s.toml"

	// EnvSiteEnv selects the configuration overlay.
	EnvSiteEnv = "TOOLSITE_ENV"

	EnvServerAddr      = "TOOLSITE_ADDR"
	EnvShutdownTimeout = "TOOLSITE_SHUTDOWN_TIMEOUT"
	EnvLiveEnabled     = "TOOLSITE_LIVE"
	EnvLiveReadLimit   = "TOOLSITE_LIVE_READ_LIMIT"
	EnvSiteBaseURL     = "TOOLSITE_BASE_URL"
	EnvSiteDebug       = "TOOLSITE_DEBUG"
)

var loggingEnv = &logging.Env{
	Level:  "TOOLSITE_LOG_LEVEL",
	Format: "TOOLSITE_LOG_FORMAT",
}

// Config is the root configuration.
type Config struct {
	Server  ServerConfig   `toml:"server"`
	Logging logging.Config `toml:"logging"`
	Live    LiveConfig     `toml:"live"`
	Site    SiteConfig     `toml:"site"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string `toml:"addr"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	IdleTimeout     string `toml:"idle_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// LiveConfig configures live navigation sessions.
type LiveConfig struct {
	// Enabled is a pointer so that an overlay can switch live sessions off.
	Enabled      *bool  `toml:"enabled"`
	ReadLimit    string `toml:"read_limit"`
	WriteTimeout string `toml:"write_timeout"`
	readLimitVal int64
}

// SiteConfig holds values exposed to templates.
type SiteConfig struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	Debug   bool   `toml:"debug"`
}

// Load reads the base configuration file at path and applies the overlay selected by TOOLSITE_ENV.
// A missing base file is not an error; defaults apply. The result is finalized.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		base, err := load(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			cfg = base
		}

		if op := overlayPath(path); op != "" {
			overlay, err := load(op)
			if err != nil {
				return nil, fmt.Errorf("load overlay %s: %w", op, err)
			}
			cfg.Merge(overlay)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize applies defaults, loads environment overrides, and validates the configuration.
func (c *Config) Finalize() error {
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Finalize(loggingEnv); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Live.Finalize(); err != nil {
		return fmt.Errorf("live: %w", err)
	}
	if err := c.Site.Finalize(); err != nil {
		return fmt.Errorf("site: %w", err)
	}
	return nil
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *Config) Merge(overlay *Config) {
	c.Server.Merge(&overlay.Server)
	c.Logging.Merge(&overlay.Logging)
	c.Live.Merge(&overlay.Live)
	c.Site.Merge(&overlay.Site)
}

// Finalize applies defaults, loads environment overrides, and validates the server configuration.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.ReadTimeout != "" {
		c.ReadTimeout = overlay.ReadTimeout
	}
	if overlay.WriteTimeout != "" {
		c.WriteTimeout = overlay.WriteTimeout
	}
	if overlay.IdleTimeout != "" {
		c.IdleTimeout = overlay.IdleTimeout
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
}

// ReadTimeoutDuration parses and returns the read timeout.
func (c *ServerConfig) ReadTimeoutDuration() time.Duration { return mustDuration(c.ReadTimeout) }

// WriteTimeoutDuration parses and returns the write timeout.
func (c *ServerConfig) WriteTimeoutDuration() time.Duration { return mustDuration(c.WriteTimeout) }

// IdleTimeoutDuration parses and returns the idle timeout.
func (c *ServerConfig) IdleTimeoutDuration() time.Duration { return mustDuration(c.IdleTimeout) }

// ShutdownTimeoutDuration parses and returns the shutdown timeout.
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(c.ShutdownTimeout)
}

func (c *ServerConfig) loadDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "15s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "15s"
	}
	if c.IdleTimeout == "" {
		c.IdleTimeout = "60s"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
}

func (c *ServerConfig) validate() error {
	for name, v := range map[string]string{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"idle_timeout":     c.IdleTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// Finalize applies defaults, loads environment overrides, and validates the live configuration.
func (c *LiveConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *LiveConfig) Merge(overlay *LiveConfig) {
	if overlay.Enabled != nil {
		v := *overlay.Enabled
		c.Enabled = &v
	}
	if overlay.ReadLimit != "" {
		c.ReadLimit = overlay.ReadLimit
	}
	if overlay.WriteTimeout != "" {
		c.WriteTimeout = overlay.WriteTimeout
	}
}

// IsEnabled reports whether live sessions are accepted.
func (c *LiveConfig) IsEnabled() bool { return c.Enabled != nil && *c.Enabled }

// ReadLimitBytes returns the parsed read limit.
func (c *LiveConfig) ReadLimitBytes() int64 { return c.readLimitVal }

// WriteTimeoutDuration parses and returns the frame write timeout.
func (c *LiveConfig) WriteTimeoutDuration() time.Duration { return mustDuration(c.WriteTimeout) }

func (c *LiveConfig) loadDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.ReadLimit == "" {
		c.ReadLimit = "4KiB"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "10s"
	}
}

func (c *LiveConfig) loadEnv() {
	if v := os.Getenv(EnvLiveEnabled); v != "" {
		enabled := parseBool(v)
		c.Enabled = &enabled
	}
	if v := os.Getenv(EnvLiveReadLimit); v != "" {
		c.ReadLimit = v
	}
}

func (c *LiveConfig) validate() error {
	size, err := units.RAMInBytes(c.ReadLimit)
	if err != nil {
		return fmt.Errorf("invalid read_limit: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("invalid read_limit: %s must be positive", c.ReadLimit)
	}
	c.readLimitVal = size
	if _, err := time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf("invalid write_timeout: %w", err)
	}
	return nil
}

// Finalize applies defaults, loads environment overrides, and validates the site configuration.
func (c *SiteConfig) Finalize() error {
	if c.Name == "" {
		c.Name = "Toolsite"
	}
	if v := os.Getenv(EnvSiteBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvSiteDebug); v != "" {
		c.Debug = parseBool(v)
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("invalid base_url: %q must be an http(s) URL", c.BaseURL)
	}
	return nil
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *SiteConfig) Merge(overlay *SiteConfig) {
	if overlay.Name != "" {
		c.Name = overlay.Name
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Debug {
		c.Debug = true
	}
}

// Vars returns the site values exposed to templates as the "site" variable.
func (c *SiteConfig) Vars() map[string]any {
	return map[string]any{
		"name":     c.Name,
		"base_url": c.BaseURL,
		"debug":    c.Debug,
	}
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	if env := os.Getenv(EnvSiteEnv); env != "" {
		p := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
