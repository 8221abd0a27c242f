// Package config loads the oflow client configuration from
// ~/.oflow/config.yaml with OFLOW_* environment overrides.
package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
)

// Storage backends
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config is the complete client configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	LINE    LINEConfig    `yaml:"line"`
	Apple   AppleConfig   `yaml:"apple"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// APIConfig points at the OFlow backend (Supabase project).
type APIConfig struct {
	URL     string        `yaml:"url"`
	AnonKey string        `yaml:"anon_key,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
	// Retries bounds transient-failure retries for team fetches.
	Retries uint `yaml:"retries"`
}

// LINEConfig configures the LINE Login authorization request.
type LINEConfig struct {
	ChannelID string   `yaml:"channel_id"`
	Scopes    []string `yaml:"scopes,omitempty"`
	// CallbackURL is the backend endpoint LINE redirects to. Empty means
	// <api.url>/functions/v1/auth-line-callback.
	CallbackURL string `yaml:"callback_url,omitempty"`
}

// AppleConfig configures Sign in with Apple.
type AppleConfig struct {
	ClientID string `yaml:"client_id"`
	// RelayURL receives Apple's form_post and bounces the identity token to
	// the local loopback listener. Empty means <api.url>/functions/v1/auth-apple-relay.
	RelayURL string `yaml:"relay_url,omitempty"`
}

// StorageConfig selects where the persisted identity lives.
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Dir     string      `yaml:"dir,omitempty"`
	Profile string      `yaml:"profile,omitempty"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig is used when Storage.Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// LoggingConfig controls internal/log.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// MetricsConfig enables Prometheus exposition while the TUI runs.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Home returns the oflow state directory, honouring OFLOW_HOME.
func Home() (string, error) {
	if h := os.Getenv("OFLOW_HOME"); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".oflow"), nil
}

// DefaultPath returns ~/.oflow/config.yaml.
func DefaultPath() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	return &Config{
		API: APIConfig{
			URL:     "https://api.oflow.app",
			Timeout: 30 * time.Second,
			Retries: 3,
		},
		LINE: LINEConfig{
			Scopes: []string{"profile", "openid"},
		},
		Storage: StorageConfig{
			Backend: StorageFile,
			Dir:     filepath.Join(home, "state"),
			Profile: "default",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			File:   filepath.Join(home, "logs", "oflow.log"),
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}
	cfg := Default(home)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigRead, fmt.Sprintf("failed to parse %s", path), err).
				WithSuggestion("Check the YAML syntax of the configuration file")
		}
	case stderrors.Is(err, os.ErrNotExist):
	default:
		return nil, errors.Wrap(errors.ErrCodeConfigRead, fmt.Sprintf("failed to read %s", path), err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.API.URL = envString("OFLOW_API_URL", c.API.URL)
	c.API.AnonKey = envString("OFLOW_ANON_KEY", c.API.AnonKey)
	c.API.Timeout = envDuration("OFLOW_API_TIMEOUT", c.API.Timeout)
	c.LINE.ChannelID = envString("OFLOW_LINE_CHANNEL_ID", c.LINE.ChannelID)
	c.Apple.ClientID = envString("OFLOW_APPLE_CLIENT_ID", c.Apple.ClientID)
	c.Storage.Backend = envString("OFLOW_STORAGE", c.Storage.Backend)
	c.Storage.Profile = envString("OFLOW_PROFILE", c.Storage.Profile)
	c.Storage.Redis.Addr = envString("OFLOW_REDIS_ADDR", c.Storage.Redis.Addr)
	c.Storage.Redis.Password = envString("OFLOW_REDIS_PASSWORD", c.Storage.Redis.Password)
	c.Storage.Redis.DB = envInt("OFLOW_REDIS_DB", c.Storage.Redis.DB)
	c.Logging.Level = envString("OFLOW_LOG_LEVEL", c.Logging.Level)
	c.Metrics.Addr = envString("OFLOW_METRICS_ADDR", c.Metrics.Addr)
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewConfigInvalidError(fmt.Sprintf("api.url %q is not an absolute URL", c.API.URL))
	}
	if c.API.Timeout <= 0 {
		return errors.NewConfigInvalidError("api.timeout must be positive")
	}

	switch c.Storage.Backend {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.NewConfigInvalidError("storage.redis.addr is required for the redis backend")
		}
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("unknown storage.backend %q", c.Storage.Backend))
	}
	return nil
}

// LINECallbackURL returns the backend endpoint that completes the LINE code exchange.
func (c *Config) LINECallbackURL() string {
	if c.LINE.CallbackURL != "" {
		return c.LINE.CallbackURL
	}
	return c.FunctionURL("auth-line-callback")
}

// AppleRelayURL returns the backend endpoint Apple posts identity tokens to.
func (c *Config) AppleRelayURL() string {
	if c.Apple.RelayURL != "" {
		return c.Apple.RelayURL
	}
	return c.FunctionURL("auth-apple-relay")
}

// FunctionURL returns the absolute URL of an edge function.
func (c *Config) FunctionURL(name string) string {
	return c.API.URL + "/functions/v1/" + name
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
