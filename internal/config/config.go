// Package config loads service configuration from defaults, an optional
// YAML file, SATEXPLORER_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SATEXPLORER_HTTP_ADDR.
const EnvPrefix = "SATEXPLORER"

// Config holds application configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Source  SourceConfig  `mapstructure:"source"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Storage StorageConfig `mapstructure:"storage"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr       string `mapstructure:"addr"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
}

// SourceConfig locates the catalog backend.
type SourceConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	Path    string            `mapstructure:"path"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Params  map[string]string `mapstructure:"params"`
}

// CacheConfig holds catalog cache tuning.
type CacheConfig struct {
	StaleTime      time.Duration `mapstructure:"stale_time"`
	Retries        int           `mapstructure:"retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	Prefetch       bool          `mapstructure:"prefetch"`
}

// StorageConfig holds sqlite settings. Ephemeral keeps the selection in
// memory and never opens Path.
type StorageConfig struct {
	Path      string `mapstructure:"path"`
	Ephemeral bool   `mapstructure:"ephemeral"`
}

// StreamConfig holds SSE limits.
type StreamConfig struct {
	MaxConcurrentPerIP int           `mapstructure:"max_concurrent_per_ip"`
	MaxTotal           int           `mapstructure:"max_total"`
	KeepaliveInterval  time.Duration `mapstructure:"keepalive_interval"`
}

// AuthConfig guards mutating API routes with a bearer token.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Source: SourceConfig{
			BaseURL: "https://backend.digantara.dev",
			Path:    "/v1/satellites",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			StaleTime:      5 * time.Minute,
			Retries:        3,
			RetryBaseDelay: 500 * time.Millisecond,
			Prefetch:       true,
		},
		Storage: StorageConfig{
			Path: filepath.Join(os.Getenv("HOME"), ".local", "share", "satexplorer", "satexplorer.db"),
		},
		Stream: StreamConfig{
			MaxConcurrentPerIP: 10,
			MaxTotal:           1000,
			KeepaliveInterval:  30 * time.Second,
		},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":       "http.addr",
	"db":         "storage.path",
	"stale-time": "cache.stale_time",
	"prefetch":   "cache.prefetch",
	"ephemeral":  "storage.ephemeral",
}

// Load reads configuration. file overrides SATEXPLORER_CONFIG; when both are
// empty the file is looked up under $HOME/.config/satexplorer and may be
// absent. flags may be nil. Out-of-range values are logged and replaced by
// their defaults.
func Load(file string, flags *pflag.FlagSet, logger *slog.Logger) (Config, error) {
	v := viper.New()
	def := Defaults()

	// default values
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("http.trust_proxy", def.HTTP.TrustProxy)
	v.SetDefault("source.base_url", def.Source.BaseURL)
	v.SetDefault("source.path", def.Source.Path)
	v.SetDefault("source.timeout", def.Source.Timeout)
	v.SetDefault("source.params", map[string]string{})
	v.SetDefault("cache.stale_time", def.Cache.StaleTime)
	v.SetDefault("cache.retries", def.Cache.Retries)
	v.SetDefault("cache.retry_base_delay", def.Cache.RetryBaseDelay)
	v.SetDefault("cache.prefetch", def.Cache.Prefetch)
	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("storage.ephemeral", def.Storage.Ephemeral)
	v.SetDefault("stream.max_concurrent_per_ip", def.Stream.MaxConcurrentPerIP)
	v.SetDefault("stream.max_total", def.Stream.MaxTotal)
	v.SetDefault("stream.keepalive_interval", def.Stream.KeepaliveInterval)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")

	v.SetConfigType("yaml")

	if file == "" {
		file = os.Getenv(EnvPrefix + "_CONFIG")
	}
	explicit := file != ""
	if explicit {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "satexplorer"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		logger.Info("loaded config file", "component", "config", "path", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	c.sanitize(def, logger)

	if c.Auth.Enabled && c.Auth.Token == "" {
		return Config{}, errors.New("auth.token (SATEXPLORER_AUTH_TOKEN) is required when auth is enabled")
	}
	return c, nil
}

// sanitize replaces out-of-range values with defaults, warning for each.
func (c *Config) sanitize(def Config, logger *slog.Logger) {
	warn := func(key string, value, fallback any) {
		logger.Warn("invalid config value, using default", "component", "config",
			"key", key, "value", value, "default", fallback)
	}

	if c.HTTP.Addr == "" {
		warn("http.addr", c.HTTP.Addr, def.HTTP.Addr)
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.Source.BaseURL == "" {
		warn("source.base_url", c.Source.BaseURL, def.Source.BaseURL)
		c.Source.BaseURL = def.Source.BaseURL
	}
	if c.Source.Timeout <= 0 {
		warn("source.timeout", c.Source.Timeout, def.Source.Timeout)
		c.Source.Timeout = def.Source.Timeout
	}
	if c.Cache.StaleTime < 0 {
		warn("cache.stale_time", c.Cache.StaleTime, def.Cache.StaleTime)
		c.Cache.StaleTime = def.Cache.StaleTime
	}
	if c.Cache.Retries < 0 {
		warn("cache.retries", c.Cache.Retries, def.Cache.Retries)
		c.Cache.Retries = def.Cache.Retries
	}
	if c.Cache.RetryBaseDelay <= 0 {
		warn("cache.retry_base_delay", c.Cache.RetryBaseDelay, def.Cache.RetryBaseDelay)
		c.Cache.RetryBaseDelay = def.Cache.RetryBaseDelay
	}
	if c.Storage.Path == "" {
		warn("storage.path", c.Storage.Path, def.Storage.Path)
		c.Storage.Path = def.Storage.Path
	}
	if c.Stream.MaxConcurrentPerIP < 1 {
		warn("stream.max_concurrent_per_ip", c.Stream.MaxConcurrentPerIP, def.Stream.MaxConcurrentPerIP)
		c.Stream.MaxConcurrentPerIP = def.Stream.MaxConcurrentPerIP
	}
	if c.Stream.MaxTotal < c.Stream.MaxConcurrentPerIP {
		warn("stream.max_total", c.Stream.MaxTotal, def.Stream.MaxTotal)
		c.Stream.MaxTotal = def.Stream.MaxTotal
	}
	if c.Stream.KeepaliveInterval < time.Second {
		warn("stream.keepalive_interval", c.Stream.KeepaliveInterval, def.Stream.KeepaliveInterval)
		c.Stream.KeepaliveInterval = def.Stream.KeepaliveInterval
	}
}
