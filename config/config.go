package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/toolshelf/kv"
	"github.com/jonwraymond/toolshelf/observe"
	"github.com/jonwraymond/toolshelf/offline"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOOLSHELF"

// Sentinel errors.
var (
	ErrMissingEnv          = errors.New("config: missing required environment variables")
	ErrMissingSource       = errors.New("config: catalog.source is required")
	ErrInvalidTimeout      = errors.New("config: timeout must be positive")
	ErrInvalidBackend      = errors.New("config: unknown storage backend")
	ErrMissingPath         = errors.New("config: storage path is required")
	ErrInvalidOrigin       = errors.New("config: offline.origin must be an absolute http(s) URL")
	ErrInvalidCacheVersion = errors.New("config: offline.name and offline.version are required")
	ErrInvalidConcurrency  = errors.New("config: concurrency must be positive")
)

// DefaultManifest is the set of shell assets precached on install.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/style.css",
	"/script.js",
	"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css",
	"https://fonts.googleapis.com/css2?family=Josefin+Sans:wght@700&family=Work+Sans:wght@400;500;600&display=swap",
}

// Config is the full toolshelf configuration.
type Config struct {
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Favorites FavoritesConfig `mapstructure:"favorites"`
	Offline   OfflineConfig   `mapstructure:"offline"`
	Server    ServerConfig    `mapstructure:"server"`
	Observe   ObserveSettings `mapstructure:"observe"`
}

// CatalogConfig locates the tool list.
type CatalogConfig struct {
	// Source is an http(s) URL or a local .json/.yaml file path.
	Source         string `mapstructure:"source"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	// Offline routes HTTP catalog fetches through the offline registration.
	Offline bool `mapstructure:"offline"`
}

// Timeout returns the catalog fetch timeout.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IsRemote reports whether Source is an http(s) URL.
func (c CatalogConfig) IsRemote() bool {
	return strings.HasPrefix(c.Source, "http://") || strings.HasPrefix(c.Source, "https://")
}

// FavoritesConfig selects the key-value store holding favorites.
type FavoritesConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// OfflineConfig configures the offline cache worker.
type OfflineConfig struct {
	Name                string   `mapstructure:"name"`
	Version             string   `mapstructure:"version"`
	Origin              string   `mapstructure:"origin"`
	Manifest            []string `mapstructure:"manifest"`
	DynamicSuffixes     []string `mapstructure:"dynamicSuffixes"`
	Storage             string   `mapstructure:"storage"`
	StoragePath         string   `mapstructure:"storagePath"`
	InstallConcurrency  int      `mapstructure:"installConcurrency"`
	FetchTimeoutSeconds int      `mapstructure:"fetchTimeoutSeconds"`
}

// FetchTimeout returns the per-asset install timeout.
func (c OfflineConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// WorkerConfig converts the section for offline.NewWorker.
func (c OfflineConfig) WorkerConfig() offline.Config {
	return offline.Config{
		Name:               c.Name,
		Version:            c.Version,
		Origin:             c.Origin,
		Manifest:           c.Manifest,
		DynamicSuffixes:    c.DynamicSuffixes,
		InstallConcurrency: c.InstallConcurrency,
		FetchTimeout:       c.FetchTimeout(),
	}
}

// ServerConfig configures `toolshelf serve`.
type ServerConfig struct {
	ListenAddress       string `mapstructure:"listenAddress"`
	MaxConcurrent       int    `mapstructure:"maxConcurrent"`
	ReadTimeoutSeconds  int    `mapstructure:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `mapstructure:"writeTimeoutSeconds"`
}

// ObserveSettings mirrors observe.Config with file tags.
type ObserveSettings struct {
	ServiceName string `mapstructure:"serviceName"`
	Tracing     struct {
		Enabled   bool    `mapstructure:"enabled"`
		Exporter  string  `mapstructure:"exporter"`
		SamplePct float64 `mapstructure:"samplePct"`
	} `mapstructure:"tracing"`
	Metrics struct {
		Enabled  bool   `mapstructure:"enabled"`
		Exporter string `mapstructure:"exporter"`
	} `mapstructure:"metrics"`
	Logging struct {
		Enabled bool   `mapstructure:"enabled"`
		Level   string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// ObserveConfig converts the observe section for observe.NewObserver.
func (c *Config) ObserveConfig(version string) observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			SamplePct: o.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics.Enabled,
			Exporter: o.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: o.Logging.Enabled,
			Level:   o.Logging.Level,
		},
	}
}

// DataDir is where persistent state lives by default.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "toolshelf")
	}
	return ".toolshelf"
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	dataDir := DataDir()

	v.SetDefault("catalog.source", "tools.json")
	v.SetDefault("catalog.timeoutSeconds", 10)
	v.SetDefault("catalog.offline", false)

	v.SetDefault("favorites.backend", kv.BackendFile)
	v.SetDefault("favorites.path", filepath.Join(dataDir, "state.json"))

	v.SetDefault("offline.name", "pro-toolbox")
	v.SetDefault("offline.version", "v1")
	v.SetDefault("offline.origin", "")
	v.SetDefault("offline.manifest", DefaultManifest)
	v.SetDefault("offline.dynamicSuffixes", []string{"/tools.json"})
	v.SetDefault("offline.storage", "bolt")
	v.SetDefault("offline.storagePath", filepath.Join(dataDir, "caches.db"))
	v.SetDefault("offline.installConcurrency", 4)
	v.SetDefault("offline.fetchTimeoutSeconds", 15)

	v.SetDefault("server.listenAddress", "127.0.0.1:8080")
	v.SetDefault("server.maxConcurrent", 64)
	v.SetDefault("server.readTimeoutSeconds", 15)
	v.SetDefault("server.writeTimeoutSeconds", 30)

	v.SetDefault("observe.serviceName", "toolshelf")
	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.samplePct", 1.0)
	v.SetDefault("observe.metrics.enabled", false)
	v.SetDefault("observe.metrics.exporter", "prometheus")
	v.SetDefault("observe.logging.enabled", true)
	v.SetDefault("observe.logging.level", "info")
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads path (optional) and environment overrides, then validates.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	v := newViper()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded, err := ExpandEnvStrict(string(data), lookup)
		if err != nil {
			return nil, fmt.Errorf("expand config %s: %w", path, err)
		}
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem together.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Catalog.Source) == "" {
		errs = append(errs, ErrMissingSource)
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: catalog.timeoutSeconds=%d", ErrInvalidTimeout, c.Catalog.TimeoutSeconds))
	}

	if !contains(kv.ValidBackends, c.Favorites.Backend) {
		errs = append(errs, fmt.Errorf("%w: favorites.backend=%q", ErrInvalidBackend, c.Favorites.Backend))
	} else if c.Favorites.Backend != kv.BackendMemory && strings.TrimSpace(c.Favorites.Path) == "" {
		errs = append(errs, fmt.Errorf("%w: favorites.path", ErrMissingPath))
	}

	o := c.Offline
	if strings.TrimSpace(o.Name) == "" || strings.TrimSpace(o.Version) == "" {
		errs = append(errs, ErrInvalidCacheVersion)
	}
	if o.Origin != "" {
		u, err := url.Parse(o.Origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidOrigin, o.Origin))
		}
	}
	switch o.Storage {
	case "memory":
	case "bolt":
		if strings.TrimSpace(o.StoragePath) == "" {
			errs = append(errs, fmt.Errorf("%w: offline.storagePath", ErrMissingPath))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: offline.storage=%q", ErrInvalidBackend, o.Storage))
	}
	if o.InstallConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("%w: offline.installConcurrency=%d", ErrInvalidConcurrency, o.InstallConcurrency))
	}
	if o.FetchTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: offline.fetchTimeoutSeconds=%d", ErrInvalidTimeout, o.FetchTimeoutSeconds))
	}

	if c.Server.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("%w: server.maxConcurrent=%d", ErrInvalidConcurrency, c.Server.MaxConcurrent))
	}

	obs := c.ObserveConfig("")
	if err := obs.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
