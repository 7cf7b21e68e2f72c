// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/reftabs/internal/textformat"
)

// Defaults.
const (
	DefaultDataDir       = "./data"
	DefaultListenAddr    = ":8080"
	DefaultLogLevel      = "info"
	DefaultLogService    = "reftabs"
	DefaultDatabaseFile  = "reftabs.db"
	DefaultDisplaysFile  = "displays.yaml"
	DefaultAssetBase     = "/assets"
	DefaultMaxDepth      = 5
	DefaultCacheTTL      = 10 * time.Minute
	DefaultCacheCleanup  = time.Minute
	DefaultRedisAddr     = "localhost:6379"
	DefaultRateRequests  = 120
	DefaultRateWindow    = time.Minute
	DefaultOTLPEndpoint  = "localhost:4317"
	DefaultSamplingRate  = 1.0
	DefaultShutdownGrace = 15 * time.Second
)

// Loader loads configuration with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a loader for the YAML file at configPath, which may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file path, or "".
func (l *Loader) Path() string {
	return l.configPath
}

// Load builds and validates the effective configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := LoadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFile(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge config file: %w", err)
		}
	}

	mergeEnv(&cfg)
	cfg.Version = l.version

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.DatabasePath = resolvePath(cfg.DataDir, cfg.DatabasePath, DefaultDatabaseFile)
	cfg.DisplaysPath = resolvePath(cfg.DataDir, cfg.DisplaysPath, DefaultDisplaysFile)
	if cfg.SeedPath != "" {
		cfg.SeedPath = resolvePath(cfg.DataDir, cfg.SeedPath, "")
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		DataDir:    DefaultDataDir,
		ListenAddr: DefaultListenAddr,
		LogLevel:   DefaultLogLevel,
		LogService: DefaultLogService,
		AssetBase:  DefaultAssetBase,
		Render: RenderConfig{
			DefaultFormat: textformat.FullHTML,
			MaxDepth:      DefaultMaxDepth,
		},
		Cache: CacheConfig{
			Backend:         CacheMemory,
			TTL:             DefaultCacheTTL,
			CleanupInterval: DefaultCacheCleanup,
			Redis:           RedisConfig{Addr: DefaultRedisAddr},
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: DefaultRateRequests,
			Window:   DefaultRateWindow,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     DefaultOTLPEndpoint,
			SamplingRate: DefaultSamplingRate,
			Environment:  "production",
		},
		Server: ServerConfig{
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: DefaultShutdownGrace,
		},
	}
}

// resolvePath anchors relative paths at dataDir; an empty path becomes dataDir/def.
func resolvePath(dataDir, path, def string) string {
	if path == "" {
		path = def
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dataDir, path)
}

// LoadFile parses a YAML config file strictly: unknown keys and trailing
// documents are errors. An empty file yields an empty FileConfig.
func LoadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogService, f.LogService)
	setString(&cfg.DatabasePath, f.DatabasePath)
	setString(&cfg.DisplaysPath, f.DisplaysPath)
	setString(&cfg.SeedPath, f.SeedPath)
	setString(&cfg.AssetBase, f.AssetBase)

	if r := f.Render; r != nil {
		setString(&cfg.Render.DefaultFormat, r.DefaultFormat)
		if r.MaxDepth != nil {
			cfg.Render.MaxDepth = *r.MaxDepth
		}
		if r.ShowLabels != nil {
			cfg.Render.ShowLabels = *r.ShowLabels
		}
	}

	if c := f.Cache; c != nil {
		setString(&cfg.Cache.Backend, c.Backend)
		if err := setDuration(&cfg.Cache.TTL, "cache.ttl", c.TTL); err != nil {
			return err
		}
		if err := setDuration(&cfg.Cache.CleanupInterval, "cache.cleanupInterval", c.CleanupInterval); err != nil {
			return err
		}
		if r := c.Redis; r != nil {
			setString(&cfg.Cache.Redis.Addr, r.Addr)
			setString(&cfg.Cache.Redis.Password, r.Password)
			setString(&cfg.Cache.Redis.Prefix, r.Prefix)
			if r.DB != nil {
				cfg.Cache.Redis.DB = *r.DB
			}
		}
	}

	if rl := f.RateLimit; rl != nil {
		if rl.Enabled != nil {
			cfg.RateLimit.Enabled = *rl.Enabled
		}
		if rl.Requests != nil {
			cfg.RateLimit.Requests = *rl.Requests
		}
		if err := setDuration(&cfg.RateLimit.Window, "rateLimit.window", rl.Window); err != nil {
			return err
		}
	}

	if t := f.Telemetry; t != nil {
		if t.Enabled != nil {
			cfg.Telemetry.Enabled = *t.Enabled
		}
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		setString(&cfg.Telemetry.Environment, t.Environment)
		if t.SamplingRate != nil {
			cfg.Telemetry.SamplingRate = *t.SamplingRate
		}
	}

	if s := f.Server; s != nil {
		for _, d := range []struct {
			dst   *time.Duration
			field string
			value string
		}{
			{&cfg.Server.ReadTimeout, "server.readTimeout", s.ReadTimeout},
			{&cfg.Server.WriteTimeout, "server.writeTimeout", s.WriteTimeout},
			{&cfg.Server.IdleTimeout, "server.idleTimeout", s.IdleTimeout},
			{&cfg.Server.ShutdownTimeout, "server.shutdownTimeout", s.ShutdownTimeout},
		} {
			if err := setDuration(d.dst, d.field, d.value); err != nil {
				return err
			}
		}
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(EnvPrefix+"DATA_DIR", cfg.DataDir)
	cfg.ListenAddr = ParseString(EnvPrefix+"LISTEN", cfg.ListenAddr)
	cfg.LogLevel = ParseString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString(EnvPrefix+"LOG_SERVICE", cfg.LogService)
	cfg.DatabasePath = ParseString(EnvPrefix+"DB_PATH", cfg.DatabasePath)
	cfg.DisplaysPath = ParseString(EnvPrefix+"DISPLAYS_PATH", cfg.DisplaysPath)
	cfg.SeedPath = ParseString(EnvPrefix+"SEED_PATH", cfg.SeedPath)
	cfg.AssetBase = ParseString(EnvPrefix+"ASSET_BASE", cfg.AssetBase)

	cfg.Render.DefaultFormat = ParseString(EnvPrefix+"DEFAULT_FORMAT", cfg.Render.DefaultFormat)
	cfg.Render.MaxDepth = ParseInt(EnvPrefix+"MAX_DEPTH", cfg.Render.MaxDepth)
	cfg.Render.ShowLabels = ParseBool(EnvPrefix+"SHOW_LABELS", cfg.Render.ShowLabels)

	cfg.Cache.Backend = ParseString(EnvPrefix+"CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration(EnvPrefix+"CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.CleanupInterval = ParseDuration(EnvPrefix+"CACHE_CLEANUP_INTERVAL", cfg.Cache.CleanupInterval)
	cfg.Cache.Redis.Addr = ParseString(EnvPrefix+"REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = ParseString(EnvPrefix+"REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = ParseInt(EnvPrefix+"REDIS_DB", cfg.Cache.Redis.DB)
	cfg.Cache.Redis.Prefix = ParseString(EnvPrefix+"REDIS_PREFIX", cfg.Cache.Redis.Prefix)

	cfg.RateLimit.Enabled = ParseBool(EnvPrefix+"RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = ParseInt(EnvPrefix+"RATELIMIT_REQUESTS", cfg.RateLimit.Requests)
	cfg.RateLimit.Window = ParseDuration(EnvPrefix+"RATELIMIT_WINDOW", cfg.RateLimit.Window)

	cfg.Telemetry.Enabled = ParseBool(EnvPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(EnvPrefix+"TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvPrefix+"TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvPrefix+"TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString(EnvPrefix+"ENVIRONMENT", cfg.Telemetry.Environment)

	cfg.Server.ShutdownTimeout = ParseDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
}
