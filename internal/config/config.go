// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the reftabs daemon configuration with precedence
// ENV > File > Defaults.
package config

import "time"

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version      string
	DataDir      string
	ListenAddr   string
	LogLevel     string
	LogService   string
	DatabasePath string // SQLite content database
	DisplaysPath string // YAML display configuration
	SeedPath     string // optional fixture imported at startup
	AssetBase    string // URL prefix theme assets are served under

	Render    RenderConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	Server    ServerConfig
}

// RenderConfig tunes the render pipeline.
type RenderConfig struct {
	DefaultFormat string
	MaxDepth      int
	ShowLabels    bool
}

// CacheConfig selects and tunes the rendered fragment cache.
type CacheConfig struct {
	Backend         string
	TTL             time.Duration
	CleanupInterval time.Duration
	Redis           RedisConfig
}

// RedisConfig is used when Cache.Backend is "redis".
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RateLimitConfig limits requests per client IP.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string // grpc | http
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FileConfig is the on-disk YAML representation. Pointer members distinguish
// "unset" from the zero value.
type FileConfig struct {
	DataDir      string `yaml:"dataDir,omitempty"`
	ListenAddr   string `yaml:"listenAddr,omitempty"`
	LogLevel     string `yaml:"logLevel,omitempty"`
	LogService   string `yaml:"logService,omitempty"`
	DatabasePath string `yaml:"databasePath,omitempty"`
	DisplaysPath string `yaml:"displaysPath,omitempty"`
	SeedPath     string `yaml:"seedPath,omitempty"`
	AssetBase    string `yaml:"assetBase,omitempty"`

	Render    *RenderFileConfig    `yaml:"render,omitempty"`
	Cache     *CacheFileConfig     `yaml:"cache,omitempty"`
	RateLimit *RateLimitFileConfig `yaml:"rateLimit,omitempty"`
	Telemetry *TelemetryFileConfig `yaml:"telemetry,omitempty"`
	Server    *ServerFileConfig    `yaml:"server,omitempty"`
}

// RenderFileConfig is the YAML form of RenderConfig.
type RenderFileConfig struct {
	DefaultFormat string `yaml:"defaultFormat,omitempty"`
	MaxDepth      *int   `yaml:"maxDepth,omitempty"`
	ShowLabels    *bool  `yaml:"showLabels,omitempty"`
}

// CacheFileConfig is the YAML form of CacheConfig.
type CacheFileConfig struct {
	Backend         string           `yaml:"backend,omitempty"`
	TTL             string           `yaml:"ttl,omitempty"`
	CleanupInterval string           `yaml:"cleanupInterval,omitempty"`
	Redis           *RedisFileConfig `yaml:"redis,omitempty"`
}

// RedisFileConfig is the YAML form of RedisConfig.
type RedisFileConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       *int   `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// RateLimitFileConfig is the YAML form of RateLimitConfig.
type RateLimitFileConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Requests *int   `yaml:"requests,omitempty"`
	Window   string `yaml:"window,omitempty"`
}

// TelemetryFileConfig is the YAML form of TelemetryConfig.
type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
}

// ServerFileConfig is the YAML form of ServerConfig.
type ServerFileConfig struct {
	ReadTimeout     string `yaml:"readTimeout,omitempty"`
	WriteTimeout    string `yaml:"writeTimeout,omitempty"`
	IdleTimeout     string `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
}
