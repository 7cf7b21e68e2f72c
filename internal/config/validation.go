// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/reftabs/internal/textformat"
	"github.com/ManuGH/reftabs/internal/validate"
)

// Validate checks an effective configuration. All problems are reported at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.HostPort("ListenAddr", cfg.ListenAddr)
	v.NotEmpty("DataDir", cfg.DataDir)
	v.NotEmpty("DatabasePath", cfg.DatabasePath)
	v.NotEmpty("DisplaysPath", cfg.DisplaysPath)
	v.Custom("LogLevel", cfg.LogLevel, func(any) error {
		_, err := zerolog.ParseLevel(cfg.LogLevel)
		return err
	})
	if !strings.HasPrefix(cfg.AssetBase, "/") {
		v.AddError("AssetBase", "must start with /", cfg.AssetBase)
	}

	v.OneOf("Render.DefaultFormat", cfg.Render.DefaultFormat, textformat.Default().IDs())
	v.Range("Render.MaxDepth", cfg.Render.MaxDepth, 1, 32)

	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{CacheMemory, CacheRedis, CacheNone})
	v.NonNegativeDuration("Cache.TTL", cfg.Cache.TTL)
	v.NonNegativeDuration("Cache.CleanupInterval", cfg.Cache.CleanupInterval)
	if cfg.Cache.Backend == CacheRedis {
		v.HostPort("Cache.Redis.Addr", cfg.Cache.Redis.Addr)
		v.Range("Cache.Redis.DB", cfg.Cache.Redis.DB, 0, 15)
	}

	if cfg.RateLimit.Enabled {
		v.Positive("RateLimit.Requests", cfg.RateLimit.Requests)
		if cfg.RateLimit.Window <= 0 {
			v.AddError("RateLimit.Window", fmt.Sprintf("must be positive, got %s", cfg.RateLimit.Window), cfg.RateLimit.Window)
		}
	}

	v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
	}

	v.NonNegativeDuration("Server.ReadTimeout", cfg.Server.ReadTimeout)
	v.NonNegativeDuration("Server.WriteTimeout", cfg.Server.WriteTimeout)
	v.NonNegativeDuration("Server.IdleTimeout", cfg.Server.IdleTimeout)
	v.NonNegativeDuration("Server.ShutdownTimeout", cfg.Server.ShutdownTimeout)

	return v.Err()
}
