// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/reftabs/internal/api"
	"github.com/ManuGH/reftabs/internal/cache"
	"github.com/ManuGH/reftabs/internal/config"
	"github.com/ManuGH/reftabs/internal/daemon"
	"github.com/ManuGH/reftabs/internal/health"
	xglog "github.com/ManuGH/reftabs/internal/log"
	"github.com/ManuGH/reftabs/internal/telemetry"
)

// serve runs the daemon until ctx is cancelled.
func serve(ctx context.Context, loader *config.Loader, cfg config.AppConfig) error {
	logger := xglog.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return err
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("content_store", 2*time.Second, a.store.Ping))
	if rc, ok := a.cache.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewPingChecker("redis_cache", 2*time.Second, rc.Ping))
	}
	hm.RegisterChecker(health.NewCountChecker("displays", a.displays.Len))

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.LogService + "-api"
	}
	srv := api.New(api.Config{
		AssetBase:        cfg.AssetBase,
		TracingService:   tracingService,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        cfg.RateLimit.Requests,
		RateLimitWindow:  cfg.RateLimit.Window,
	}, api.Deps{Fields: a.fields, Health: hm})

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:     logger,
		ListenAddr: cfg.ListenAddr,
		APIHandler: srv.Handler(),
	})
	if err != nil {
		_ = a.Close()
		_ = tp.Shutdown(context.Background())
		return err
	}
	// Hooks run in reverse: the app closes before telemetry flushes.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("app", func(context.Context) error { return a.Close() })

	if err := a.displays.Watch(ctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "displays.watch_failed").Msg("display hot reload disabled")
	}

	holder := config.NewHolder(cfg, loader)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watch_failed").Msg("config hot reload disabled")
	}
	mgr.RegisterShutdownHook("config-watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})
	updates := make(chan config.AppConfig, 1)
	holder.RegisterListener(updates)
	go applyReloads(ctx, updates)

	return mgr.Start(ctx)
}

// applyReloads applies the settings that can change at runtime.
func applyReloads(ctx context.Context, updates <-chan config.AppConfig) {
	logger := xglog.WithComponent("config")
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			if err := xglog.SetLevel(cfg.LogLevel); err != nil {
				logger.Warn().Err(err).Str(xglog.FieldEvent, "config.log_level_invalid").Msg("log level not applied")
			}
		}
	}
}
