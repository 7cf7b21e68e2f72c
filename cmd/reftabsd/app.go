// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/ManuGH/reftabs/internal/cache"
	"github.com/ManuGH/reftabs/internal/config"
	"github.com/ManuGH/reftabs/internal/content"
	"github.com/ManuGH/reftabs/internal/displays"
	"github.com/ManuGH/reftabs/internal/fieldview"
	"github.com/ManuGH/reftabs/internal/formatter"
	xglog "github.com/ManuGH/reftabs/internal/log"
	"github.com/ManuGH/reftabs/internal/render"
	"github.com/ManuGH/reftabs/internal/textformat"
	"github.com/ManuGH/reftabs/internal/theme"
	"github.com/ManuGH/reftabs/internal/view"
)

// app holds the long-lived components shared by serve and the one-shot commands.
type app struct {
	cfg      config.AppConfig
	store    *content.Store
	displays *displays.FileStore
	cache    cache.Cache
	fields   *fieldview.Service
	logger   zerolog.Logger
}

// newApp opens storage and wires the render pipeline. The caller owns Close.
func newApp(ctx context.Context, cfg config.AppConfig) (a *app, err error) {
	a = &app{cfg: cfg, logger: xglog.WithComponent("app")}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.store, err = content.NewStore(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}
	if err = a.seed(ctx); err != nil {
		return nil, err
	}
	if a.displays, err = displays.NewFileStore(cfg.DisplaysPath); err != nil {
		return nil, fmt.Errorf("open displays: %w", err)
	}
	if a.cache, err = newCache(ctx, cfg.Cache); err != nil {
		return nil, err
	}

	themes, err := theme.New()
	if err != nil {
		return nil, fmt.Errorf("load theme: %w", err)
	}
	views := view.NewBuilder(a.store, view.Options{
		DefaultFormat: cfg.Render.DefaultFormat,
		MaxDepth:      cfg.Render.MaxDepth,
		ShowLabels:    cfg.Render.ShowLabels,
	})
	f := formatter.New(formatter.Deps{
		Storage:       a.store,
		Definitions:   a.store,
		Views:         views,
		DefaultFormat: cfg.Render.DefaultFormat,
	})
	a.fields = fieldview.New(fieldview.Deps{
		Storage:   a.store,
		Displays:  a.displays,
		Formatter: f,
		Renderer:  render.NewRenderer(themes, textformat.Default()),
		Cache:     a.cache,
	}, fieldview.Options{CacheTTL: cfg.Cache.TTL, AssetBase: cfg.AssetBase})

	return a, nil
}

// seed imports the configured fixture into an empty store.
func (a *app) seed(ctx context.Context) error {
	if a.cfg.SeedPath == "" {
		return nil
	}
	empty, err := a.store.Empty(ctx)
	if err != nil {
		return fmt.Errorf("inspect content store: %w", err)
	}
	if !empty {
		a.logger.Debug().
			Str(xglog.FieldEvent, "seed.skipped").
			Str(xglog.FieldPath, a.cfg.SeedPath).
			Msg("content store not empty, seed skipped")
		return nil
	}
	res, err := importFile(ctx, a.store, a.cfg.SeedPath)
	if err != nil {
		return fmt.Errorf("seed content store: %w", err)
	}
	a.logger.Info().
		Str(xglog.FieldEvent, "seed.imported").
		Str(xglog.FieldPath, a.cfg.SeedPath).
		Int("fields", res.Fields).
		Int("entities", res.Entities).
		Msg("content store seeded")
	return nil
}

func importFile(ctx context.Context, store *content.Store, path string) (content.ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 -- operator supplied fixture
	if err != nil {
		return content.ImportResult{}, err
	}
	defer f.Close()
	return store.Import(ctx, f)
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, xglog.WithComponent("cache"))
		if err != nil {
			return nil, err
		}
		return rc, nil
	case config.CacheNone:
		return cache.NewNoopCache(), nil
	default:
		return cache.NewMemoryCache(cfg.CleanupInterval), nil
	}
}

// Close releases everything newApp opened.
func (a *app) Close() error {
	var errs []error
	if a.displays != nil {
		errs = append(errs, a.displays.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
