// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/reftabs/internal/cache"
	"github.com/ManuGH/reftabs/internal/content"
	"github.com/ManuGH/reftabs/internal/displays"
	"github.com/ManuGH/reftabs/internal/fieldview"
	"github.com/ManuGH/reftabs/internal/formatter"
	"github.com/ManuGH/reftabs/internal/render"
	"github.com/ManuGH/reftabs/internal/textformat"
	"github.com/ManuGH/reftabs/internal/theme"
	"github.com/ManuGH/reftabs/internal/view"
)

// Site is the sample site from testdata/site.yaml and testdata/displays.yaml,
// backed by a temporary directory.
type Site struct {
	Dir       string
	Store     *content.Store
	Displays  *displays.FileStore
	Formatter *formatter.Formatter
	Renderer  *render.Renderer
	Cache     *cache.MemoryCache
	Service   *fieldview.Service
}

// NewSite builds the sample site. Everything is closed when the test ends.
func NewSite(t testing.TB) *Site {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := content.NewStore(filepath.Join(dir, "content.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	seed, err := os.Open(TestdataPath(t, "site.yaml"))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer seed.Close()
	if _, err := store.Import(ctx, seed); err != nil {
		t.Fatalf("import fixture: %v", err)
	}

	displaysYAML, err := os.ReadFile(TestdataPath(t, "displays.yaml"))
	if err != nil {
		t.Fatalf("read displays: %v", err)
	}
	displaysPath := filepath.Join(dir, "displays.yaml")
	if err := os.WriteFile(displaysPath, displaysYAML, 0o600); err != nil {
		t.Fatalf("write displays: %v", err)
	}
	ds, err := displays.NewFileStore(displaysPath)
	if err != nil {
		t.Fatalf("open displays: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })

	themes, err := theme.New()
	if err != nil {
		t.Fatalf("themes: %v", err)
	}
	renderer := render.NewRenderer(themes, textformat.Default())
	f := formatter.New(formatter.Deps{
		Storage:     store,
		Definitions: store,
		Views:       view.NewBuilder(store, view.Options{}),
	})
	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })

	svc := fieldview.New(fieldview.Deps{
		Storage:   store,
		Displays:  ds,
		Formatter: f,
		Renderer:  renderer,
		Cache:     c,
	}, fieldview.Options{CacheTTL: time.Minute, AssetBase: "/assets"})

	return &Site{
		Dir:       dir,
		Store:     store,
		Displays:  ds,
		Formatter: f,
		Renderer:  renderer,
		Cache:     c,
		Service:   svc,
	}
}
