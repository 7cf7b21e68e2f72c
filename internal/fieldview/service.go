// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fieldview renders one reference field of a stored entity through
// its configured display, with caching.
package fieldview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/reftabs/internal/cache"
	"github.com/ManuGH/reftabs/internal/content"
	"github.com/ManuGH/reftabs/internal/displays"
	"github.com/ManuGH/reftabs/internal/formatter"
	xglog "github.com/ManuGH/reftabs/internal/log"
	"github.com/ManuGH/reftabs/internal/metrics"
	"github.com/ManuGH/reftabs/internal/render"
	"github.com/ManuGH/reftabs/internal/telemetry"
)

var (
	// ErrFieldNotFound is returned when the host entity's bundle has no such field.
	ErrFieldNotFound = errors.New("fieldview: field not found")
	// ErrNotReferenceField is returned for fields the formatter cannot format.
	ErrNotReferenceField = errors.New("fieldview: field is not an entity reference")
)

// DisplayStore is the subset of the display store the service uses.
type DisplayStore interface {
	Get(key displays.Key) (displays.Display, error)
	Lookup(entityType, bundle, field, viewMode string) (displays.Display, error)
	List() []displays.Display
	Put(ctx context.Context, d displays.Display) (displays.Display, error)
	Delete(ctx context.Context, key displays.Key) error
	Subscribe(fn displays.ChangeFunc)
}

// Request identifies a field to render.
type Request struct {
	EntityType string
	ID         string
	RevisionID string // empty renders the current revision
	Field      string
	ViewMode   string
	Langcode   string // empty uses the entity's language
}

// Result is a rendered field.
type Result struct {
	HTML      template.HTML    `json:"html"`
	Libraries []string         `json:"libraries,omitempty"`
	Display   displays.Display `json:"display"`
	Langcode  string           `json:"langcode,omitempty"`
	Title     string           `json:"-"`
	Cached    bool             `json:"cached"`
}

// Deps are the collaborators of the service. Definitions and Changes fall
// back to Storage when it implements them.
type Deps struct {
	Storage     content.Storage
	Definitions content.FieldDefinitionProvider
	Changes     content.ChangeTracker
	Displays    DisplayStore
	Formatter *formatter.Formatter
	Renderer  *render.Renderer
	Cache     cache.Cache
}

// Options tune the service.
type Options struct {
	CacheTTL  time.Duration
	AssetBase string
}

// Service renders fields.
type Service struct {
	storage     content.Storage
	definitions content.FieldDefinitionProvider
	changes     content.ChangeTracker
	displays    DisplayStore
	formatter *formatter.Formatter
	renderer  *render.Renderer
	cache     cache.Cache
	ttl       time.Duration
	assetBase string

	group  singleflight.Group
	tracer trace.Tracer
	logger zerolog.Logger
}

// New creates a service and subscribes it to display changes so cached
// renders of a changed display are dropped.
func New(deps Deps, opts Options) *Service {
	c := deps.Cache
	if c == nil {
		c = cache.NewNoopCache()
	}
	if deps.Definitions == nil {
		deps.Definitions, _ = deps.Storage.(content.FieldDefinitionProvider)
	}
	if deps.Changes == nil {
		deps.Changes, _ = deps.Storage.(content.ChangeTracker)
	}
	s := &Service{
		storage:     deps.Storage,
		definitions: deps.Definitions,
		changes:     deps.Changes,
		displays:  deps.Displays,
		formatter: deps.Formatter,
		renderer:  deps.Renderer,
		cache:     c,
		ttl:       opts.CacheTTL,
		assetBase: strings.TrimRight(opts.AssetBase, "/") + "/",
		tracer:    telemetry.Tracer("reftabs/fieldview"),
		logger:    xglog.WithComponent("fieldview"),
	}
	deps.Displays.Subscribe(s.invalidate)
	return s
}

func cachePrefix(key displays.Key) string {
	return "field:" + key.String() + "|"
}

func cacheKey(d displays.Display, host *content.Entity, langcode string, generation int64) string {
	return cachePrefix(d.Key()) + strings.Join([]string{
		host.ID, host.RevisionID, langcode, d.Fingerprint(), strconv.FormatInt(generation, 10),
	}, "|")
}

// generation returns the content generation, or -1 when it cannot be read.
// A render cached under -1 is only served while the counter stays unreadable.
func (s *Service) generation(ctx context.Context) int64 {
	if s.changes == nil {
		return 0
	}
	gen, err := s.changes.Generation(ctx)
	if err != nil {
		logger := xglog.WithContext(ctx, s.logger)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "fieldview.generation_failed").
			Msg("content generation unavailable")
		return -1
	}
	return gen
}

func (s *Service) invalidate(keys []displays.Key) {
	ctx := context.Background()
	for _, k := range keys {
		n := s.cache.DeletePrefix(ctx, cachePrefix(k))
		s.logger.Debug().
			Str(xglog.FieldEvent, "fieldview.invalidated").
			Str("display", k.String()).
			Int("entries", n).
			Msg("dropped cached renders of changed display")
	}
}

// RenderField renders req.Field of the requested entity with its display.
// Errors wrap content.ErrNotFound, displays.ErrNotFound, ErrFieldNotFound or
// ErrNotReferenceField when the request cannot be served.
func (s *Service) RenderField(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "fieldview.RenderField",
		trace.WithAttributes(telemetry.RenderAttributes(req.EntityType, req.ID, req.Field, req.ViewMode)...),
	)
	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
			span.RecordError(err)
			span.SetAttributes(telemetry.ErrorAttributes(err, errorType(err))...)
			span.SetStatus(codes.Error, err.Error())
		case res.Cached:
			outcome = "cached"
		}
		metrics.ObserveFieldRender(outcome, time.Since(start))
		span.SetAttributes(attribute.Bool(telemetry.RenderCacheHitKey, res.Cached))
		span.End()
	}()

	host, display, err := s.resolve(ctx, req)
	if err != nil {
		return Result{}, err
	}

	langcode := req.Langcode
	if langcode == "" {
		langcode = host.Langcode
	}
	title, _ := host.FirstValue(formatter.TitleField)
	key := cacheKey(display, host, langcode, s.generation(ctx))

	if data, ok := s.cache.Get(ctx, key); ok {
		var out render.Output
		if jerr := json.Unmarshal(data, &out); jerr == nil {
			metrics.RecordCacheResult(true)
			return Result{HTML: out.HTML, Libraries: out.Libraries, Display: display, Langcode: langcode, Title: title, Cached: true}, nil
		}
		s.cache.Delete(ctx, key)
	}
	metrics.RecordCacheResult(false)

	// The shared render must outlive the caller that started it.
	renderCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.render(renderCtx, host, display, req.Field, langcode, key)
	})
	var flight singleflight.Result
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case flight = <-ch:
	}
	if flight.Err != nil {
		return Result{}, flight.Err
	}
	out := flight.Val.(render.Output)
	if flight.Shared {
		span.SetAttributes(attribute.Bool("fieldview.shared", true))
	}
	return Result{HTML: out.HTML, Libraries: out.Libraries, Display: display, Langcode: langcode, Title: title}, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, content.ErrNotFound):
		return "entity_not_found"
	case errors.Is(err, displays.ErrNotFound):
		return "display_not_found"
	case errors.Is(err, ErrFieldNotFound), errors.Is(err, ErrNotReferenceField):
		return "bad_field"
	default:
		return "internal"
	}
}

func (s *Service) resolve(ctx context.Context, req Request) (*content.Entity, displays.Display, error) {
	host, err := s.storage.LoadRevision(ctx, req.EntityType, req.ID, req.RevisionID)
	if err != nil {
		return nil, displays.Display{}, fmt.Errorf("load %s %s: %w", req.EntityType, req.ID, err)
	}
	def, ok := host.FieldDefinition(req.Field)
	if !ok {
		return nil, displays.Display{}, fmt.Errorf("%w: %s on %s.%s", ErrFieldNotFound, req.Field, host.Type, host.Bundle)
	}
	if !def.Type.IsReference() {
		return nil, displays.Display{}, fmt.Errorf("%w: %s is %s", ErrNotReferenceField, req.Field, def.Type)
	}
	display, err := s.displays.Lookup(host.Type, host.Bundle, req.Field, req.ViewMode)
	if err != nil {
		return nil, displays.Display{}, err
	}
	return host, display, nil
}

func (s *Service) render(ctx context.Context, host *content.Entity, d displays.Display, field, langcode, key string) (render.Output, error) {
	target := d.Target
	if def, ok := host.FieldDefinition(field); ok && def.TargetType != "" {
		target.TargetType = def.TargetType
	}
	cfg := formatter.Config{FieldName: field, Field: target, Settings: d.Settings}
	elements := s.formatter.ViewElements(ctx, cfg, formatter.ReferencesFrom(host.Get(field)), langcode)

	out, err := s.renderer.Render(ctx, elements...)
	if err != nil {
		return render.Output{}, fmt.Errorf("render %s: %w", d.Key(), err)
	}

	if data, err := json.Marshal(out); err == nil {
		s.cache.Set(ctx, key, data, s.ttl)
	}
	logger := xglog.WithContext(ctx, s.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "fieldview.rendered").
		Str(xglog.FieldEntityType, host.Type).
		Str(xglog.FieldEntityID, host.ID).
		Str(xglog.FieldField, field).
		Str(xglog.FieldViewMode, d.ViewMode).
		Int("bytes", len(out.HTML)).
		Msg("field rendered")
	return out, nil
}

// RenderPage renders the field wrapped in a full HTML page with its asset
// libraries linked.
func (s *Service) RenderPage(ctx context.Context, req Request) (template.HTML, error) {
	res, err := s.RenderField(ctx, req)
	if err != nil {
		return "", err
	}
	title := res.Title
	if title == "" {
		title = req.EntityType + " " + req.ID
	}
	return s.renderer.RenderPage(render.Page{
		Title:     title,
		Lang:      res.Langcode,
		AssetBase: s.assetBase,
	}, render.Output{HTML: res.HTML, Libraries: res.Libraries})
}

// Displays lists all configured displays.
func (s *Service) Displays() []displays.Display {
	return s.displays.List()
}

// DisplayDetail is a display with its settings summary and form.
type DisplayDetail struct {
	Display displays.Display `json:"display"`
	Summary []string         `json:"summary"`
	Form    formatter.Form   `json:"form"`
}

// Display returns the stored display for key with its summary and form.
func (s *Service) Display(ctx context.Context, key displays.Key) (DisplayDetail, error) {
	d, err := s.displays.Get(key)
	if err != nil {
		return DisplayDetail{}, err
	}
	return s.detail(ctx, d)
}

func (s *Service) detail(ctx context.Context, d displays.Display) (DisplayDetail, error) {
	form, err := s.formatter.SettingsForm(ctx, d.Target, d.Settings)
	if err != nil {
		return DisplayDetail{}, err
	}
	return DisplayDetail{Display: d, Summary: formatter.Summary(d.Settings), Form: form}, nil
}

// SaveDisplay validates d's settings against the form the formatter offers
// for its target and stores it.
func (s *Service) SaveDisplay(ctx context.Context, d displays.Display) (DisplayDetail, error) {
	d = d.Normalize()
	if err := d.Check(); err != nil {
		return DisplayDetail{}, err
	}
	if err := s.checkField(ctx, d); err != nil {
		return DisplayDetail{}, err
	}
	if err := s.formatter.Validate(ctx, d.Target, d.Settings); err != nil {
		return DisplayDetail{}, err
	}
	saved, err := s.displays.Put(ctx, d)
	if err != nil {
		return DisplayDetail{}, err
	}
	return s.detail(ctx, saved)
}

// checkField rejects displays for fields the host bundle does not define as
// entity references to the display's target type.
func (s *Service) checkField(ctx context.Context, d displays.Display) error {
	if s.definitions == nil {
		return nil
	}
	defs, err := s.definitions.FieldDefinitions(ctx, d.EntityType, d.Bundle)
	if err != nil {
		return fmt.Errorf("field definitions of %s.%s: %w", d.EntityType, d.Bundle, err)
	}
	for _, def := range defs {
		if def.Name != d.Field {
			continue
		}
		if !def.Type.IsReference() {
			return fmt.Errorf("%w: %s is %s, not an entity reference", displays.ErrInvalid, d.Field, def.Type)
		}
		if def.TargetType != "" && def.TargetType != d.Target.TargetType {
			return fmt.Errorf("%w: %s references %s, not %s", displays.ErrInvalid, d.Field, def.TargetType, d.Target.TargetType)
		}
		return nil
	}
	return fmt.Errorf("%w: %s is not defined on %s.%s", displays.ErrInvalid, d.Field, d.EntityType, d.Bundle)
}

// DeleteDisplay removes a display.
func (s *Service) DeleteDisplay(ctx context.Context, key displays.Key) error {
	return s.displays.Delete(ctx, key)
}
