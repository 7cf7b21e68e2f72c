// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package formatter

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/ManuGH/reftabs/internal/content"
	xglog "github.com/ManuGH/reftabs/internal/log"
	"github.com/ManuGH/reftabs/internal/metrics"
	"github.com/ManuGH/reftabs/internal/render"
	"github.com/ManuGH/reftabs/internal/telemetry"
	"github.com/ManuGH/reftabs/internal/textformat"
	"github.com/ManuGH/reftabs/internal/theme"
)

const (
	// SubItemTargetType is used when a body reference field names no target type.
	SubItemTargetType = "paragraph"
	// SubItemViewMode is the view mode sub-items are rendered in.
	SubItemViewMode = "default"
)

// ViewBuilder renders a whole entity in a view mode.
type ViewBuilder interface {
	View(ctx context.Context, e *content.Entity, viewMode string) render.Element
}

// Reference is one item of the reference field being formatted.
type Reference struct {
	TargetID         string `json:"target_id"`
	TargetRevisionID string `json:"target_revision_id,omitempty"`
}

// ReferencesFrom converts stored field items into references.
func ReferencesFrom(items []content.FieldItem) []Reference {
	refs := make([]Reference, 0, len(items))
	for _, it := range items {
		refs = append(refs, Reference{TargetID: it.TargetID, TargetRevisionID: it.TargetRevisionID})
	}
	return refs
}

// Tab is one resolved tab handed to the theme template.
type Tab struct {
	ID       string           `json:"id"`
	TargetID string           `json:"target_id"`
	Title    string           `json:"title"`
	Body     []render.Element `json:"body,omitempty"`
}

// Config is everything the formatter needs to know about one display.
type Config struct {
	FieldName string        `json:"field_name"`
	Field     FieldSettings `json:"field"`
	Settings  Settings      `json:"settings"`
}

// Deps are the host services the formatter uses.
type Deps struct {
	Storage     content.Storage
	Definitions content.FieldDefinitionProvider
	Views       ViewBuilder
	// DefaultFormat applies to rich text stored without a format.
	DefaultFormat string
}

// Formatter renders reference fields as tabs or accordions.
type Formatter struct {
	storage       content.Storage
	defs          content.FieldDefinitionProvider
	views         ViewBuilder
	defaultFormat string
	tracer        trace.Tracer
	logger        zerolog.Logger
}

// New creates a formatter.
func New(deps Deps) *Formatter {
	format := deps.DefaultFormat
	if format == "" {
		format = textformat.FullHTML
	}
	return &Formatter{
		storage:       deps.Storage,
		defs:          deps.Definitions,
		views:         deps.Views,
		defaultFormat: format,
		tracer:        telemetry.Tracer("reftabs/formatter"),
		logger:        xglog.WithComponent("formatter"),
	}
}

// ViewElements resolves one tab per non-empty reference and wraps them in the
// container of the configured style. It never fails: references that cannot
// be loaded are skipped, missing title or body fields yield empty values.
// An empty reference list yields no elements.
func (f *Formatter) ViewElements(ctx context.Context, cfg Config, items []Reference, langcode string) []render.Element {
	if len(items) == 0 {
		return nil
	}

	style := cfg.Settings.EffectiveStyle()
	ctx, span := f.tracer.Start(ctx, "formatter.ViewElements",
		trace.WithAttributes(telemetry.FormatterAttributes(cfg.Field.TargetType, cfg.FieldName, string(style), len(items))...),
	)
	defer span.End()

	logger := xglog.WithContext(ctx, f.logger).With().
		Str(xglog.FieldField, cfg.FieldName).
		Str(xglog.FieldEntityType, cfg.Field.TargetType).
		Logger()

	tabs := make([]Tab, 0, len(items))
	for delta, ref := range items {
		id := strings.TrimSpace(ref.TargetID)
		if id == "" || id == "0" {
			metrics.RecordReferenceSkipped(metrics.SkipEmptyTarget)
			continue
		}

		target, err := f.storage.LoadRevision(ctx, cfg.Field.TargetType, id, ref.TargetRevisionID)
		if err != nil {
			reason := metrics.SkipLoadFailed
			evt := logger.Warn()
			if errors.Is(err, content.ErrNotFound) {
				reason = metrics.SkipMissingTarget
				evt = logger.Debug()
			}
			metrics.RecordReferenceSkipped(reason)
			evt.Err(err).
				Str(xglog.FieldEvent, "render.skip_reference").
				Str(xglog.FieldTargetID, id).
				Int("delta", delta).
				Msg("skipping reference")
			continue
		}

		title, _ := target.FirstValue(cfg.Settings.TabTitle)
		tabs = append(tabs, Tab{
			ID:       theme.CleanID(cfg.FieldName, id, strconv.Itoa(delta)),
			TargetID: id,
			Title:    title,
			Body:     f.body(ctx, logger, target, cfg.Settings.TabBody),
		})
	}

	pres := PresentationFor(style)
	metrics.RecordTabsRendered(string(style), len(tabs))
	span.SetAttributes(attribute.Int("formatter.tabs", len(tabs)))

	container := render.Themed(pres.Theme, map[string]any{
		"Tabs":      tabs,
		"Lang":      normalizeLangcode(langcode),
		"FieldName": cfg.FieldName,
		"Style":     string(style),
	}).WithLibraries(pres.Library)

	return []render.Element{container}
}

// body resolves the tab body from the configured field of the target.
func (f *Formatter) body(ctx context.Context, logger zerolog.Logger, target *content.Entity, field string) []render.Element {
	if field == "" || target.IsEmpty(field) {
		return nil
	}
	def, ok := target.FieldDefinition(field)
	if !ok {
		logger.Debug().
			Str(xglog.FieldEvent, "render.body_undefined").
			Str(xglog.FieldBundle, target.Bundle).
			Str("body_field", field).
			Msg("body field is not defined on target bundle")
		return nil
	}

	items := target.Get(field)
	switch {
	case def.Type.IsRichText():
		format := items[0].Format
		if format == "" {
			format = f.defaultFormat
		}
		return []render.Element{render.ProcessedText(items[0].Value, format)}

	case def.Type.IsReference():
		targetType := def.TargetType
		if targetType == "" {
			targetType = SubItemTargetType
		}
		body := make([]render.Element, 0, len(items))
		for _, item := range items {
			if item.TargetID == "" {
				continue
			}
			sub, err := f.storage.LoadRevision(ctx, targetType, item.TargetID, item.TargetRevisionID)
			if err != nil {
				metrics.RecordReferenceSkipped(metrics.SkipMissingSubItem)
				logger.Debug().Err(err).
					Str(xglog.FieldEvent, "render.skip_sub_item").
					Str(xglog.FieldTargetID, item.TargetID).
					Msg("skipping sub-item")
				continue
			}
			body = append(body, f.views.View(ctx, sub, SubItemViewMode))
		}
		return body

	default:
		logger.Debug().
			Str(xglog.FieldEvent, "render.body_unsupported").
			Str("body_field", field).
			Str("field_type", def.Type.String()).
			Msg("body field type is not rendered")
		return nil
	}
}

// normalizeLangcode returns the canonical BCP 47 form of code, or "" when it is
// empty, undetermined or malformed.
func normalizeLangcode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return ""
	}
	return tag.String()
}
