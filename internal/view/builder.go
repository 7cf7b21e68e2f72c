// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package view builds render trees for whole entities in a view mode. It is
// what the tab formatter uses to render nested sub-items.
package view

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ManuGH/reftabs/internal/content"
	xglog "github.com/ManuGH/reftabs/internal/log"
	"github.com/ManuGH/reftabs/internal/render"
	"github.com/ManuGH/reftabs/internal/textformat"
	"github.com/ManuGH/reftabs/internal/theme"
)

// DefaultViewMode is the view mode used when none is requested.
const DefaultViewMode = "default"

// DefaultTargetType is the entity type nested reference fields point at
// when their definition does not say.
const DefaultTargetType = "paragraph"

// Options tune a Builder.
type Options struct {
	// DefaultFormat applies to text items stored without a format.
	DefaultFormat string
	// MaxDepth bounds nested entity views; deeper references are skipped.
	MaxDepth int
	// ShowLabels wraps each field with its label.
	ShowLabels bool
}

// Builder renders entities field by field.
type Builder struct {
	storage content.Storage
	opts    Options
	logger  zerolog.Logger
}

// NewBuilder creates a view builder loading nested entities from storage.
func NewBuilder(storage content.Storage, opts Options) *Builder {
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = textformat.FullHTML
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 5
	}
	return &Builder{
		storage: storage,
		opts:    opts,
		logger:  xglog.WithComponent("view"),
	}
}

type depthKey struct{}

func depthFrom(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// View returns the render tree for e in viewMode: every configurable,
// non-empty field in definition order.
func (b *Builder) View(ctx context.Context, e *content.Entity, viewMode string) render.Element {
	if viewMode == "" {
		viewMode = DefaultViewMode
	}
	depth := depthFrom(ctx) + 1
	ctx = context.WithValue(ctx, depthKey{}, depth)

	var fields []render.Element
	for _, def := range e.Definitions {
		if !def.Configurable() || e.IsEmpty(def.Name) {
			continue
		}
		items := b.fieldItems(ctx, e, def, viewMode, depth)
		if len(items) == 0 {
			continue
		}
		vars := map[string]any{
			"FieldName": def.Name,
			"FieldType": string(def.Type),
			"Label":     "",
		}
		if b.opts.ShowLabels {
			vars["Label"] = def.Label
		}
		fields = append(fields, render.Themed(theme.HookField, vars, items...))
	}

	return render.Themed(theme.HookEntityView, map[string]any{
		"EntityType": e.Type,
		"Bundle":     e.Bundle,
		"ViewMode":   viewMode,
		"ID":         e.ID,
	}, fields...)
}

func (b *Builder) fieldItems(ctx context.Context, e *content.Entity, def content.FieldDefinition, viewMode string, depth int) []render.Element {
	items := e.Get(def.Name)
	out := make([]render.Element, 0, len(items))

	switch {
	case def.Type.IsRichText():
		for _, item := range items {
			format := item.Format
			if format == "" {
				format = b.opts.DefaultFormat
			}
			out = append(out, render.ProcessedText(item.Value, format))
		}
	case def.Type.IsReference():
		if depth >= b.opts.MaxDepth {
			b.logger.Warn().
				Str(xglog.FieldEvent, "view.max_depth").
				Str(xglog.FieldEntityType, e.Type).
				Str(xglog.FieldEntityID, e.ID).
				Str(xglog.FieldField, def.Name).
				Int("depth", depth).
				Msg("nested entity view depth limit reached")
			return nil
		}
		targetType := def.TargetType
		if targetType == "" {
			targetType = DefaultTargetType
		}
		for _, item := range items {
			if item.TargetID == "" {
				continue
			}
			child, err := b.storage.LoadRevision(ctx, targetType, item.TargetID, item.TargetRevisionID)
			if err != nil {
				evt := b.logger.Warn()
				if errors.Is(err, content.ErrNotFound) {
					evt = b.logger.Debug()
				}
				evt.Err(err).
					Str(xglog.FieldEvent, "view.skip_reference").
					Str(xglog.FieldEntityType, targetType).
					Str(xglog.FieldTargetID, item.TargetID).
					Msg("skipping nested entity")
				continue
			}
			out = append(out, b.View(ctx, child, viewMode))
		}
	default:
		for _, item := range items {
			out = append(out, render.PlainText(item.Value))
		}
	}
	return out
}
