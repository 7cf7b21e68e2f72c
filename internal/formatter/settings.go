// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package formatter implements the entity reference tab formatter: it renders
// the entities referenced by a field as a tabbed or accordion widget, taking
// each tab's title and body from configurable fields of the referenced entity.
package formatter

import (
	"errors"
	"fmt"

	"github.com/ManuGH/reftabs/internal/theme"
)

// ID is the formatter's plugin identifier.
const ID = "entity_reference_tab_formatter"

// TitleField is the conventional title field offered first in the title select.
const TitleField = "title"

// ErrInvalidSettings is returned by Validate.
var ErrInvalidSettings = errors.New("formatter: invalid settings")

// Style selects between tab and accordion output.
type Style string

const (
	StyleTab       Style = "tab"
	StyleAccordion Style = "accordion"
)

// String returns the string representation of Style.
func (s Style) String() string {
	return string(s)
}

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	return s == StyleTab || s == StyleAccordion
}

// Label is the human readable name of the style.
func (s Style) Label() string {
	switch s {
	case StyleAccordion:
		return "Accordion"
	default:
		return "Tab"
	}
}

// Styles lists the known styles in form order.
func Styles() []Style {
	return []Style{StyleTab, StyleAccordion}
}

// Settings is the per-display configuration of the formatter.
type Settings struct {
	TabTitle string `json:"tab_title" yaml:"tab_title"`
	TabBody  string `json:"tab_body" yaml:"tab_body"`
	Style    Style  `json:"style" yaml:"style"`
}

// DefaultSettings returns the settings a new display starts with.
func DefaultSettings() Settings {
	return Settings{Style: StyleTab}
}

// EffectiveStyle is the configured style, falling back to tab when unset or unknown.
func (s Settings) EffectiveStyle() Style {
	if s.Style.Valid() {
		return s.Style
	}
	return StyleTab
}

// FieldSettings describes the reference field the formatter is attached to.
type FieldSettings struct {
	// TargetType is the entity type the field references.
	TargetType string `json:"target_type" yaml:"target_type"`
	// TargetBundles restricts the bundles that may be referenced.
	TargetBundles []string `json:"target_bundles,omitempty" yaml:"target_bundles,omitempty"`
}

// Presentation is the theme hook and library used for a style.
type Presentation struct {
	Theme   string
	Library string
}

// PresentationFor maps a style to its theme hook and asset library. Both always
// change together; unknown styles render as tabs.
func PresentationFor(style Style) Presentation {
	switch style {
	case StyleAccordion:
		return Presentation{Theme: theme.HookAccordionFormatter, Library: theme.LibraryAccordion}
	default:
		return Presentation{Theme: theme.HookTabFormatter, Library: theme.LibraryTab}
	}
}

// Summary returns the lines shown next to the display in the field UI.
func Summary(s Settings) []string {
	title := s.TabTitle
	if title == "" {
		title = "(none)"
	}
	body := s.TabBody
	if body == "" {
		body = "(none)"
	}
	return []string{
		fmt.Sprintf("Tab title: %s", title),
		fmt.Sprintf("Tab body: %s", body),
		fmt.Sprintf("Display style: %s", s.EffectiveStyle().Label()),
	}
}
