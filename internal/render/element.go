// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package render defines the render tree produced by formatters and view
// builders, and turns it into HTML.
package render

import "html/template"

// Kind identifies how an Element is rendered.
type Kind string

const (
	// KindThemed renders Vars (plus Children) through the template of Theme.
	KindThemed Kind = "themed"
	// KindProcessedText runs Text through the text format named by Format.
	KindProcessedText Kind = "processed_text"
	// KindMarkup emits Markup verbatim.
	KindMarkup Kind = "markup"
)

// Element is one node of a render tree.
type Element struct {
	Kind     Kind           `json:"kind"`
	Theme    string         `json:"theme,omitempty"`
	Vars     map[string]any `json:"vars,omitempty"`
	Text     string         `json:"text,omitempty"`
	Format   string         `json:"format,omitempty"`
	Markup   template.HTML  `json:"markup,omitempty"`
	Children []Element      `json:"children,omitempty"`
	Attached Attached       `json:"attached,omitempty"`
}

// Attached lists assets an element needs on the page.
type Attached struct {
	Libraries []string `json:"libraries,omitempty"`
}

// Themed builds a KindThemed element.
func Themed(hook string, vars map[string]any, children ...Element) Element {
	return Element{Kind: KindThemed, Theme: hook, Vars: vars, Children: children}
}

// ProcessedText builds a KindProcessedText element.
func ProcessedText(text, format string) Element {
	return Element{Kind: KindProcessedText, Text: text, Format: format}
}

// PlainText builds a KindMarkup element holding escaped text.
func PlainText(s string) Element {
	return Element{Kind: KindMarkup, Markup: template.HTML(template.HTMLEscapeString(s))} //nolint:gosec // escaped
}

// WithLibraries returns a copy of e with libraries appended to its attachments.
func (e Element) WithLibraries(libs ...string) Element {
	e.Attached.Libraries = append(append([]string(nil), e.Attached.Libraries...), libs...)
	return e
}
