// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package textformat turns stored rich text into safe HTML according to the
// text format recorded with each field item.
package textformat

import (
	"fmt"
	"html"
	"html/template"
	"sort"
	"strings"
	"sync"
)

// Well-known format IDs.
const (
	FullHTML  = "full_html"
	BasicHTML = "basic_html"
	PlainText = "plain_text"
	Markdown  = "markdown"
)

// Processor converts raw text into HTML.
type Processor interface {
	Process(text string) (template.HTML, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(text string) (template.HTML, error)

// Process calls f(text).
func (f ProcessorFunc) Process(text string) (template.HTML, error) {
	return f(text)
}

// Registry maps format IDs to processors. Unknown formats fall back to the
// fallback format.
type Registry struct {
	mu       sync.RWMutex
	formats  map[string]Processor
	fallback string
}

// NewRegistry returns an empty registry with the given fallback format ID.
func NewRegistry(fallback string) *Registry {
	return &Registry{
		formats:  make(map[string]Processor),
		fallback: fallback,
	}
}

// Default returns a registry with the built-in formats and plain_text as fallback.
func Default() *Registry {
	r := NewRegistry(PlainText)
	r.Register(FullHTML, ProcessorFunc(processFullHTML))
	r.Register(BasicHTML, ProcessorFunc(processBasicHTML))
	r.Register(PlainText, ProcessorFunc(processPlainText))
	r.Register(Markdown, ProcessorFunc(processMarkdown))
	return r
}

// Register adds or replaces a processor.
func (r *Registry) Register(id string, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[id] = p
}

// Has reports whether a processor is registered for id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.formats[id]
	return ok
}

// IDs returns the registered format IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.formats))
	for id := range r.formats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Process renders text with the named format.
func (r *Registry) Process(format, text string) (template.HTML, error) {
	r.mu.RLock()
	p, ok := r.formats[format]
	if !ok {
		p, ok = r.formats[r.fallback]
	}
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("textformat: no processor for %q and no fallback", format)
	}
	return p.Process(text)
}

// processFullHTML trusts the stored markup as is.
func processFullHTML(text string) (template.HTML, error) {
	return template.HTML(text), nil //nolint:gosec // full_html is an editor-trusted format
}

// processPlainText escapes the text and keeps line breaks.
func processPlainText(text string) (template.HTML, error) {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
	return template.HTML(escaped), nil //nolint:gosec // escaped above
}
