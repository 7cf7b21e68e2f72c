// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package theme embeds the HTML templates and asset libraries used to render
// field output, and maps theme hooks to templates.
package theme

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

// Theme hooks.
const (
	HookTabFormatter       = "entity_ref_tab_formatter"
	HookAccordionFormatter = "entity_ref_accordion_formatter"
	HookEntityView         = "entity_view"
	HookField              = "field"
	HookPage               = "page"
)

// Library names.
const (
	LibraryTab       = "entity_ref_tab_formatter/tab_formatter"
	LibraryAccordion = "entity_ref_tab_formatter/accordion_formatter"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

// ErrUnknownHook is returned when no template implements a theme hook.
var ErrUnknownHook = errors.New("theme: unknown hook")

// Library is a named bundle of stylesheets and scripts, paths relative to the asset root.
type Library struct {
	Name string   `json:"name"`
	CSS  []string `json:"css,omitempty"`
	JS   []string `json:"js,omitempty"`
}

// Registry resolves theme hooks to templates and library names to assets.
type Registry struct {
	base      *template.Template
	libraries map[string]Library
}

// New parses the embedded templates.
func New() (*Registry, error) {
	base, err := template.New("theme").Funcs(placeholderFuncs()).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Registry{
		base: base,
		libraries: map[string]Library{
			LibraryTab: {
				Name: LibraryTab,
				CSS:  []string{"css/tab_formatter.css"},
				JS:   []string{"js/tab_formatter.js"},
			},
			LibraryAccordion: {
				Name: LibraryAccordion,
				CSS:  []string{"css/accordion_formatter.css"},
				JS:   []string{"js/accordion_formatter.js"},
			},
		},
	}, nil
}

// TemplateName returns the template file implementing a hook:
// underscores become dashes, ".html.tmpl" is appended.
func TemplateName(hook string) string {
	return strings.ReplaceAll(hook, "_", "-") + ".html.tmpl"
}

// HasHook reports whether a template implements hook.
func (r *Registry) HasHook(hook string) bool {
	return r.base.Lookup(TemplateName(hook)) != nil
}

// Execute renders the template for hook with data. funcs override the
// placeholder functions (notably "render") for this execution only.
func (r *Registry) Execute(w io.Writer, hook string, data any, funcs template.FuncMap) error {
	name := TemplateName(hook)
	if r.base.Lookup(name) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownHook, hook)
	}
	// The base set is never executed so it can always be cloned.
	t, err := r.base.Clone()
	if err != nil {
		return fmt.Errorf("clone templates: %w", err)
	}
	if funcs != nil {
		t = t.Funcs(funcs)
	}
	return t.ExecuteTemplate(w, name, data)
}

// Library looks up a library by name.
func (r *Registry) Library(name string) (Library, bool) {
	lib, ok := r.libraries[name]
	return lib, ok
}

// Libraries returns all library names, sorted.
func (r *Registry) Libraries() []string {
	names := make([]string, 0, len(r.libraries))
	for n := range r.libraries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Assets returns the embedded asset tree rooted at the asset directory.
func Assets() fs.FS {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err) // embedded path is static
	}
	return sub
}

func placeholderFuncs() template.FuncMap {
	return template.FuncMap{
		"render": func(any) (template.HTML, error) {
			return "", errors.New("theme: render called outside a renderer")
		},
	}
}

var invalidIDChars = regexp.MustCompile(`[^a-z0-9\-_]+`)

// CleanID builds a valid, lower-case HTML id from the given parts.
func CleanID(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, "-"))
	joined = strings.NewReplacer(" ", "-", "_", "-", "[", "-", "]", "").Replace(joined)
	joined = invalidIDChars.ReplaceAllString(joined, "")
	for strings.Contains(joined, "--") {
		joined = strings.ReplaceAll(joined, "--", "-")
	}
	joined = strings.Trim(joined, "-")
	if joined == "" {
		return "id"
	}
	if joined[0] >= '0' && joined[0] <= '9' {
		joined = "id-" + joined
	}
	return joined
}
