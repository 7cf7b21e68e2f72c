// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	xglog "github.com/ManuGH/reftabs/internal/log"
	"github.com/ManuGH/reftabs/internal/textformat"
	"github.com/ManuGH/reftabs/internal/theme"
)

// maxDepth bounds nesting of render calls made from templates.
const maxDepth = 32

// ErrTooDeep is returned when a render tree nests deeper than maxDepth.
var ErrTooDeep = errors.New("render: tree too deep")

// Output is rendered HTML plus the libraries the markup needs.
type Output struct {
	HTML      template.HTML `json:"html"`
	Libraries []string      `json:"libraries,omitempty"`
}

// Renderer turns render trees into HTML.
type Renderer struct {
	themes  *theme.Registry
	formats *textformat.Registry
}

// NewRenderer creates a renderer over the given theme and text format registries.
func NewRenderer(themes *theme.Registry, formats *textformat.Registry) *Renderer {
	return &Renderer{themes: themes, formats: formats}
}

// Render renders elements in order and collects their attached libraries,
// deduplicated in first-seen order.
func (r *Renderer) Render(ctx context.Context, elements ...Element) (Output, error) {
	st := &state{r: r, ctx: ctx, seen: make(map[string]bool)}
	html, err := st.renderList(elements)
	if err != nil {
		return Output{}, err
	}
	return Output{HTML: html, Libraries: st.libraries}, nil
}

// Page is a complete HTML document wrapping rendered output.
type Page struct {
	Title     string
	Lang      string
	AssetBase string // URL prefix of the asset tree, e.g. "/assets/"
}

// RenderPage wraps out in the page template, linking the CSS and JS of its libraries.
func (r *Renderer) RenderPage(p Page, out Output) (template.HTML, error) {
	var css, js []string
	for _, name := range out.Libraries {
		lib, ok := r.themes.Library(name)
		if !ok {
			logger := xglog.WithComponent("render")
			logger.Warn().
				Str(xglog.FieldEvent, "render.unknown_library").
				Str("library", name).
				Msg("attached library is not registered")
			continue
		}
		for _, c := range lib.CSS {
			css = append(css, p.AssetBase+c)
		}
		for _, j := range lib.JS {
			js = append(js, p.AssetBase+j)
		}
	}

	data := map[string]any{
		"Title":   p.Title,
		"Lang":    p.Lang,
		"CSS":     css,
		"JS":      js,
		"Content": out.HTML,
	}
	var buf bytes.Buffer
	if err := r.themes.Execute(&buf, theme.HookPage, data, nil); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // produced by html/template
}

type state struct {
	r         *Renderer
	ctx       context.Context
	depth     int
	seen      map[string]bool
	libraries []string
}

func (s *state) attach(libs []string) {
	for _, l := range libs {
		if !s.seen[l] {
			s.seen[l] = true
			s.libraries = append(s.libraries, l)
		}
	}
}

func (s *state) renderList(elements []Element) (template.HTML, error) {
	var buf bytes.Buffer
	for _, el := range elements {
		h, err := s.renderOne(el)
		if err != nil {
			return "", err
		}
		buf.WriteString(string(h))
	}
	return template.HTML(buf.String()), nil //nolint:gosec // concatenation of rendered parts
}

func (s *state) renderOne(el Element) (template.HTML, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > maxDepth {
		return "", ErrTooDeep
	}

	s.attach(el.Attached.Libraries)

	switch el.Kind {
	case KindMarkup:
		return el.Markup, nil
	case KindProcessedText:
		return s.r.formats.Process(el.Format, el.Text)
	case KindThemed:
		data := make(map[string]any, len(el.Vars)+1)
		for k, v := range el.Vars {
			data[k] = v
		}
		data["Children"] = el.Children

		var buf bytes.Buffer
		funcs := template.FuncMap{"render": s.renderValue}
		if err := s.r.themes.Execute(&buf, el.Theme, data, funcs); err != nil {
			return "", fmt.Errorf("theme %s: %w", el.Theme, err)
		}
		return template.HTML(buf.String()), nil //nolint:gosec // produced by html/template
	default:
		return "", fmt.Errorf("render: unknown element kind %q", el.Kind)
	}
}

// renderValue is exposed to templates as "render".
func (s *state) renderValue(v any) (template.HTML, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case Element:
		return s.renderOne(x)
	case []Element:
		return s.renderList(x)
	case template.HTML:
		return x, nil
	case string:
		return template.HTML(template.HTMLEscapeString(x)), nil //nolint:gosec // escaped
	default:
		return "", fmt.Errorf("render: cannot render %T", v)
	}
}
