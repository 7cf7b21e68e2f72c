// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package textformat

import (
	"html/template"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FullHTMLPassesThrough(t *testing.T) {
	r := Default()
	out, err := r.Process(FullHTML, `<div class="x"><script>ok()</script></div>`)
	require.NoError(t, err)
	assert.Equal(t, template.HTML(`<div class="x"><script>ok()</script></div>`), out)
}

func TestRegistry_PlainTextEscapesAndBreaksLines(t *testing.T) {
	r := Default()
	out, err := r.Process(PlainText, "a < b\r\nc & d")
	require.NoError(t, err)
	assert.Equal(t, template.HTML("a &lt; b<br>\nc &amp; d"), out)
}

func TestRegistry_UnknownFormatFallsBack(t *testing.T) {
	r := Default()
	out, err := r.Process("no_such_format", "<b>bold</b>")
	require.NoError(t, err)
	assert.Equal(t, template.HTML("&lt;b&gt;bold&lt;/b&gt;"), out)
}

func TestRegistry_NoFallback(t *testing.T) {
	r := NewRegistry("missing")
	_, err := r.Process("other", "x")
	assert.Error(t, err)
}

func TestRegistry_RegisterAndIDs(t *testing.T) {
	r := Default()
	r.Register("shout", ProcessorFunc(func(text string) (template.HTML, error) {
		return template.HTML(strings.ToUpper(text)), nil
	}))
	assert.True(t, r.Has("shout"))
	assert.Equal(t, []string{BasicHTML, FullHTML, Markdown, PlainText, "shout"}, r.IDs())

	out, err := r.Process("shout", "hey")
	require.NoError(t, err)
	assert.Equal(t, template.HTML("HEY"), out)
}

func TestBasicHTML_FiltersTagsAndAttributes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "allowed tags kept",
			in:   `<p>Hello <strong>world</strong></p>`,
			want: `<p>Hello <strong>world</strong></p>`,
		},
		{
			name: "script dropped with content",
			in:   `<p>a</p><script>alert(1)</script>`,
			want: `<p>a</p>`,
		},
		{
			name: "unknown tag unwrapped",
			in:   `<div><p>x</p></div>`,
			want: `<p>x</p>`,
		},
		{
			name: "event handler attribute removed",
			in:   `<p onclick="evil()">x</p>`,
			want: `<p>x</p>`,
		},
		{
			name: "javascript href removed",
			in:   `<a href="javascript:alert(1)" title="t">x</a>`,
			want: `<a title="t">x</a>`,
		},
		{
			name: "safe href kept",
			in:   `<a href="https://example.com/">x</a>`,
			want: `<a href="https://example.com/">x</a>`,
		},
		{
			name: "void element",
			in:   `line<br>next`,
			want: `line<br/>next`,
		},
		{
			name: "comment dropped",
			in:   `<!-- hidden --><em>shown</em>`,
			want: `<em>shown</em>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := processBasicHTML(tt.in)
			require.NoError(t, err)
			assert.Equal(t, template.HTML(tt.want), out)
		})
	}
}

func TestMarkdown_RendersAndOmitsRawHTML(t *testing.T) {
	out, err := Default().Process(Markdown, "# Title\n\nSome *text*.\n\n<script>x()</script>\n")
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "<h1>Title</h1>")
	assert.Contains(t, s, "<em>text</em>")
	assert.NotContains(t, s, "<script>")
}
