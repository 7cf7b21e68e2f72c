// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package view

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reftabs/internal/content"
	"github.com/ManuGH/reftabs/internal/render"
	"github.com/ManuGH/reftabs/internal/textformat"
	"github.com/ManuGH/reftabs/internal/theme"
)

const paragraphFixture = `
bundles:
  - entity_type: paragraph
    bundle: text
    fields:
      - {name: id, type: integer, base: true}
      - {name: field_heading, type: string, label: Heading}
      - {name: field_text, type: text_long, label: Text}
      - {name: field_children, type: entity_reference_revisions, target_type: paragraph}
entities:
  - type: paragraph
    id: "p1"
    bundle: text
    fields:
      id: [{value: "1"}]
      field_heading: [{value: "Hello & welcome"}]
      field_text: [{value: "<p>Body</p>"}]
      field_children: [{target_id: "p2"}, {target_id: "gone"}]
  - type: paragraph
    id: "p2"
    bundle: text
    fields:
      field_text: [{value: "child *text*", format: markdown}]
  - type: paragraph
    id: "loop"
    bundle: text
    fields:
      field_children: [{target_id: "loop"}]
`

func newFixtureStore(t *testing.T) *content.Store {
	t.Helper()
	store, err := content.NewStore(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.Import(context.Background(), strings.NewReader(paragraphFixture))
	require.NoError(t, err)
	return store
}

func renderHTML(t *testing.T, el render.Element) string {
	t.Helper()
	themes, err := theme.New()
	require.NoError(t, err)
	out, err := render.NewRenderer(themes, textformat.Default()).Render(context.Background(), el)
	require.NoError(t, err)
	return string(out.HTML)
}

func TestView_RendersConfigurableFieldsAndNestedItems(t *testing.T) {
	ctx := context.Background()
	store := newFixtureStore(t)
	b := NewBuilder(store, Options{})

	p1, err := store.Load(ctx, "paragraph", "p1")
	require.NoError(t, err)

	el := b.View(ctx, p1, "")
	assert.Equal(t, theme.HookEntityView, el.Theme)
	assert.Equal(t, DefaultViewMode, el.Vars["ViewMode"])
	// base field "id" is skipped
	require.Len(t, el.Children, 3)
	assert.Equal(t, "field_heading", el.Children[0].Vars["FieldName"])

	// the missing "gone" reference is skipped, p2 is rendered
	children := el.Children[2].Children
	require.Len(t, children, 1)
	assert.Equal(t, "p2", children[0].Vars["ID"])

	html := renderHTML(t, el)
	assert.Contains(t, html, "Hello &amp; welcome")
	assert.Contains(t, html, "<p>Body</p>")
	assert.Contains(t, html, "<em>text</em>")
	assert.NotContains(t, html, "field__label")
}

func TestView_ShowLabels(t *testing.T) {
	ctx := context.Background()
	store := newFixtureStore(t)
	b := NewBuilder(store, Options{ShowLabels: true})

	p2, err := store.Load(ctx, "paragraph", "p2")
	require.NoError(t, err)

	html := renderHTML(t, b.View(ctx, p2, "full"))
	assert.Contains(t, html, `<div class="field__label">Text</div>`)
	assert.Contains(t, html, "entity--view-mode-full")
}

func TestView_SelfReferenceStopsAtMaxDepth(t *testing.T) {
	ctx := context.Background()
	store := newFixtureStore(t)
	b := NewBuilder(store, Options{MaxDepth: 3})

	loop, err := store.Load(ctx, "paragraph", "loop")
	require.NoError(t, err)

	el := b.View(ctx, loop, DefaultViewMode)
	depth := 0
	for len(el.Children) > 0 {
		depth++
		// entity_view -> field -> entity_view
		el = el.Children[0].Children[0]
	}
	assert.Equal(t, 2, depth)
}

func TestView_DefaultFormatAppliesToUnformattedText(t *testing.T) {
	ctx := context.Background()
	store := newFixtureStore(t)
	b := NewBuilder(store, Options{DefaultFormat: textformat.PlainText})

	p1, err := store.Load(ctx, "paragraph", "p1")
	require.NoError(t, err)

	el := b.View(ctx, p1, DefaultViewMode)
	text := el.Children[1].Children[0]
	assert.Equal(t, render.KindProcessedText, text.Kind)
	assert.Equal(t, textformat.PlainText, text.Format)
}
