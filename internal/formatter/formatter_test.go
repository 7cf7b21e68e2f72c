// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package formatter

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reftabs/internal/content"
	"github.com/ManuGH/reftabs/internal/render"
	"github.com/ManuGH/reftabs/internal/textformat"
	"github.com/ManuGH/reftabs/internal/theme"
	"github.com/ManuGH/reftabs/internal/view"
)

var itemDefs = []content.FieldDefinition{
	{Name: "id", Type: content.FieldTypeInteger, Base: true},
	{Name: "title", Type: content.FieldTypeString, Base: true},
	{Name: "field_body", Type: content.FieldTypeTextLong},
	{Name: "field_paragraphs", Type: content.FieldTypeEntityReferenceRevisions, TargetType: "paragraph"},
	{Name: "field_count", Type: content.FieldTypeInteger},
}

// memStorage is a map backed content.Storage keyed by "type/id".
type memStorage struct {
	entities map[string]*content.Entity
	failing  map[string]error
	loads    []string
}

func newMemStorage(entities ...*content.Entity) *memStorage {
	m := &memStorage{entities: map[string]*content.Entity{}, failing: map[string]error{}}
	for _, e := range entities {
		m.entities[e.Type+"/"+e.ID] = e
	}
	return m
}

func (m *memStorage) Load(ctx context.Context, entityType, id string) (*content.Entity, error) {
	return m.LoadRevision(ctx, entityType, id, "")
}

func (m *memStorage) LoadRevision(_ context.Context, entityType, id, _ string) (*content.Entity, error) {
	key := entityType + "/" + id
	m.loads = append(m.loads, key)
	if err, ok := m.failing[key]; ok {
		return nil, err
	}
	e, ok := m.entities[key]
	if !ok {
		return nil, content.ErrNotFound
	}
	return e, nil
}

// stubViews records the entities it was asked to render.
type stubViews struct {
	viewed []string
}

func (s *stubViews) View(_ context.Context, e *content.Entity, viewMode string) render.Element {
	s.viewed = append(s.viewed, e.ID+":"+viewMode)
	return render.Themed(theme.HookEntityView, map[string]any{"ID": e.ID})
}

func item(id, title string, fields map[string][]content.FieldItem) *content.Entity {
	if fields == nil {
		fields = map[string][]content.FieldItem{}
	}
	fields["title"] = []content.FieldItem{{Value: title}}
	return &content.Entity{Type: "node", ID: id, Bundle: "item", Fields: fields, Definitions: itemDefs}
}

func tabsOf(t *testing.T, els []render.Element) []Tab {
	t.Helper()
	require.Len(t, els, 1)
	tabs, ok := els[0].Vars["Tabs"].([]Tab)
	require.True(t, ok, "Tabs var has type %T", els[0].Vars["Tabs"])
	return tabs
}

func nodeConfig(s Settings) Config {
	return Config{
		FieldName: "field_tabs",
		Field:     FieldSettings{TargetType: "node", TargetBundles: []string{"item"}},
		Settings:  s,
	}
}

func TestViewElements_OneTabPerNonEmptyReference(t *testing.T) {
	store := newMemStorage(item("1", "One", nil), item("2", "Two", nil), item("3", "Three", nil))
	f := New(Deps{Storage: store, Views: &stubViews{}})

	refs := []Reference{{TargetID: "1"}, {TargetID: ""}, {TargetID: "2"}, {TargetID: "0"}, {TargetID: " "}, {TargetID: "3"}}
	tabs := tabsOf(t, f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title"}), refs, ""))

	want := []Tab{
		{ID: "field-tabs-1-0", TargetID: "1", Title: "One"},
		{ID: "field-tabs-2-2", TargetID: "2", Title: "Two"},
		{ID: "field-tabs-3-5", TargetID: "3", Title: "Three"},
	}
	if diff := cmp.Diff(want, tabs); diff != "" {
		t.Errorf("tabs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"node/1", "node/2", "node/3"}, store.loads)
}

func TestViewElements_EmptyReferencesYieldNothing(t *testing.T) {
	f := New(Deps{Storage: newMemStorage(), Views: &stubViews{}})
	assert.Nil(t, f.ViewElements(context.Background(), nodeConfig(Settings{}), nil, "en"))
	assert.Nil(t, f.ViewElements(context.Background(), nodeConfig(Settings{}), []Reference{}, "en"))
}

func TestViewElements_SkipsMissingAndFailingTargets(t *testing.T) {
	store := newMemStorage(item("1", "One", nil), item("4", "Four", nil))
	store.failing["node/3"] = errors.New("disk on fire")
	f := New(Deps{Storage: store, Views: &stubViews{}})

	refs := []Reference{{TargetID: "1"}, {TargetID: "2"}, {TargetID: "3"}, {TargetID: "4"}}
	tabs := tabsOf(t, f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title"}), refs, ""))

	require.Len(t, tabs, 2)
	assert.Equal(t, "1", tabs[0].TargetID)
	assert.Equal(t, "4", tabs[1].TargetID)
}

func TestViewElements_DuplicateReferencesGetDistinctIDs(t *testing.T) {
	f := New(Deps{Storage: newMemStorage(item("7", "Seven", nil)), Views: &stubViews{}})

	tabs := tabsOf(t, f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title"}),
		[]Reference{{TargetID: "7"}, {TargetID: "7"}}, ""))

	require.Len(t, tabs, 2)
	assert.NotEqual(t, tabs[0].ID, tabs[1].ID)
}

func TestViewElements_StyleSelectsThemeAndLibraryTogether(t *testing.T) {
	f := New(Deps{Storage: newMemStorage(item("1", "One", nil)), Views: &stubViews{}})
	refs := []Reference{{TargetID: "1"}}

	tests := []struct {
		style       Style
		wantTheme   string
		wantLibrary string
	}{
		{StyleTab, theme.HookTabFormatter, theme.LibraryTab},
		{StyleAccordion, theme.HookAccordionFormatter, theme.LibraryAccordion},
		{"", theme.HookTabFormatter, theme.LibraryTab},
		{"carousel", theme.HookTabFormatter, theme.LibraryTab},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			els := f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title", Style: tt.style}), refs, "")
			require.Len(t, els, 1)
			assert.Equal(t, tt.wantTheme, els[0].Theme)
			assert.Equal(t, []string{tt.wantLibrary}, els[0].Attached.Libraries)
		})
	}
}

func TestViewElements_RichTextBody(t *testing.T) {
	store := newMemStorage(
		item("1", "Stored format", map[string][]content.FieldItem{
			"field_body": {{Value: "**hi**", Format: textformat.Markdown}, {Value: "ignored"}},
		}),
		item("2", "No format", map[string][]content.FieldItem{
			"field_body": {{Value: "<p>raw</p>"}},
		}),
	)
	f := New(Deps{Storage: store, Views: &stubViews{}, DefaultFormat: textformat.BasicHTML})

	tabs := tabsOf(t, f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title", TabBody: "field_body"}),
		[]Reference{{TargetID: "1"}, {TargetID: "2"}}, ""))

	require.Len(t, tabs, 2)
	assert.Equal(t, []render.Element{render.ProcessedText("**hi**", textformat.Markdown)}, tabs[0].Body)
	assert.Equal(t, []render.Element{render.ProcessedText("<p>raw</p>", textformat.BasicHTML)}, tabs[1].Body)
}

func TestViewElements_DefaultFormatIsFullHTML(t *testing.T) {
	store := newMemStorage(item("1", "One", map[string][]content.FieldItem{
		"field_body": {{Value: "<p>x</p>"}},
	}))
	f := New(Deps{Storage: store, Views: &stubViews{}})

	tabs := tabsOf(t, f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title", TabBody: "field_body"}),
		[]Reference{{TargetID: "1"}}, ""))
	require.Len(t, tabs[0].Body, 1)
	assert.Equal(t, textformat.FullHTML, tabs[0].Body[0].Format)
}

func TestViewElements_ReferenceRevisionsBodyRendersSubItems(t *testing.T) {
	p1 := &content.Entity{Type: "paragraph", ID: "p1", Bundle: "text"}
	p2 := &content.Entity{Type: "paragraph", ID: "p2", Bundle: "text"}
	store := newMemStorage(
		item("1", "One", map[string][]content.FieldItem{
			"field_paragraphs": {{TargetID: "p1"}, {TargetID: "missing"}, {TargetID: ""}, {TargetID: "p2"}},
		}),
		p1, p2,
	)
	views := &stubViews{}
	f := New(Deps{Storage: store, Views: views})

	tabs := tabsOf(t, f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title", TabBody: "field_paragraphs"}),
		[]Reference{{TargetID: "1"}}, ""))

	require.Len(t, tabs, 1)
	require.Len(t, tabs[0].Body, 2)
	for _, el := range tabs[0].Body {
		assert.Equal(t, render.KindThemed, el.Kind)
		assert.Equal(t, theme.HookEntityView, el.Theme)
	}
	assert.Equal(t, []string{"p1:default", "p2:default"}, views.viewed)
}

func TestViewElements_UnsupportedOrMissingBodyIsEmpty(t *testing.T) {
	store := newMemStorage(item("1", "One", map[string][]content.FieldItem{
		"field_count":   {{Value: "3"}},
		"field_unknown": {{Value: "x"}},
	}))
	f := New(Deps{Storage: store, Views: &stubViews{}})
	refs := []Reference{{TargetID: "1"}}

	for _, body := range []string{"", "field_count", "field_unknown", "field_body"} {
		t.Run(body, func(t *testing.T) {
			tabs := tabsOf(t, f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title", TabBody: body}), refs, ""))
			require.Len(t, tabs, 1)
			assert.Empty(t, tabs[0].Body)
		})
	}
}

func TestViewElements_MissingTitleFieldGivesEmptyTitle(t *testing.T) {
	f := New(Deps{Storage: newMemStorage(item("1", "One", nil)), Views: &stubViews{}})

	tabs := tabsOf(t, f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "field_nope"}),
		[]Reference{{TargetID: "1"}}, ""))
	require.Len(t, tabs, 1)
	assert.Empty(t, tabs[0].Title)
}

func TestViewElements_Langcode(t *testing.T) {
	f := New(Deps{Storage: newMemStorage(item("1", "One", nil)), Views: &stubViews{}})
	els := f.ViewElements(context.Background(), nodeConfig(Settings{TabTitle: "title"}), []Reference{{TargetID: "1"}}, "de-at")
	require.Len(t, els, 1)
	assert.Equal(t, "de-AT", els[0].Vars["Lang"])
}

func TestNormalizeLangcode(t *testing.T) {
	tests := map[string]string{
		"":       "",
		"und":    "",
		"en":     "en",
		" fr ":   "fr",
		"pt_br":  "pt-BR",
		"!!bad!": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeLangcode(in), "input %q", in)
	}
}

func TestReferencesFrom(t *testing.T) {
	got := ReferencesFrom([]content.FieldItem{{TargetID: "1", TargetRevisionID: "9"}, {TargetID: "2"}})
	assert.Equal(t, []Reference{{TargetID: "1", TargetRevisionID: "9"}, {TargetID: "2"}}, got)
	assert.Empty(t, ReferencesFrom(nil))
}

const sqliteFixture = `
bundles:
  - entity_type: node
    bundle: item
    fields:
      - {name: title, type: string, base: true}
      - {name: field_body, type: text_long}
      - {name: field_paragraphs, type: entity_reference_revisions, target_type: paragraph}
  - entity_type: paragraph
    bundle: text
    fields:
      - {name: field_text, type: text_long}
entities:
  - {type: paragraph, id: "p1", bundle: text, fields: {field_text: [{value: "<p>First paragraph</p>"}]}}
  - {type: node, id: "10", bundle: item, fields: {title: [{value: "Ten"}], field_paragraphs: [{target_id: "p1"}]}}
  - {type: node, id: "11", bundle: item, fields: {title: [{value: "Eleven"}], field_body: [{value: "<em>body</em>"}]}}
`

func TestViewElements_RendersThroughSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := content.NewStore(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.Import(ctx, strings.NewReader(sqliteFixture))
	require.NoError(t, err)

	f := New(Deps{Storage: store, Definitions: store, Views: view.NewBuilder(store, view.Options{})})
	cfg := nodeConfig(Settings{TabTitle: "title", TabBody: "field_paragraphs", Style: StyleAccordion})
	els := f.ViewElements(ctx, cfg, []Reference{{TargetID: "10"}, {TargetID: "404"}}, "en")

	themes, err := theme.New()
	require.NoError(t, err)
	out, err := render.NewRenderer(themes, textformat.Default()).Render(ctx, els...)
	require.NoError(t, err)

	html := string(out.HTML)
	assert.Contains(t, html, `class="entity-ref-accordion-formatter"`)
	assert.Contains(t, html, `lang="en"`)
	assert.Contains(t, html, ">Ten</button>")
	assert.Contains(t, html, "<p>First paragraph</p>")
	assert.Equal(t, 1, strings.Count(html, "entity-ref-accordion-formatter__item\""))
	assert.Equal(t, []string{theme.LibraryAccordion}, out.Libraries)
}
