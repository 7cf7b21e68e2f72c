// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStoreLoad_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "node", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestStoreSaveLoad_RoundTripsFieldsAndDefinitions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.DefineField(ctx, "node", "tab_item", FieldDefinition{Name: "title", Type: FieldTypeString, Base: true}))
	require.NoError(t, store.DefineField(ctx, "node", "tab_item", FieldDefinition{Name: "field_body", Type: FieldTypeTextLong, Weight: 1}))

	e := &Entity{
		Type:   "node",
		ID:     "7",
		Bundle: "tab_item",
		Fields: map[string][]FieldItem{
			"title":      {{Value: "Shipping"}},
			"field_body": {{Value: "<p>Free</p>", Format: "basic_html"}},
		},
	}
	require.NoError(t, store.Save(ctx, e))
	assert.Equal(t, "1", e.RevisionID)

	got, err := store.Load(ctx, "node", "7")
	require.NoError(t, err)
	assert.Equal(t, "tab_item", got.Bundle)
	assert.Equal(t, "1", got.RevisionID)

	title, ok := got.FirstValue("title")
	require.True(t, ok)
	assert.Equal(t, "Shipping", title)
	assert.Equal(t, "basic_html", got.Get("field_body")[0].Format)

	def, ok := got.FieldDefinition("field_body")
	require.True(t, ok)
	assert.Equal(t, FieldTypeTextLong, def.Type)
	assert.True(t, def.Configurable())

	titleDef, ok := got.FieldDefinition("title")
	require.True(t, ok)
	assert.False(t, titleDef.Configurable())
}

func TestStoreSave_NewRevisionKeepsOldOne(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	e := &Entity{Type: "paragraph", ID: "p1", Bundle: "text", Fields: map[string][]FieldItem{
		"field_text": {{Value: "v1"}},
	}}
	require.NoError(t, store.Save(ctx, e))
	e.Fields["field_text"] = []FieldItem{{Value: "v2"}}
	require.NoError(t, store.Save(ctx, e))
	assert.Equal(t, "2", e.RevisionID)

	current, err := store.Load(ctx, "paragraph", "p1")
	require.NoError(t, err)
	v, _ := current.FirstValue("field_text")
	assert.Equal(t, "v2", v)

	old, err := store.LoadRevision(ctx, "paragraph", "p1", "1")
	require.NoError(t, err)
	v, _ = old.FirstValue("field_text")
	assert.Equal(t, "v1", v)

	_, err = store.LoadRevision(ctx, "paragraph", "p1", "9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFieldDefinitions_OrderAndUnknownBundle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.DefineField(ctx, "node", "page", FieldDefinition{Name: "field_b", Type: FieldTypeString, Weight: 2}))
	require.NoError(t, store.DefineField(ctx, "node", "page", FieldDefinition{Name: "field_a", Type: FieldTypeString, Weight: 1}))

	defs, err := store.FieldDefinitions(ctx, "node", "page")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "field_a", defs[0].Name)
	assert.Equal(t, "field_b", defs[1].Name)

	none, err := store.FieldDefinitions(ctx, "node", "nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreImport_Fixture(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	fixture := `
bundles:
  - entity_type: node
    bundle: faq
    fields:
      - {name: title, type: string, base: true}
      - {name: field_answer, type: text_long}
      - {name: field_parts, type: entity_reference_revisions, target_type: paragraph}
entities:
  - type: node
    id: "1"
    bundle: faq
    fields:
      title: [{value: "Question"}]
      field_answer: [{value: "Answer", format: plain_text}]
`
	empty, err := store.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	res, err := store.Import(ctx, strings.NewReader(fixture))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Fields: 3, Entities: 1}, res)

	e, err := store.Load(ctx, "node", "1")
	require.NoError(t, err)
	def, ok := e.FieldDefinition("field_parts")
	require.True(t, ok)
	assert.Equal(t, "paragraph", def.TargetType)
	assert.True(t, def.Type.IsReference())

	n, err := store.CountEntities(ctx, "node")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	empty, err = store.Empty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestStoreImport_RejectsUnknownKeys(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Import(context.Background(), strings.NewReader("bundels: []\n"))
	assert.Error(t, err)
}

func TestFieldTypeClassification(t *testing.T) {
	assert.True(t, FieldTypeTextLong.IsRichText())
	assert.True(t, FieldTypeTextWithSummary.IsRichText())
	assert.False(t, FieldTypeString.IsRichText())
	assert.True(t, FieldTypeEntityReferenceRevisions.IsReference())
	assert.False(t, FieldTypeTextLong.IsReference())
}

func TestStoreGeneration_GrowsWithWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "content.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gen, err := store.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, store.DefineField(ctx, "node", "item", FieldDefinition{Name: "title", Type: FieldTypeString, Base: true}))
	require.NoError(t, store.Save(ctx, &Entity{Type: "node", ID: "1", Bundle: "item"}))
	gen, err = store.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)

	require.Error(t, store.Save(ctx, &Entity{Type: "node"}))
	gen, err = store.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen, "rejected writes leave the counter alone")

	other, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })
	require.NoError(t, other.Save(ctx, &Entity{Type: "node", ID: "2", Bundle: "item"}))

	gen, err = store.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), gen, "writes through another handle are visible")
}
