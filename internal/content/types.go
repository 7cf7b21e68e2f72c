// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package content holds the entity model the formatter renders: entities,
// their bundles, field definitions and field values, plus a SQLite store.
package content

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entity or revision does not exist.
var ErrNotFound = errors.New("content: entity not found")

// FieldType names the storage type of a field.
type FieldType string

const (
	FieldTypeString                   FieldType = "string"
	FieldTypeText                     FieldType = "text"
	FieldTypeTextLong                 FieldType = "text_long"
	FieldTypeTextWithSummary          FieldType = "text_with_summary"
	FieldTypeEntityReference          FieldType = "entity_reference"
	FieldTypeEntityReferenceRevisions FieldType = "entity_reference_revisions"
	FieldTypeInteger                  FieldType = "integer"
	FieldTypeBoolean                  FieldType = "boolean"
)

// String returns the string representation of FieldType.
func (t FieldType) String() string {
	return string(t)
}

// IsRichText reports whether values of this type carry formatted text.
func (t FieldType) IsRichText() bool {
	switch t {
	case FieldTypeText, FieldTypeTextLong, FieldTypeTextWithSummary:
		return true
	}
	return false
}

// IsReference reports whether values of this type point at other entities.
func (t FieldType) IsReference() bool {
	return t == FieldTypeEntityReference || t == FieldTypeEntityReferenceRevisions
}

// FieldDefinition describes one field attached to an entity type bundle.
type FieldDefinition struct {
	Name       string    `json:"name" yaml:"name"`
	Label      string    `json:"label,omitempty" yaml:"label,omitempty"`
	Type       FieldType `json:"type" yaml:"type"`
	TargetType string    `json:"target_type,omitempty" yaml:"target_type,omitempty"` // reference fields only
	Computed   bool      `json:"computed,omitempty" yaml:"computed,omitempty"`
	Base       bool      `json:"base,omitempty" yaml:"base,omitempty"` // defined by the entity type, not configured per bundle
	Weight     int       `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Configurable reports whether a site builder added this field to the bundle.
func (d FieldDefinition) Configurable() bool {
	return !d.Computed && !d.Base
}

// FieldItem is a single value of a field. Which members are used depends on
// the field type.
type FieldItem struct {
	Value            string `json:"value,omitempty" yaml:"value,omitempty"`
	Format           string `json:"format,omitempty" yaml:"format,omitempty"`
	TargetID         string `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	TargetRevisionID string `json:"target_revision_id,omitempty" yaml:"target_revision_id,omitempty"`
}

// Entity is a loaded content entity.
type Entity struct {
	Type        string                 `json:"type" yaml:"type"`
	ID          string                 `json:"id" yaml:"id"`
	RevisionID  string                 `json:"revision_id,omitempty" yaml:"revision_id,omitempty"`
	Bundle      string                 `json:"bundle" yaml:"bundle"`
	Langcode    string                 `json:"langcode,omitempty" yaml:"langcode,omitempty"`
	Fields      map[string][]FieldItem `json:"fields,omitempty" yaml:"fields,omitempty"`
	Definitions []FieldDefinition      `json:"-" yaml:"-"`
}

// Get returns the items of the named field, or nil.
func (e *Entity) Get(field string) []FieldItem {
	if e == nil || e.Fields == nil {
		return nil
	}
	return e.Fields[field]
}

// IsEmpty reports whether the named field has no items.
func (e *Entity) IsEmpty(field string) bool {
	return len(e.Get(field)) == 0
}

// FirstValue returns the value of the first item of the named field.
func (e *Entity) FirstValue(field string) (string, bool) {
	items := e.Get(field)
	if len(items) == 0 {
		return "", false
	}
	return items[0].Value, true
}

// FieldDefinition looks up the definition of the named field.
func (e *Entity) FieldDefinition(field string) (FieldDefinition, bool) {
	if e == nil {
		return FieldDefinition{}, false
	}
	for _, d := range e.Definitions {
		if d.Name == field {
			return d, true
		}
	}
	return FieldDefinition{}, false
}

// Storage loads entities of any type.
type Storage interface {
	// Load returns the current revision of the entity, or ErrNotFound.
	Load(ctx context.Context, entityType, id string) (*Entity, error)
	// LoadRevision returns a specific revision, or ErrNotFound.
	LoadRevision(ctx context.Context, entityType, id, revisionID string) (*Entity, error)
}

// ChangeTracker reports a counter that grows whenever stored content changes.
type ChangeTracker interface {
	Generation(ctx context.Context) (int64, error)
}

// FieldDefinitionProvider introspects the fields of an entity type bundle.
type FieldDefinitionProvider interface {
	FieldDefinitions(ctx context.Context, entityType, bundle string) ([]FieldDefinition, error)
}
