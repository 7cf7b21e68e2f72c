// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Content fields
	FieldEntityType = "entity_type"
	FieldEntityID   = "entity_id"
	FieldBundle     = "bundle"
	FieldField      = "field"
	FieldViewMode   = "view_mode"
	FieldTargetID   = "target_id"
	FieldStyle      = "style"
	FieldLangcode   = "langcode"

	// Path / URL fields
	FieldPath   = "path"
	FieldMethod = "method"
	FieldStatus = "status"
)
