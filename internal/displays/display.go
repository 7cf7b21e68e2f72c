// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package displays persists which formatter settings apply to a field of an
// entity bundle in a view mode.
package displays

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ManuGH/reftabs/internal/formatter"
)

// DefaultViewMode is used when a display names no view mode, and as the
// fallback when a view mode has no display of its own.
const DefaultViewMode = "default"

var (
	// ErrNotFound is returned when no display is configured for a key.
	ErrNotFound = errors.New("displays: display not found")
	// ErrInvalid is returned for displays missing identifying fields.
	ErrInvalid = errors.New("displays: invalid display")
)

// Key identifies a display.
type Key struct {
	EntityType string `json:"entity_type"`
	Bundle     string `json:"bundle"`
	Field      string `json:"field"`
	ViewMode   string `json:"view_mode"`
}

// String renders the key as "type.bundle.field.mode".
func (k Key) String() string {
	return strings.Join([]string{k.EntityType, k.Bundle, k.Field, k.ViewMode}, ".")
}

// Display is the formatter configuration of one field in one view mode.
type Display struct {
	EntityType string                  `json:"entity_type" yaml:"entity_type"`
	Bundle     string                  `json:"bundle" yaml:"bundle"`
	Field      string                  `json:"field" yaml:"field"`
	ViewMode   string                  `json:"view_mode" yaml:"view_mode"`
	Formatter  string                  `json:"formatter" yaml:"formatter"`
	Target     formatter.FieldSettings `json:"target" yaml:"target"`
	Settings   formatter.Settings      `json:"settings" yaml:"settings"`
}

// Key returns the display's key.
func (d Display) Key() Key {
	return Key{EntityType: d.EntityType, Bundle: d.Bundle, Field: d.Field, ViewMode: d.ViewMode}
}

// Normalize fills defaults: the default view mode, the tab formatter and the tab style.
func (d Display) Normalize() Display {
	if d.ViewMode == "" {
		d.ViewMode = DefaultViewMode
	}
	if d.Formatter == "" {
		d.Formatter = formatter.ID
	}
	if d.Settings.Style == "" {
		d.Settings.Style = formatter.StyleTab
	}
	return d
}

// Check reports structural problems; settings are validated by the formatter.
func (d Display) Check() error {
	var missing []string
	for name, v := range map[string]string{
		"entity_type":        d.EntityType,
		"bundle":             d.Bundle,
		"field":              d.Field,
		"target.target_type": d.Target.TargetType,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s missing %s", ErrInvalid, d.Key(), strings.Join(missing, ", "))
	}
	if d.Formatter != "" && d.Formatter != formatter.ID {
		return fmt.Errorf("%w: %s uses unknown formatter %q", ErrInvalid, d.Key(), d.Formatter)
	}
	return nil
}

// Fingerprint is a short stable hash of the display, used in cache keys.
func (d Display) Fingerprint() string {
	data, _ := json.Marshal(d.Normalize())
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}
