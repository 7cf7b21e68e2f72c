// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package formatter

import (
	"context"
	"fmt"
	"strings"

	xglog "github.com/ManuGH/reftabs/internal/log"
)

// Form element names.
const (
	ElementEntityTypeID = "entity_type_id"
	ElementTabTitle     = "tab_title"
	ElementTabBody      = "tab_body"
	ElementStyle        = "style"
)

// Option is one choice of a select or radios element.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FormElement is a single settings form control.
type FormElement struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // value | select | radios
	Title    string   `json:"title,omitempty"`
	Options  []Option `json:"options,omitempty"`
	Default  string   `json:"default,omitempty"`
	Value    string   `json:"value,omitempty"`
	Required bool     `json:"required,omitempty"`
}

// Form is the settings form of one display.
type Form struct {
	Elements []FormElement `json:"elements"`
}

// Element returns the named element.
func (f Form) Element(name string) (FormElement, bool) {
	for _, el := range f.Elements {
		if el.Name == name {
			return el, true
		}
	}
	return FormElement{}, false
}

// Has reports whether value is one of the element's options.
func (el FormElement) Has(value string) bool {
	for _, o := range el.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// FieldOptions lists the configurable fields of the target bundles, merged in
// bundle order without duplicates. It returns nil when no entity type or no
// bundle is configured.
func (f *Formatter) FieldOptions(ctx context.Context, fs FieldSettings) ([]string, error) {
	if fs.TargetType == "" || len(fs.TargetBundles) == 0 {
		return nil, nil
	}

	var names []string
	seen := make(map[string]bool)
	for _, bundle := range fs.TargetBundles {
		defs, err := f.defs.FieldDefinitions(ctx, fs.TargetType, bundle)
		if err != nil {
			return nil, fmt.Errorf("field definitions %s.%s: %w", fs.TargetType, bundle, err)
		}
		for _, d := range defs {
			if !d.Configurable() || seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			names = append(names, d.Name)
		}
	}
	return names, nil
}

// SettingsForm builds the settings form for a display. Title options are the
// configurable fields prefixed with the conventional title field; body options
// are the configurable fields. Both are empty when nothing is configured.
func (f *Formatter) SettingsForm(ctx context.Context, fs FieldSettings, current Settings) (Form, error) {
	fields, err := f.FieldOptions(ctx, fs)
	if err != nil {
		return Form{}, err
	}

	var titleOptions, bodyOptions []Option
	if len(fields) > 0 {
		titleOptions = append(titleOptions, Option{Value: TitleField, Label: TitleField})
		for _, name := range fields {
			if name == TitleField {
				continue
			}
			titleOptions = append(titleOptions, Option{Value: name, Label: name})
		}
		for _, name := range fields {
			bodyOptions = append(bodyOptions, Option{Value: name, Label: name})
		}
	} else {
		f.logger.Debug().
			Str(xglog.FieldEvent, "settings.no_fields").
			Str(xglog.FieldEntityType, fs.TargetType).
			Str(xglog.FieldBundle, strings.Join(fs.TargetBundles, ",")).
			Msg("no configurable fields for target bundles")
	}

	titleDefault := current.TabTitle
	if titleDefault == "" {
		titleDefault = TitleField
	}

	styleOptions := make([]Option, 0, len(Styles()))
	for _, s := range Styles() {
		styleOptions = append(styleOptions, Option{Value: string(s), Label: s.Label()})
	}

	return Form{Elements: []FormElement{
		{
			Name:  ElementEntityTypeID,
			Type:  "value",
			Value: fs.TargetType,
		},
		{
			Name:     ElementTabTitle,
			Type:     "select",
			Title:    "Select the tab title field.",
			Options:  titleOptions,
			Default:  titleDefault,
			Required: true,
		},
		{
			Name:    ElementTabBody,
			Type:    "select",
			Title:   "Select the tab body field.",
			Options: bodyOptions,
			Default: current.TabBody,
		},
		{
			Name:    ElementStyle,
			Type:    "radios",
			Title:   "Display Style",
			Options: styleOptions,
			Default: string(current.EffectiveStyle()),
		},
	}}, nil
}

// Validate checks settings against the options the form offers.
func (f *Formatter) Validate(ctx context.Context, fs FieldSettings, s Settings) error {
	form, err := f.SettingsForm(ctx, fs, s)
	if err != nil {
		return err
	}

	var problems []string
	title, _ := form.Element(ElementTabTitle)
	switch {
	case s.TabTitle == "":
		problems = append(problems, "tab_title is required")
	case !title.Has(s.TabTitle):
		problems = append(problems, fmt.Sprintf("tab_title %q is not an available field", s.TabTitle))
	}
	body, _ := form.Element(ElementTabBody)
	if s.TabBody != "" && !body.Has(s.TabBody) {
		problems = append(problems, fmt.Sprintf("tab_body %q is not an available field", s.TabBody))
	}
	if s.Style != "" && !s.Style.Valid() {
		problems = append(problems, fmt.Sprintf("style %q is not one of tab, accordion", s.Style))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}
