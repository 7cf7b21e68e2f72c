// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document accepted by Import.
type Fixture struct {
	Bundles  []BundleFixture `yaml:"bundles"`
	Entities []Entity        `yaml:"entities"`
}

// BundleFixture declares the fields of one entity type bundle.
type BundleFixture struct {
	EntityType string            `yaml:"entity_type"`
	Bundle     string            `yaml:"bundle"`
	Fields     []FieldDefinition `yaml:"fields"`
}

// ImportResult reports what an import wrote.
type ImportResult struct {
	Fields   int
	Entities int
}

// Import reads a YAML fixture and writes its field definitions and entities.
// Unknown keys are rejected.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		return res, fmt.Errorf("decode fixture: %w", err)
	}

	for _, b := range fx.Bundles {
		for i, def := range b.Fields {
			if def.Weight == 0 {
				def.Weight = i
			}
			if err := s.DefineField(ctx, b.EntityType, b.Bundle, def); err != nil {
				return res, err
			}
			res.Fields++
		}
	}

	for i := range fx.Entities {
		e := fx.Entities[i]
		if err := s.Save(ctx, &e); err != nil {
			return res, fmt.Errorf("entity %d (%s/%s): %w", i, e.Type, e.ID, err)
		}
		res.Entities++
	}

	return res, nil
}
