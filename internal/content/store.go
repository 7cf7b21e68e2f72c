// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Store provides SQLite persistence for entities and field definitions.
// It implements Storage and FieldDefinitionProvider.
type Store struct {
	db *sql.DB
}

var (
	_ Storage                 = (*Store)(nil)
	_ FieldDefinitionProvider = (*Store)(nil)
	_ ChangeTracker           = (*Store)(nil)
)

// NewStore opens (or creates) the database at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	// busy_timeout avoids "database locked" errors under concurrent readers
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS field_definitions (
		entity_type TEXT NOT NULL,
		bundle TEXT NOT NULL,
		name TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		target_type TEXT NOT NULL DEFAULT '',
		computed INTEGER NOT NULL DEFAULT 0,
		base INTEGER NOT NULL DEFAULT 0,
		weight INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (entity_type, bundle, name)
	);

	CREATE TABLE IF NOT EXISTS entities (
		entity_type TEXT NOT NULL,
		id TEXT NOT NULL,
		bundle TEXT NOT NULL,
		langcode TEXT NOT NULL DEFAULT '',
		current_revision TEXT NOT NULL,
		changed TEXT NOT NULL,
		PRIMARY KEY (entity_type, id)
	);

	CREATE TABLE IF NOT EXISTS entity_revisions (
		entity_type TEXT NOT NULL,
		id TEXT NOT NULL,
		revision_id TEXT NOT NULL,
		created TEXT NOT NULL,
		PRIMARY KEY (entity_type, id, revision_id)
	);

	CREATE TABLE IF NOT EXISTS field_items (
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		revision_id TEXT NOT NULL,
		field TEXT NOT NULL,
		delta INTEGER NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL DEFAULT '',
		target_id TEXT NOT NULL DEFAULT '',
		target_revision_id TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (entity_type, entity_id, revision_id, field, delta)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_bundle ON entities(entity_type, bundle);

	CREATE TABLE IF NOT EXISTS content_generation (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		value INTEGER NOT NULL
	);
	INSERT OR IGNORE INTO content_generation (id, value) VALUES (1, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// DefineField inserts or replaces a field definition on a bundle.
func (s *Store) DefineField(ctx context.Context, entityType, bundle string, def FieldDefinition) error {
	if entityType == "" || bundle == "" || def.Name == "" {
		return fmt.Errorf("define field: entity type, bundle and name are required")
	}
	query := `
	INSERT INTO field_definitions (entity_type, bundle, name, label, type, target_type, computed, base, weight)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(entity_type, bundle, name) DO UPDATE SET
		label = excluded.label,
		type = excluded.type,
		target_type = excluded.target_type,
		computed = excluded.computed,
		base = excluded.base,
		weight = excluded.weight
	`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query,
		entityType, bundle, def.Name, def.Label, string(def.Type), def.TargetType,
		boolToInt(def.Computed), boolToInt(def.Base), def.Weight,
	); err != nil {
		return fmt.Errorf("define field %s.%s.%s: %w", entityType, bundle, def.Name, err)
	}
	if err := bumpGeneration(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FieldDefinitions returns all field definitions of a bundle ordered by weight,
// then by definition order. Unknown bundles yield an empty list.
func (s *Store) FieldDefinitions(ctx context.Context, entityType, bundle string) ([]FieldDefinition, error) {
	query := `
	SELECT name, label, type, target_type, computed, base, weight
	FROM field_definitions
	WHERE entity_type = ? AND bundle = ?
	ORDER BY weight, rowid
	`
	rows, err := s.db.QueryContext(ctx, query, entityType, bundle)
	if err != nil {
		return nil, fmt.Errorf("query field definitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var defs []FieldDefinition
	for rows.Next() {
		var d FieldDefinition
		var typ string
		var computed, base int
		if err := rows.Scan(&d.Name, &d.Label, &typ, &d.TargetType, &computed, &base, &d.Weight); err != nil {
			return nil, err
		}
		d.Type = FieldType(typ)
		d.Computed = computed != 0
		d.Base = base != 0
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// Save writes a new revision of the entity and makes it current.
// The assigned revision ID is stored back on e.
func (s *Store) Save(ctx context.Context, e *Entity) error {
	if e == nil || e.Type == "" || e.ID == "" || e.Bundle == "" {
		return fmt.Errorf("save entity: type, id and bundle are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(revision_id AS INTEGER)), 0) + 1 FROM entity_revisions WHERE entity_type = ? AND id = ?`,
		e.Type, e.ID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("next revision: %w", err)
	}
	revisionID := strconv.FormatInt(next, 10)
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entity_revisions (entity_type, id, revision_id, created) VALUES (?, ?, ?, ?)`,
		e.Type, e.ID, revisionID, now,
	); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO entities (entity_type, id, bundle, langcode, current_revision, changed)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(entity_type, id) DO UPDATE SET
		bundle = excluded.bundle,
		langcode = excluded.langcode,
		current_revision = excluded.current_revision,
		changed = excluded.changed
	`, e.Type, e.ID, e.Bundle, e.Langcode, revisionID, now); err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO field_items (entity_type, entity_id, revision_id, field, delta, value, format, target_id, target_revision_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare field items: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for field, items := range e.Fields {
		for delta, item := range items {
			if _, err := stmt.ExecContext(ctx,
				e.Type, e.ID, revisionID, field, delta,
				item.Value, item.Format, item.TargetID, item.TargetRevisionID,
			); err != nil {
				return fmt.Errorf("insert %s[%d]: %w", field, delta, err)
			}
		}
	}

	if err := bumpGeneration(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	e.RevisionID = revisionID
	return nil
}

// Load returns the current revision of an entity.
func (s *Store) Load(ctx context.Context, entityType, id string) (*Entity, error) {
	var revisionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT current_revision FROM entities WHERE entity_type = ? AND id = ?`,
		entityType, id,
	).Scan(&revisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s/%s: %w", entityType, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", entityType, id, err)
	}
	return s.LoadRevision(ctx, entityType, id, revisionID)
}

// LoadRevision returns a specific revision of an entity. An empty revisionID
// loads the current revision.
func (s *Store) LoadRevision(ctx context.Context, entityType, id, revisionID string) (*Entity, error) {
	if revisionID == "" {
		return s.Load(ctx, entityType, id)
	}

	e := &Entity{Type: entityType, ID: id, RevisionID: revisionID}
	err := s.db.QueryRowContext(ctx, `
	SELECT e.bundle, e.langcode
	FROM entities e
	JOIN entity_revisions r ON r.entity_type = e.entity_type AND r.id = e.id
	WHERE e.entity_type = ? AND e.id = ? AND r.revision_id = ?
	`, entityType, id, revisionID).Scan(&e.Bundle, &e.Langcode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s/%s@%s: %w", entityType, id, revisionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s@%s: %w", entityType, id, revisionID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT field, value, format, target_id, target_revision_id
	FROM field_items
	WHERE entity_type = ? AND entity_id = ? AND revision_id = ?
	ORDER BY field, delta
	`, entityType, id, revisionID)
	if err != nil {
		return nil, fmt.Errorf("query field items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	e.Fields = make(map[string][]FieldItem)
	for rows.Next() {
		var field string
		var item FieldItem
		if err := rows.Scan(&field, &item.Value, &item.Format, &item.TargetID, &item.TargetRevisionID); err != nil {
			return nil, err
		}
		e.Fields[field] = append(e.Fields[field], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	defs, err := s.FieldDefinitions(ctx, entityType, e.Bundle)
	if err != nil {
		return nil, err
	}
	e.Definitions = defs
	return e, nil
}

// CountEntities returns the number of stored entities of a type.
func (s *Store) CountEntities(ctx context.Context, entityType string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE entity_type = ?`, entityType,
	).Scan(&n)
	return n, err
}

// Empty reports whether the store holds no entity at all.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM entities LIMIT 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return false, err
}

// Generation returns a counter that grows with every entity save and field
// definition change, including writes from other processes sharing the file.
func (s *Store) Generation(ctx context.Context) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM content_generation WHERE id = 1`).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("read content generation: %w", err)
	}
	return gen, nil
}

func bumpGeneration(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE content_generation SET value = value + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump content generation: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
