package storage

import (
	"fmt"
	"strings"

	"github.com/matsen/publications/internal/pubtype"
)

// ensureTypesSchema ensures the types schema exists (idempotent via CREATE IF NOT EXISTS).
func (d *DB) ensureTypesSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS types (
			id INTEGER PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			bibtex_types TEXT NOT NULL,
			required TEXT NOT NULL DEFAULT '',
			optional TEXT NOT NULL DEFAULT '',
			hidden INTEGER NOT NULL DEFAULT 0
		);
	`
	_, err := d.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating types schema: %w", err)
	}
	return nil
}

// SaveTypes replaces the stored registry. Order is preserved.
func (d *DB) SaveTypes(types []pubtype.KnownType) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("starting types update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM types"); err != nil {
		return fmt.Errorf("clearing types table: %w", err)
	}

	for i, t := range types {
		_, err := tx.Exec(`
			INSERT INTO types (id, position, name, description, bibtex_types, required, optional, hidden)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, i, t.Name, t.Description,
			strings.Join(t.BibTeXTypes, ", "),
			strings.Join(t.Required, ", "),
			strings.Join(t.Optional, ", "),
			t.Hidden,
		)
		if err != nil {
			return fmt.Errorf("inserting type %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing types: %w", err)
	}
	return nil
}

// ListTypes returns the stored registry in order.
func (d *DB) ListTypes() ([]pubtype.KnownType, error) {
	rows, err := d.db.Query(`
		SELECT id, name, description, bibtex_types, required, optional, hidden
		FROM types
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("listing types: %w", err)
	}
	defer rows.Close()

	var types []pubtype.KnownType
	for rows.Next() {
		var t pubtype.KnownType
		var bibtexTypes, required, optional string
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &bibtexTypes, &required, &optional, &t.Hidden); err != nil {
			return nil, fmt.Errorf("scanning type: %w", err)
		}

		t.BibTeXTypes, err = pubtype.ParseTypeList(bibtexTypes)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", t.Name, err)
		}
		t.Required = splitList(required)
		t.Optional = splitList(optional)
		types = append(types, t)
	}
	return types, rows.Err()
}

// Registry loads the stored types as a registry, falling back to the
// built-in defaults when none are stored.
func (d *DB) Registry() (*pubtype.Registry, error) {
	types, err := d.ListTypes()
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		types = pubtype.Defaults()
	}
	return pubtype.NewRegistry(types), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
