package storage

import (
	"fmt"
	"time"

	"github.com/matsen/publications/internal/reference"
)

// ImportBatch records one saved submission.
type ImportBatch struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Digest    string    `json:"digest"` // BLAKE3 of the submitted text
	Accepted  int       `json:"accepted"`
	Rejected  int       `json:"rejected"`
}

// ensureImportsSchema ensures the imports schema exists (idempotent via CREATE IF NOT EXISTS).
func (d *DB) ensureImportsSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS imports (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			digest TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			rejected INTEGER NOT NULL
		);
	`
	_, err := d.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating imports schema: %w", err)
	}
	return nil
}

// InsertBatch records batch and inserts pubs in one transaction. Any failure,
// including a citekey that is already stored, leaves the database unchanged.
func (d *DB) InsertBatch(batch ImportBatch, pubs []reference.Publication) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("starting batch %s: %w", batch.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO imports (id, created_at, digest, accepted, rejected)
		VALUES (?, ?, ?, ?, ?)`,
		batch.ID, batch.CreatedAt.UTC().Format(time.RFC3339), batch.Digest, batch.Accepted, batch.Rejected)
	if err != nil {
		return fmt.Errorf("inserting batch %s: %w", batch.ID, err)
	}

	for _, pub := range pubs {
		if err := insertPublication(tx, pub); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch %s: %w", batch.ID, err)
	}
	return nil
}

// ListImports returns all recorded batches, newest first.
func (d *DB) ListImports() ([]ImportBatch, error) {
	rows, err := d.db.Query(`
		SELECT id, created_at, digest, accepted, rejected
		FROM imports
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing imports: %w", err)
	}
	defer rows.Close()

	var batches []ImportBatch
	for rows.Next() {
		var b ImportBatch
		var createdAt string
		if err := rows.Scan(&b.ID, &createdAt, &b.Digest, &b.Accepted, &b.Rejected); err != nil {
			return nil, fmt.Errorf("scanning import: %w", err)
		}
		b.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", b.ID, err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// ListByImport returns the publications saved by one batch.
func (d *DB) ListByImport(importID string) ([]reference.Publication, error) {
	rows, err := d.db.Query(`SELECT `+selectPubFields+` FROM publications WHERE import_id = ?`+orderPubs, importID)
	if err != nil {
		return nil, fmt.Errorf("listing import %s: %w", importID, err)
	}
	defer rows.Close()

	return scanPublications(rows)
}
