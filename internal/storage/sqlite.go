package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matsen/publications/internal/reference"
	"golang.org/x/text/cases"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectPubFields contains the standard field list for SELECT queries.
const selectPubFields = `id, type_id, citekey, title,
	authors, authors_list_json, authors_simple_json,
	year, month,
	journal, book_title, publisher, institution,
	volume, number, edition, location, series, pages,
	note, keywords, url, urldate,
	code, doi, abstract, isbn, issn,
	external, import_id`

// orderPubs is the library's display order: newest first.
const orderPubs = ` ORDER BY year DESC, month DESC, id DESC`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	d := &DB{db: db}
	if err := d.ensureTitleFold(); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.ensureTypesSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.ensureImportsSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the publications schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS publications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type_id INTEGER NOT NULL,
			citekey TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			title_fold TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL,
			authors_list_json TEXT NOT NULL,
			authors_simple_json TEXT,
			year INTEGER,
			month INTEGER NOT NULL DEFAULT 0,
			journal TEXT NOT NULL DEFAULT '',
			book_title TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			institution TEXT NOT NULL DEFAULT '',
			volume INTEGER,
			number INTEGER,
			edition TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			series TEXT NOT NULL DEFAULT '',
			pages TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			urldate TEXT,
			code TEXT NOT NULL DEFAULT '',
			doi TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			isbn TEXT NOT NULL DEFAULT '',
			issn TEXT NOT NULL DEFAULT '',
			external INTEGER NOT NULL DEFAULT 0,
			import_id TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_publications_import ON publications(import_id) WHERE import_id IS NOT NULL;

		-- Full-text search; rowid mirrors publications.id
		CREATE VIRTUAL TABLE IF NOT EXISTS publications_fts USING fts5(
			citekey,
			title,
			authors_text,
			keywords
		);
	`

	_, err := db.Exec(schema)
	return err
}

// ensureTitleFold adds and backfills title_fold on databases created
// before the column existed, then indexes it.
func (d *DB) ensureTitleFold() error {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('publications') WHERE name = 'title_fold'`,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspecting publications schema: %w", err)
	}
	if n == 0 {
		if _, err := d.db.Exec(`ALTER TABLE publications ADD COLUMN title_fold TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("adding title_fold: %w", err)
		}
		if err := d.backfillTitleFold(); err != nil {
			return err
		}
	}

	// Title+year uniqueness checks use the Unicode case fold
	_, err = d.db.Exec(`CREATE INDEX IF NOT EXISTS idx_publications_title_fold ON publications(title_fold, year)`)
	if err != nil {
		return fmt.Errorf("indexing title_fold: %w", err)
	}
	return nil
}

func (d *DB) backfillTitleFold() error {
	rows, err := d.db.Query(`SELECT id, title FROM publications`)
	if err != nil {
		return fmt.Errorf("reading titles: %w", err)
	}
	folded := map[int64]string{}
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			rows.Close()
			return fmt.Errorf("scanning title: %w", err)
		}
		folded[id] = foldTitle(title)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading titles: %w", err)
	}

	for id, f := range folded {
		if _, err := d.db.Exec(`UPDATE publications SET title_fold = ? WHERE id = ?`, f, id); err != nil {
			return fmt.Errorf("backfilling title_fold for %d: %w", id, err)
		}
	}
	return nil
}

// foldTitle is the key for case-insensitive title comparison. SQLite's
// NOCASE only folds ASCII.
func foldTitle(title string) string {
	return cases.Fold().String(title)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// insertPublication writes one publication and its FTS row.
func insertPublication(ex execer, pub reference.Publication) error {
	listJSON, err := json.Marshal(pub.AuthorsList)
	if err != nil {
		return fmt.Errorf("marshaling authors for %s: %w", pub.Citekey, err)
	}
	var simpleJSON []byte
	if len(pub.AuthorsSimple) > 0 {
		simpleJSON, err = json.Marshal(pub.AuthorsSimple)
		if err != nil {
			return fmt.Errorf("marshaling simple authors for %s: %w", pub.Citekey, err)
		}
	}

	var id interface{}
	if pub.ID > 0 {
		id = pub.ID
	}

	res, err := ex.Exec(`
		INSERT INTO publications (
			id, type_id, citekey, title, title_fold,
			authors, authors_list_json, authors_simple_json,
			year, month,
			journal, book_title, publisher, institution,
			volume, number, edition, location, series, pages,
			note, keywords, url, urldate,
			code, doi, abstract, isbn, issn,
			external, import_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, pub.TypeID, pub.Citekey, pub.Title, foldTitle(pub.Title),
		pub.Authors, string(listJSON), nullableString(simpleJSON),
		nullableInt(pub.Year), pub.Month,
		pub.Journal, pub.BookTitle, pub.Publisher, pub.Institution,
		nullableInt(pub.Volume), nullableInt(pub.Number), pub.Edition, pub.Location, pub.Series, pub.Pages,
		pub.Note, pub.Keywords, pub.URL, nullableStringPtr(pub.URLDate),
		pub.Code, pub.DOI, pub.Abstract, pub.ISBN, pub.ISSN,
		pub.External, nullableStringValue(pub.ImportID),
	)
	if err != nil {
		return fmt.Errorf("inserting publication %s: %w", pub.Citekey, err)
	}

	rowID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading id for %s: %w", pub.Citekey, err)
	}

	_, err = ex.Exec(`
		INSERT INTO publications_fts (rowid, citekey, title, authors_text, keywords)
		VALUES (?, ?, ?, ?, ?)`,
		rowID, pub.Citekey, pub.Title, formatAuthorsText(pub), pub.Keywords)
	if err != nil {
		return fmt.Errorf("inserting fts for %s: %w", pub.Citekey, err)
	}
	return nil
}

// formatAuthorsText creates a searchable text representation of authors.
// Folded names are included so "muller" finds "Müller".
func formatAuthorsText(pub reference.Publication) string {
	parts := append([]string{}, pub.AuthorsList...)
	parts = append(parts, pub.AuthorsSimple...)
	return strings.Join(parts, ", ")
}

// Restore clears the database and inserts pubs, keeping their IDs.
func (d *DB) Restore(pubs []reference.Publication) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting restore: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM publications"); err != nil {
		return 0, fmt.Errorf("clearing publications table: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM publications_fts"); err != nil {
		return 0, fmt.Errorf("clearing publications_fts table: %w", err)
	}

	for _, pub := range pubs {
		if err := insertPublication(tx, pub); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing restore: %w", err)
	}
	return len(pubs), nil
}

// RebuildFromJSONL clears the database and rebuilds it from a JSONL file.
func (d *DB) RebuildFromJSONL(jsonlPath string) (int, error) {
	pubs, err := ReadAll(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}
	return d.Restore(pubs)
}

// TitleYearExists reports whether a publication with the given title
// (case-insensitive) and year is stored. A nil year matches only
// publications without a year.
func (d *DB) TitleYearExists(title string, year *int) (bool, error) {
	var exists bool
	err := d.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM publications
			WHERE title_fold = ? AND year IS ?
		)`, foldTitle(title), nullableInt(year)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking title %q: %w", title, err)
	}
	return exists, nil
}

// CountCitekeyPrefix counts publications whose citekey starts with prefix.
// The comparison is case-sensitive.
func (d *DB) CountCitekeyPrefix(prefix string) (int, error) {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM publications
		WHERE substr(citekey, 1, length(?)) = ?`, prefix, prefix).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting citekey prefix %q: %w", prefix, err)
	}
	return count, nil
}

// CitekeyExists reports whether citekey is stored exactly.
func (d *DB) CitekeyExists(citekey string) (bool, error) {
	var exists bool
	err := d.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM publications WHERE citekey = ?)`, citekey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking citekey %q: %w", citekey, err)
	}
	return exists, nil
}

// GetByCitekey retrieves a publication by citekey. It returns nil if absent.
func (d *DB) GetByCitekey(citekey string) (*reference.Publication, error) {
	row := d.db.QueryRow(`SELECT `+selectPubFields+` FROM publications WHERE citekey = ?`, citekey)
	return scanPublication(row)
}

// Search performs a full-text search over citekey, title, authors and keywords.
// A limit of zero or less returns every match.
func (d *DB) Search(query string, limit int) ([]reference.Publication, error) {
	ftsQuery := prepareFTSQuery(query)
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}

	rows, err := d.db.Query(`
		SELECT `+selectPubFields+`
		FROM publications
		WHERE id IN (SELECT rowid FROM publications_fts WHERE publications_fts MATCH ?)`+
		orderPubs+`
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanPublications(rows)
}

// ListAll returns all publications newest first, optionally limited.
func (d *DB) ListAll(limit int) ([]reference.Publication, error) {
	query := `SELECT ` + selectPubFields + ` FROM publications` + orderPubs
	var args []interface{}

	if limit > 0 {
		query += " LIMIT ?"
		args = []interface{}{limit}
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing publications: %w", err)
	}
	defer rows.Close()

	return scanPublications(rows)
}

// Count returns the total number of publications.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM publications").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPublication(s scanner) (*reference.Publication, error) {
	var pub reference.Publication
	var listJSON string
	var simpleJSON, urldate, importID sql.NullString
	var year, volume, number sql.NullInt64

	err := s.Scan(
		&pub.ID, &pub.TypeID, &pub.Citekey, &pub.Title,
		&pub.Authors, &listJSON, &simpleJSON,
		&year, &pub.Month,
		&pub.Journal, &pub.BookTitle, &pub.Publisher, &pub.Institution,
		&volume, &number, &pub.Edition, &pub.Location, &pub.Series, &pub.Pages,
		&pub.Note, &pub.Keywords, &pub.URL, &urldate,
		&pub.Code, &pub.DOI, &pub.Abstract, &pub.ISBN, &pub.ISSN,
		&pub.External, &importID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	pub.Year = intFromNull(year)
	pub.Volume = intFromNull(volume)
	pub.Number = intFromNull(number)
	if urldate.Valid {
		pub.URLDate = &urldate.String
	}
	pub.ImportID = importID.String

	if err := json.Unmarshal([]byte(listJSON), &pub.AuthorsList); err != nil {
		return nil, fmt.Errorf("parsing authors JSON for %s: %w", pub.Citekey, err)
	}
	if simpleJSON.Valid && simpleJSON.String != "" {
		if err := json.Unmarshal([]byte(simpleJSON.String), &pub.AuthorsSimple); err != nil {
			return nil, fmt.Errorf("parsing simple authors JSON for %s: %w", pub.Citekey, err)
		}
	}

	return &pub, nil
}

func scanPublications(rows *sql.Rows) ([]reference.Publication, error) {
	var pubs []reference.Publication
	for rows.Next() {
		pub, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		if pub != nil {
			pubs = append(pubs, *pub)
		}
	}
	return pubs, rows.Err()
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// If query contains special chars, quote it
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
