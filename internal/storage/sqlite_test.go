package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

func testPublications() []reference.Publication {
	return []reference.Publication{
		{
			TypeID:        3,
			Citekey:       "Swyngedouw2004",
			Title:         "Social Power and the Urbanization of Water: Flows of Power",
			Authors:       "E. Swyngedouw",
			AuthorsList:   []string{"E. Swyngedouw"},
			AuthorsSimple: []string{"e. swyngedouw"},
			Year:          reference.IntPtr(2004),
			Publisher:     "Oxford University Press",
			Keywords:      "political science, water",
		},
		{
			TypeID:        1,
			Citekey:       "Kaika2000",
			Title:         "Fetishizing the modern city",
			Authors:       "M. Kaika and E. Swyngedouw",
			AuthorsList:   []string{"M. Kaika", "E. Swyngedouw"},
			AuthorsSimple: []string{"m. kaika", "e. swyngedouw"},
			Year:          reference.IntPtr(2000),
			Month:         3,
			Journal:       "International Journal of Urban and Regional Research",
			Volume:        reference.IntPtr(24),
			Number:        reference.IntPtr(1),
			Pages:         "120-138",
			URLDate:       reference.StringPtr("2014-10-07"),
		},
		{
			TypeID:        1,
			Citekey:       "Muller2010",
			Title:         "Über Wasser",
			Authors:       "J. Müller",
			AuthorsList:   []string{"J. Müller"},
			AuthorsSimple: []string{"j. mueller"},
		},
	}
}

// setupTestDB creates a test database holding testPublications.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	batch := ImportBatch{ID: "batch-1", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Digest: "abc", Accepted: 3}
	pubs := testPublications()
	for i := range pubs {
		pubs[i].ImportID = batch.ID
	}
	require.NoError(t, db.InsertBatch(batch, pubs))
	return db
}

func TestOpenDB_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	count, err := db.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.InsertBatch(ImportBatch{ID: "b", CreatedAt: time.Now()}, testPublications()[:1]))
	db.Close()

	db, err = OpenDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDB_GetByCitekey(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		citekey   string
		wantFound bool
		wantTitle string
	}{
		{"Swyngedouw2004", true, "Social Power and the Urbanization of Water: Flows of Power"},
		{"Kaika2000", true, "Fetishizing the modern city"},
		{"kaika2000", false, ""},
		{"NotFound", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.citekey, func(t *testing.T) {
			pub, err := db.GetByCitekey(tt.citekey)
			require.NoError(t, err)
			if !tt.wantFound {
				assert.Nil(t, pub)
				return
			}
			require.NotNil(t, pub)
			assert.Equal(t, tt.wantTitle, pub.Title)
		})
	}
}

func TestDB_GetByCitekey_FullPublication(t *testing.T) {
	db := setupTestDB(t)

	pub, err := db.GetByCitekey("Kaika2000")
	require.NoError(t, err)
	require.NotNil(t, pub)

	assert.NotZero(t, pub.ID, "row id should be assigned")
	assert.Equal(t, int64(1), pub.TypeID)
	assert.Equal(t, []string{"M. Kaika", "E. Swyngedouw"}, pub.AuthorsList)
	assert.Equal(t, []string{"m. kaika", "e. swyngedouw"}, pub.AuthorsSimple)
	assert.Equal(t, reference.IntPtr(2000), pub.Year)
	assert.Equal(t, 3, pub.Month)
	assert.Equal(t, reference.IntPtr(24), pub.Volume)
	assert.Equal(t, reference.IntPtr(1), pub.Number)
	assert.Equal(t, reference.StringPtr("2014-10-07"), pub.URLDate)
	assert.Equal(t, "International Journal of Urban and Regional Research", pub.Journal)
	assert.Equal(t, "batch-1", pub.ImportID)
	assert.False(t, pub.External)
}

func TestDB_GetByCitekey_NullFields(t *testing.T) {
	db := setupTestDB(t)

	pub, err := db.GetByCitekey("Muller2010")
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Nil(t, pub.Year)
	assert.Nil(t, pub.Volume)
	assert.Nil(t, pub.Number)
	assert.Nil(t, pub.URLDate)
}

func TestDB_TitleYearExists(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name  string
		title string
		year  *int
		want  bool
	}{
		{"exact", "Fetishizing the modern city", reference.IntPtr(2000), true},
		{"case-insensitive", "FETISHIZING THE MODERN CITY", reference.IntPtr(2000), true},
		{"other year", "Fetishizing the modern city", reference.IntPtr(2001), false},
		{"nil year vs stored year", "Fetishizing the modern city", nil, false},
		{"nil year vs nil year", "Über Wasser", nil, true},
		{"year vs nil year", "Über Wasser", reference.IntPtr(2010), false},
		{"non-ascii lower", "über wasser", nil, true},
		{"non-ascii upper", "ÜBER WASSER", nil, true},
		{"unknown title", "Something Else", reference.IntPtr(2000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.TitleYearExists(tt.title, tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "TitleYearExists(%q)", tt.title)
		})
	}
}

func TestOpenDB_BackfillsTitleFold(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.InsertBatch(ImportBatch{ID: "b", CreatedAt: time.Now()}, testPublications()))
	// Roll the schema back to a library written before title_fold existed.
	for _, stmt := range []string{
		"DROP INDEX idx_publications_title_fold",
		"ALTER TABLE publications DROP COLUMN title_fold",
	} {
		_, err := db.db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	db.Close()

	db, err = OpenDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.TitleYearExists("über wasser", nil)
	require.NoError(t, err)
	assert.True(t, got, "title_fold should be backfilled on reopen")
}

func TestDB_CountCitekeyPrefix(t *testing.T) {
	db := setupTestDB(t)
	extra := []reference.Publication{
		{Citekey: "Kaika2000a", Title: "A", Authors: "M. Kaika", AuthorsList: []string{"M. Kaika"}},
		{Citekey: "Kaika2000b", Title: "B", Authors: "M. Kaika", AuthorsList: []string{"M. Kaika"}},
	}
	require.NoError(t, db.InsertBatch(ImportBatch{ID: "batch-2", CreatedAt: time.Now()}, extra))

	tests := []struct {
		prefix string
		want   int
	}{
		{"Kaika2000", 3},
		{"Kaika2000a", 1},
		{"Kaika", 3},
		{"kaika2000", 0},
		{"Swyngedouw2004", 1},
		{"Nobody", 0},
		{"%", 0},
		{"_aika2000", 0},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, err := db.CountCitekeyPrefix(tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDB_CitekeyExists(t *testing.T) {
	db := setupTestDB(t)

	for key, want := range map[string]bool{"Kaika2000": true, "Kaika200": false, "Kaika2000a": false} {
		got, err := db.CitekeyExists(key)
		require.NoError(t, err)
		assert.Equal(t, want, got, "CitekeyExists(%q)", key)
	}
}

func TestDB_InsertBatch_DuplicateCitekeyRollsBack(t *testing.T) {
	db := setupTestDB(t)

	pubs := []reference.Publication{
		{Citekey: "Fresh2021", Title: "Fresh", Authors: "A. B", AuthorsList: []string{"A. B"}},
		{Citekey: "Kaika2000", Title: "Clash", Authors: "A. B", AuthorsList: []string{"A. B"}},
	}
	err := db.InsertBatch(ImportBatch{ID: "batch-clash", CreatedAt: time.Now()}, pubs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kaika2000", "error should name the clashing citekey")

	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count, "count after rollback")

	fresh, err := db.GetByCitekey("Fresh2021")
	require.NoError(t, err)
	assert.Nil(t, fresh, "Fresh2021 was saved despite rollback")

	batches, err := db.ListImports()
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}

func TestDB_ListAll_Order(t *testing.T) {
	db := setupTestDB(t)

	pubs, err := db.ListAll(0)
	require.NoError(t, err)

	var keys []string
	for _, p := range pubs {
		keys = append(keys, p.Citekey)
	}
	assert.Equal(t, []string{"Swyngedouw2004", "Kaika2000", "Muller2010"}, keys)

	limited, err := db.ListAll(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDB_Search_NoLimit(t *testing.T) {
	db := setupTestDB(t)

	pubs, err := db.Search("Swyngedouw", 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(pubs), 2, "limit 0 returns every match")
}

func TestDB_Search(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		query    string
		limit    int
		wantKeys []string
		wantMin  int
	}{
		{"urbanization", 10, []string{"Swyngedouw2004"}, 1},
		{"Swyngedouw", 10, nil, 2},
		{"Kaika", 10, []string{"Kaika2000"}, 1},
		{"mueller", 10, []string{"Muller2010"}, 1},
		{"water", 10, nil, 1},
		{"E. Swyngedouw", 10, nil, 2},
		{"nonexistent query xyz", 10, nil, 0},
		{"Swyngedouw", 1, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			pubs, err := db.Search(tt.query, tt.limit)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, len(pubs), tt.wantMin)
			assert.LessOrEqual(t, len(pubs), tt.limit)
			for _, key := range tt.wantKeys {
				_, ok := FindByCitekey(pubs, key)
				assert.True(t, ok, "Search(%q) missing %s", tt.query, key)
			}
		})
	}
}

func TestDB_Imports(t *testing.T) {
	db := setupTestDB(t)

	batches, err := db.ListImports()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	b := batches[0]
	assert.Equal(t, "batch-1", b.ID)
	assert.Equal(t, "abc", b.Digest)
	assert.Equal(t, 3, b.Accepted)
	assert.True(t, b.CreatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)), "CreatedAt = %v", b.CreatedAt)

	pubs, err := db.ListByImport("batch-1")
	require.NoError(t, err)
	assert.Len(t, pubs, 3)

	none, err := db.ListByImport("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDB_Types(t *testing.T) {
	db := setupTestDB(t)

	reg, err := db.Registry()
	require.NoError(t, err)
	assert.Equal(t, len(pubtype.Defaults()), reg.Len(), "empty store should fall back to defaults")

	types := []pubtype.KnownType{
		{ID: 5, Name: "Paper", BibTeXTypes: []string{"article", "inproceedings"}, Required: []string{"journal"}},
		{ID: 2, Name: "Other", Description: "misc", BibTeXTypes: []string{"misc"}, Hidden: true},
	}
	require.NoError(t, db.SaveTypes(types))

	got, err := db.ListTypes()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[0].ID, "order not preserved")
	assert.Equal(t, int64(2), got[1].ID, "order not preserved")
	assert.Equal(t, []string{"article", "inproceedings"}, got[0].BibTeXTypes)
	assert.Equal(t, []string{"journal"}, got[0].Required)
	assert.Nil(t, got[1].Optional)
	assert.True(t, got[1].Hidden)
	assert.Equal(t, "misc", got[1].Description)

	reg, err = db.Registry()
	require.NoError(t, err)
	kt, ok := reg.Resolve("inproceedings")
	require.True(t, ok)
	assert.Equal(t, int64(5), kt.ID)
}

func TestDB_RebuildFromJSONL(t *testing.T) {
	db := setupTestDB(t)
	jsonlPath := filepath.Join(t.TempDir(), "dump.jsonl")

	pubs, err := db.ListAll(0)
	require.NoError(t, err)
	require.NoError(t, WriteAll(jsonlPath, pubs[:1]))

	rebuilt, err := db.RebuildFromJSONL(jsonlPath)
	require.NoError(t, err)
	assert.Equal(t, 1, rebuilt)

	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	restored, err := db.GetByCitekey(pubs[0].Citekey)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, pubs[0].ID, restored.ID)

	found, err := db.Search("urbanization", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestPrepareFTSQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"water", "water"},
		{"  water power ", "water power"},
		{"E. Swyngedouw", `"E. Swyngedouw"`},
		{`say "hi"`, `"say ""hi"""`},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, prepareFTSQuery(tt.in), "prepareFTSQuery(%q)", tt.in)
	}
}
