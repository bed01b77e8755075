package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/publications/internal/bibtex"
	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

func kaika() reference.Publication {
	return reference.Publication{
		TypeID:      1,
		Citekey:     "Kaika2000",
		Title:       "Fetishizing the modern city",
		Authors:     "M. Kaika and E. Swyngedouw",
		AuthorsList: []string{"M. Kaika", "E. Swyngedouw"},
		Year:        reference.IntPtr(2000),
		Month:       3,
		Journal:     "International Journal of Urban and Regional Research",
		Volume:      reference.IntPtr(24),
		Number:      reference.IntPtr(1),
		Pages:       "120-138",
		URL:         "http://example.org/a_b%20c",
		URLDate:     reference.StringPtr("2014-10-07"),
		DOI:         "10.1111/1468-2427.00239",
	}
}

func TestToBibTeX_BasicArticle(t *testing.T) {
	got := ToBibTeX(kaika(), "article")

	assert.True(t, strings.HasPrefix(got, "@article{Kaika2000,"), got)
	for _, want := range []string{
		`author = {M. Kaika and E. Swyngedouw}`,
		`title = {Fetishizing the modern city}`,
		`journal = {International Journal of Urban and Regional Research}`,
		`year = {2000}`,
		`month = {Mar}`,
		`volume = {24}`,
		`number = {1}`,
		`pages = {120-138}`,
		`url = {http://example.org/a_b%20c}`,
		`urldate = {2014-10-07}`,
		`doi = {10.1111/1468-2427.00239}`,
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "booktitle")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(got), "}"), got)
}

func TestToBibTeX_OptionalFields(t *testing.T) {
	pub := reference.Publication{
		Citekey:     "Minimal",
		Title:       "Minimal",
		Authors:     "A. Author",
		AuthorsList: []string{"A. Author"},
	}

	got := ToBibTeX(pub, "")

	assert.True(t, strings.HasPrefix(got, "@misc{Minimal,"), "empty type should fall back to misc:\n%s", got)
	for _, absent := range []string{"year", "month", "volume", "number", "urldate", "doi"} {
		assert.NotContains(t, got, absent+" =")
	}
}

func TestToBibTeX_LiteralAuthor(t *testing.T) {
	pub := reference.Publication{
		Citekey:     "WorldBank2004",
		Title:       "Water",
		Authors:     "{World Bank}",
		AuthorsList: []string{"World Bank"},
	}

	assert.Contains(t, ToBibTeX(pub, "techreport"), "author = {{World Bank}}")
}

func TestToBibTeX_SpecialCharactersInTitle(t *testing.T) {
	pub := reference.Publication{
		Citekey: "Special",
		Title:   "100% of {DNA} & R_0 costs $5 #1",
	}

	assert.Contains(t, ToBibTeX(pub, "article"), `title = {100\% of {DNA} \& R\_0 costs \$5 \#1}`)
}

func TestToBibTeX_ReimportRoundTrip(t *testing.T) {
	out := ToBibTeX(kaika(), "article")

	entries, dups := bibtex.Extract(out)
	require.Len(t, entries, 1)
	require.Empty(t, dups)

	e := bibtex.Normalize(entries[0])
	assert.Equal(t, "Kaika2000", e.Key)
	assert.Equal(t, "Fetishizing the modern city", e.Value("title"))
	assert.Equal(t, 3, reference.ParseMonth(e.Value("month")))
	authors := reference.ProcessAuthors(reference.ReorderBibTeXAuthors(e.Value("author")))
	assert.Equal(t, []string{"M. Kaika", "E. Swyngedouw"}, authors.List)
}

func TestEscapeLatex(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Simple text", "Simple text"},
		{"Smith & Jones", `Smith \& Jones`},
		{"100%", `100\%`},
		{"$100", `\$100`},
		{"#1", `\#1`},
		{"snake_case", `snake\_case`},
		{"{Protected}", "{Protected}"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeLatex(tt.input))
		})
	}
}

func TestToBibTeXList(t *testing.T) {
	reg := pubtype.NewRegistry([]pubtype.KnownType{
		{ID: 1, Name: "Article", BibTeXTypes: []string{"article"}},
		{ID: 2, Name: "Talk", BibTeXTypes: []string{"inproceedings", "conference"}},
	})

	talk := kaika()
	talk.Citekey = "Talk2001"
	talk.TypeID = 2
	orphan := kaika()
	orphan.Citekey = "Orphan"
	orphan.TypeID = 99

	got := ToBibTeXList([]reference.Publication{kaika(), talk, orphan}, reg)

	for _, want := range []string{"@article{Kaika2000,", "@inproceedings{Talk2001,", "@misc{Orphan,"} {
		assert.Contains(t, got, want)
	}
	assert.Equal(t, 2, strings.Count(got, "\n@"), "entries should be separated by blank lines")
}

func TestToBibTeXList_Empty(t *testing.T) {
	assert.Empty(t, ToBibTeXList(nil, nil))
}

func TestReadIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.bib")
	content := `
@article{Kaika2000,
  doi = {https://doi.org/10.1111/1468-2427.00239},
  title = {Fetishizing}
}
@book{Swyngedouw2004, title = {Social Power}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	idx, err := ReadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	tests := []struct {
		key, doi string
		want     bool
	}{
		{"Kaika2000", "", true},
		{"Other", "10.1111/1468-2427.00239", true},
		{"Other", "DOI:10.1111/1468-2427.00239", true},
		{"Other", "https://dx.doi.org/10.1111/1468-2427.00239", true},
		{"Swyngedouw2004", "", true},
		{"Missing", "", false},
		{"Missing", "10.0/none", false},
	}
	for _, tt := range tests {
		pub := reference.Publication{Citekey: tt.key, DOI: tt.doi}
		assert.Equal(t, tt.want, idx.Has(pub), "Has(%q, %q)", tt.key, tt.doi)
	}

	key, ok := idx.KeyForDOI("10.1111/1468-2427.00239")
	assert.True(t, ok)
	assert.Equal(t, "Kaika2000", key)
}

func TestReadIndex_Missing(t *testing.T) {
	idx, err := ReadIndex(filepath.Join(t.TempDir(), "none.bib"))
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
}

func TestAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.bib")
	entry := ToBibTeX(kaika(), "article")

	require.NoError(t, AppendFile(path, entry))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, entry, string(data), "new file should hold only the entry")

	idx, err := ReadIndex(path)
	require.NoError(t, err)
	assert.True(t, idx.Has(reference.Publication{Citekey: "Kaika2000"}))

	require.NoError(t, AppendFile(path, "@misc{Second, title = {T}}\n"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), entry+"\n@misc{Second", "second append should follow a separator line")
}
