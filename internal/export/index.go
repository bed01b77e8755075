package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/matsen/publications/internal/bibtex"
	"github.com/matsen/publications/internal/reference"
)

// Index records the citekeys and DOIs already present in a .bib file so an
// export can skip publications the file has.
type Index struct {
	keys map[string]bool
	dois map[string]string // normalized DOI -> citekey
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{keys: map[string]bool{}, dois: map[string]string{}}
}

// ReadIndex indexes the .bib file at path. A missing file gives an empty index.
func ReadIndex(path string) (*Index, error) {
	idx := NewIndex()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	entries, _ := bibtex.Extract(string(data))
	for _, e := range entries {
		idx.Add(e)
	}
	return idx, nil
}

// Add indexes one parsed entry. Entries without a key are ignored.
func (idx *Index) Add(e bibtex.Entry) {
	if e.Key == "" {
		return
	}
	idx.keys[e.Key] = true
	if doi := canonicalDOI(bibtex.NormalizeValue("doi", e.Value("doi"))); doi != "" {
		idx.dois[doi] = e.Key
	}
}

// Len returns the number of indexed citekeys.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// Has reports whether pub is already in the file, matching the DOI first and
// the citekey second, so a renamed entry with the same DOI still counts.
func (idx *Index) Has(pub reference.Publication) bool {
	if _, ok := idx.KeyForDOI(pub.DOI); ok {
		return true
	}
	return idx.keys[pub.Citekey]
}

// KeyForDOI returns the citekey the file uses for doi.
func (idx *Index) KeyForDOI(doi string) (string, bool) {
	doi = canonicalDOI(doi)
	if doi == "" {
		return "", false
	}
	key, ok := idx.dois[doi]
	return key, ok
}

var doiPrefixes = []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"}

// canonicalDOI lowercases a DOI and strips resolver and "doi:" prefixes.
func canonicalDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(doi, p) {
			return strings.TrimSpace(doi[len(p):])
		}
	}
	return doi
}

// AppendFile appends BibTeX content to path, creating it if needed. A blank
// line separates the new entries from existing content.
func AppendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if info.Size() > 0 {
		content = "\n" + content
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
