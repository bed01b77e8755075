// Package reference defines the core domain types for publication records.
package reference

import (
	"strconv"
	"strings"
)

// Publication is a single bibliographic record as stored in the library.
type Publication struct {
	// Identity
	ID      int64  `json:"id,omitempty"` // Storage row ID, 0 until persisted
	TypeID  int64  `json:"type_id"`      // KnownType ID
	Citekey string `json:"citekey"`      // Unique citation key

	// Metadata
	Title         string   `json:"title"`
	Authors       string   `json:"authors"`      // Display form; brace-wrapped for a literal author
	AuthorsList   []string `json:"authors_list"` // Processed names, e.g. "E. Swyngedouw"
	AuthorsSimple []string `json:"authors_simple,omitempty"`

	// Date
	Year  *int `json:"year,omitempty"`
	Month int  `json:"month,omitempty"` // 1-12, 0 if unknown

	// Venue
	Journal     string `json:"journal,omitempty"`
	BookTitle   string `json:"book_title,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Institution string `json:"institution,omitempty"`
	Volume      *int   `json:"volume,omitempty"`
	Number      *int   `json:"number,omitempty"`
	Edition     string `json:"edition,omitempty"`
	Location    string `json:"location,omitempty"`
	Series      string `json:"series,omitempty"`
	Pages       string `json:"pages,omitempty"`

	// Extras
	Note     string  `json:"note,omitempty"`
	Keywords string  `json:"keywords,omitempty"`
	URL      string  `json:"url,omitempty"`
	URLDate  *string `json:"urldate,omitempty"` // YYYY-MM-DD
	Code     string  `json:"code,omitempty"`
	DOI      string  `json:"doi,omitempty"`
	Abstract string  `json:"abstract,omitempty"`
	ISBN     string  `json:"isbn,omitempty"`
	ISSN     string  `json:"issn,omitempty"`
	External bool    `json:"external"` // Written outside the group

	// Import tracking
	ImportID string `json:"import_id,omitempty"`
}

// YearString returns the year as text, or "" if unset.
func (p Publication) YearString() string {
	if p.Year == nil {
		return ""
	}
	return strconv.Itoa(*p.Year)
}

// FirstAuthor returns the first processed author name.
func (p Publication) FirstAuthor() string {
	if len(p.AuthorsList) == 0 {
		return ""
	}
	return p.AuthorsList[0]
}

// AuthorsBibTeX returns the author list in BibTeX form ("A and B").
// A literal author is returned brace-wrapped so it survives re-import.
func (p Publication) AuthorsBibTeX() string {
	if IsLiteralAuthor(p.Authors) {
		return p.Authors
	}
	return strings.Join(p.AuthorsList, " and ")
}

// JournalOrBookTitle returns the journal, falling back to the book title.
func (p Publication) JournalOrBookTitle() string {
	if p.Journal != "" {
		return p.Journal
	}
	return p.BookTitle
}

// KeywordList splits the normalized keyword string.
func (p Publication) KeywordList() []string {
	if p.Keywords == "" {
		return nil
	}
	return strings.Split(p.Keywords, ", ")
}

// Field returns the stored value for a BibTeX field name. ok is false for
// fields the record does not keep (editor, chapter, ...).
func (p Publication) Field(name string) (value string, ok bool) {
	switch strings.ToLower(name) {
	case "title":
		return p.Title, true
	case "author":
		return p.Authors, true
	case "year":
		return p.YearString(), true
	case "month":
		if p.Month == 0 {
			return "", true
		}
		return strconv.Itoa(p.Month), true
	case "journal", "journaltitle":
		return p.Journal, true
	case "booktitle":
		return p.BookTitle, true
	case "publisher":
		return p.Publisher, true
	case "institution", "organization", "school":
		return p.Institution, true
	case "volume":
		return intString(p.Volume), true
	case "number":
		return intString(p.Number), true
	case "edition":
		return p.Edition, true
	case "address", "location":
		return p.Location, true
	case "series":
		return p.Series, true
	case "pages":
		return p.Pages, true
	case "note":
		return p.Note, true
	case "keywords":
		return p.Keywords, true
	case "url":
		return p.URL, true
	case "urldate":
		if p.URLDate == nil {
			return "", true
		}
		return *p.URLDate, true
	case "doi":
		return p.DOI, true
	case "abstract":
		return p.Abstract, true
	case "isbn":
		return p.ISBN, true
	case "issn":
		return p.ISSN, true
	}
	return "", false
}

func intString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
