package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/matsen/publications/internal/bibtex"
	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

// Lookup is the read side of the library the builder checks entries against.
type Lookup interface {
	// TitleYearExists reports whether a record with this title (case-insensitive)
	// and year exists. A nil year matches records without a year.
	TitleYearExists(title string, year *int) (bool, error)
	// CountCitekeyPrefix counts stored citekeys starting with prefix.
	CountCitekeyPrefix(prefix string) (int, error)
	// CitekeyExists reports whether citekey is stored exactly.
	CitekeyExists(citekey string) (bool, error)
}

// dateLayouts are tried in order when backfilling year from a date field.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01",
	"2006",
	"2006/01/02",
	"January 2, 2006",
	"2 January 2006",
	"January 2006",
	"Jan 2006",
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// Duplicates are the keys the lexer saw more than once in the document.
	Duplicates []string
	// Legacy reports stored title+year duplicates as not_unique instead of
	// not_unique_created.
	Legacy bool
	// ImportID is stamped on every accepted record.
	ImportID string
}

// Builder turns normalized entries into publications. A Builder holds the
// state of one submission and must not be reused across submissions.
type Builder struct {
	registry *pubtype.Registry
	lookup   Lookup
	opts     BuilderOptions

	duplicates map[string]bool
	candidates map[string]bool // pre-suffix citekeys accepted so far
	keys       []string        // final citekeys accepted so far
	titles     map[string]bool // folded title + year accepted so far
	fold       cases.Caser
}

// NewBuilder creates a builder for one submission.
func NewBuilder(registry *pubtype.Registry, lookup Lookup, opts BuilderOptions) *Builder {
	dups := make(map[string]bool, len(opts.Duplicates))
	for _, k := range opts.Duplicates {
		dups[k] = true
	}
	return &Builder{
		registry:   registry,
		lookup:     lookup,
		opts:       opts,
		duplicates: dups,
		candidates: make(map[string]bool),
		titles:     make(map[string]bool),
		fold:       cases.Fold(),
	}
}

// Build validates a normalized entry and converts it to a publication.
// A rejected entry yields a non-nil Rejection; err is reserved for lookup
// failures.
func (b *Builder) Build(entry bibtex.Entry) (reference.Publication, *Rejection, error) {
	e := entry.Clone()
	reject := func(class ErrorClass, citekey string) (reference.Publication, *Rejection, error) {
		if citekey == "" {
			citekey = e.Key
		}
		return reference.Publication{}, &Rejection{Class: class, Citekey: citekey, Entry: e}, nil
	}

	if e.Has("date") && !e.Has("year") {
		if y, ok := yearFromDate(e.Value("date")); ok {
			e.Set("year", strconv.Itoa(y))
		}
	}

	title := strings.TrimSpace(e.Value("title"))
	rawAuthors := strings.TrimSpace(e.Value("author"))
	if title == "" || rawAuthors == "" {
		return reject(FieldsNeeded, "")
	}

	yearText := strings.TrimSpace(e.Value("year"))
	year := parseInt(yearText)

	exists, err := b.lookup.TitleYearExists(title, year)
	if err != nil {
		return reference.Publication{}, nil, fmt.Errorf("checking title %q: %w", title, err)
	}
	if exists {
		if b.opts.Legacy {
			return reject(NotUnique, "")
		}
		return reject(NotUniqueCreated, "")
	}
	if b.titles[b.titleKey(title, year)] {
		return reject(NotUnique, "")
	}

	authors := reference.ProcessAuthors(reference.ReorderBibTeXAuthors(rawAuthors))
	if len(authors.List) == 0 {
		return reject(FieldsNeeded, "")
	}

	kt, ok := b.registry.Resolve(e.Type)
	if !ok {
		return reject(WrongType, "")
	}

	pub := b.record(e, kt, title, year, authors)

	if pub.Citekey == "" {
		pub.Citekey = DeriveCitekey(authors.List, yearText)
	}
	candidate := pub.Citekey

	if b.duplicates[candidate] && b.candidates[candidate] {
		return reject(NotUnique, candidate)
	}

	final, err := b.uniqueCitekey(candidate)
	if err != nil {
		return reference.Publication{}, nil, err
	}
	pub.Citekey = final

	b.candidates[candidate] = true
	b.keys = append(b.keys, final)
	b.titles[b.titleKey(title, year)] = true

	return pub, nil, nil
}

// record maps entry fields onto the publication schema. Fields outside the
// schema are dropped.
func (b *Builder) record(e bibtex.Entry, kt pubtype.KnownType, title string, year *int, authors reference.Authors) reference.Publication {
	location := e.Value("location")
	if v := e.Value("address"); v != "" {
		location = v
	}
	institution := e.Value("institution")
	if v := e.Value("organization"); v != "" {
		institution = v
	}
	if institution == "" {
		institution = e.Value("school")
	}
	journal := e.Value("journal")
	if journal == "" {
		journal = e.Value("journaltitle")
	}
	citekey := e.Key
	if v := e.Value("key"); v != "" {
		citekey = v
	}

	var urldate *string
	if v := strings.TrimSpace(e.Value("urldate")); v != "" {
		if _, err := time.Parse("2006-01-02", v); err == nil {
			urldate = &v
		}
	}

	return reference.Publication{
		TypeID:        kt.ID,
		Citekey:       strings.TrimSpace(citekey),
		Title:         title,
		Authors:       authors.Display,
		AuthorsList:   authors.List,
		AuthorsSimple: authors.Simple,
		Year:          year,
		Month:         reference.ParseMonth(e.Value("month")),
		Journal:       strings.TrimSpace(journal),
		BookTitle:     strings.TrimSpace(e.Value("booktitle")),
		Publisher:     strings.TrimSpace(e.Value("publisher")),
		Institution:   strings.TrimSpace(institution),
		Volume:        parseInt(e.Value("volume")),
		Number:        parseInt(e.Value("number")),
		Edition:       e.Value("edition"),
		Location:      location,
		Series:        e.Value("series"),
		Pages:         e.Value("pages"),
		Note:          e.Value("note"),
		Keywords:      reference.NormalizeKeywords(e.Value("keywords")),
		URL:           strings.ReplaceAll(e.Value("url"), " ", "%20"),
		URLDate:       urldate,
		Code:          e.Value("code"),
		DOI:           e.Value("doi"),
		Abstract:      e.Value("abstract"),
		ISBN:          e.Value("isbn"),
		ISSN:          e.Value("issn"),
		ImportID:      b.opts.ImportID,
	}
}

// uniqueCitekey appends a disambiguating suffix when key collides with a
// stored or batch citekey by prefix.
func (b *Builder) uniqueCitekey(key string) (string, error) {
	count, err := b.lookup.CountCitekeyPrefix(key)
	if err != nil {
		return "", fmt.Errorf("counting citekey %q: %w", key, err)
	}
	for _, k := range b.keys {
		if strings.HasPrefix(k, key) {
			count++
		}
	}
	if count == 0 {
		return key, nil
	}

	for ; ; count++ {
		candidate := key + CitekeySuffix(count)
		taken, err := b.citekeyTaken(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

func (b *Builder) citekeyTaken(key string) (bool, error) {
	for _, k := range b.keys {
		if k == key {
			return true, nil
		}
	}
	exists, err := b.lookup.CitekeyExists(key)
	if err != nil {
		return false, fmt.Errorf("checking citekey %q: %w", key, err)
	}
	return exists, nil
}

func (b *Builder) titleKey(title string, year *int) string {
	y := ""
	if year != nil {
		y = strconv.Itoa(*year)
	}
	return b.fold.String(title) + "\x00" + y
}

// DeriveCitekey builds "<surname><year>" from the processed author list:
// the text before the first comma is split on ". " and the last piece is
// taken as the surname. "E. Swyngedouw" with year "2004" gives
// "Swyngedouw2004".
func DeriveCitekey(authors []string, year string) string {
	first := strings.Split(strings.Join(authors, ", "), ",")[0]
	parts := strings.Split(first, ". ")
	return parts[len(parts)-1] + year
}

// CitekeySuffix returns the disambiguation suffix for the n-th collision:
// "a" through "z", then the decimal count.
func CitekeySuffix(n int) string {
	if n >= 1 && n <= 26 {
		return string(rune('a' + n - 1))
	}
	return strconv.Itoa(n)
}

func yearFromDate(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), true
		}
	}
	return 0, false
}

func parseInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
