// Package export writes stored publications as BibTeX.
package export

import (
	"fmt"
	"strings"

	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

// ToBibTeX converts a publication to a BibTeX entry of the given type.
func ToBibTeX(pub reference.Publication, bibtexType string) string {
	if bibtexType == "" {
		bibtexType = "misc"
	}
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", bibtexType, pub.Citekey))

	if reference.IsLiteralAuthor(pub.Authors) {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", pub.Authors))
	} else if len(pub.AuthorsList) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", escapeLatex(pub.AuthorsBibTeX())))
	}

	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(pub.Title)))

	writeField(&b, "journal", pub.Journal)
	writeField(&b, "booktitle", pub.BookTitle)
	writeField(&b, "publisher", pub.Publisher)
	writeField(&b, "institution", pub.Institution)

	if pub.Year != nil {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", *pub.Year))
	}
	writeField(&b, "month", reference.MonthAbbr(pub.Month))
	writeInt(&b, "volume", pub.Volume)
	writeInt(&b, "number", pub.Number)
	writeField(&b, "pages", pub.Pages)
	writeField(&b, "edition", pub.Edition)
	writeField(&b, "series", pub.Series)
	writeField(&b, "address", pub.Location)
	writeField(&b, "note", pub.Note)
	writeField(&b, "keywords", pub.Keywords)

	// Identifiers are written verbatim; escaping would break URLs and DOIs.
	writeRaw(&b, "url", pub.URL)
	if pub.URLDate != nil {
		writeRaw(&b, "urldate", *pub.URLDate)
	}
	writeRaw(&b, "doi", pub.DOI)
	writeRaw(&b, "isbn", pub.ISBN)
	writeRaw(&b, "issn", pub.ISSN)

	writeField(&b, "abstract", pub.Abstract)

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple publications, resolving each entry type
// through the registry.
func ToBibTeXList(pubs []reference.Publication, registry *pubtype.Registry) string {
	var entries []string
	for _, pub := range pubs {
		entries = append(entries, ToBibTeX(pub, EntryType(pub, registry)))
	}
	return strings.Join(entries, "\n")
}

// EntryType returns the BibTeX type for a publication, or "misc" when its
// type is unknown.
func EntryType(pub reference.Publication, registry *pubtype.Registry) string {
	if registry != nil {
		if kt, ok := registry.Lookup(pub.TypeID); ok {
			return kt.BibTeXType()
		}
	}
	return "misc"
}

func writeField(b *strings.Builder, name, value string) {
	if value != "" {
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", name, escapeLatex(value)))
	}
}

func writeRaw(b *strings.Builder, name, value string) {
	if value != "" {
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", name, value))
	}
}

func writeInt(b *strings.Builder, name string, value *int) {
	if value != nil {
		b.WriteString(fmt.Sprintf("  %s = {%d},\n", name, *value))
	}
}

// escapeLatex escapes LaTeX special characters. Braces are left alone so
// capitalization protection in titles survives.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
	)
	return replacer.Replace(s)
}
