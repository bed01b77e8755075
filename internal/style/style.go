// Package style renders publications as citation strings. Styles are
// looked up by name in a fixed table.
package style

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/publications/internal/export"
	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

// Formatter renders one publication of the given type.
type Formatter func(pub reference.Publication, kt pubtype.KnownType) string

var formatters = map[string]Formatter{
	"harvard": Harvard,
	"plain":   Plain,
	"bibtex":  BibTeX,
}

// Lookup returns the formatter for a style name (case-insensitive).
func Lookup(name string) (Formatter, error) {
	f, ok := formatters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown style %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the available styles in sorted order.
func Names() []string {
	names := make([]string, 0, len(formatters))
	for name := range formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatAuthors abbreviates long author lists: four or more authors become
// "A. Smith et al.", two or three are joined as "A, B and C".
func FormatAuthors(names []string) string {
	switch n := len(names); {
	case n == 0:
		return ""
	case n >= 4:
		return names[0] + " et al."
	case n > 1:
		return strings.Join(names[:n-1], ", ") + " and " + names[n-1]
	default:
		return names[0]
	}
}

// Harvard renders "Authors (Year). Title. Venue, Volume(Number), pp. Pages."
func Harvard(pub reference.Publication, _ pubtype.KnownType) string {
	var b strings.Builder

	b.WriteString(FormatAuthors(pub.AuthorsList))
	if y := pub.YearString(); y != "" {
		fmt.Fprintf(&b, " (%s)", y)
	}
	fmt.Fprintf(&b, ". %s.", strings.TrimSuffix(pub.Title, "."))

	var venue []string
	if v := pub.JournalOrBookTitle(); v != "" {
		venue = append(venue, v)
	}
	if pub.Volume != nil {
		vol := fmt.Sprintf("%d", *pub.Volume)
		if pub.Number != nil {
			vol += fmt.Sprintf("(%d)", *pub.Number)
		}
		venue = append(venue, vol)
	}
	if pub.Pages != "" {
		venue = append(venue, "pp. "+pub.Pages)
	}
	if pub.Publisher != "" && pub.Journal == "" {
		venue = append(venue, pub.Publisher)
	}
	if len(venue) > 0 {
		fmt.Fprintf(&b, " %s.", strings.Join(venue, ", "))
	}

	return b.String()
}

// Plain renders "Authors. Title. Venue, Year."
func Plain(pub reference.Publication, _ pubtype.KnownType) string {
	parts := []string{reference.JoinAuthors(pub.AuthorsList), strings.TrimSuffix(pub.Title, ".")}

	var tail []string
	if v := pub.JournalOrBookTitle(); v != "" {
		tail = append(tail, v)
	}
	if y := pub.YearString(); y != "" {
		tail = append(tail, y)
	}
	if len(tail) > 0 {
		parts = append(parts, strings.Join(tail, ", "))
	}

	return strings.Join(parts, ". ") + "."
}

// BibTeX renders the publication as a BibTeX entry.
func BibTeX(pub reference.Publication, kt pubtype.KnownType) string {
	return export.ToBibTeX(pub, kt.BibTeXType())
}
