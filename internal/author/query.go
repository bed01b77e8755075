// Package author provides author name parsing and matching for search queries.
package author

import (
	"strings"
	"unicode"

	"github.com/matsen/publications/internal/reference"
)

// Query represents a parsed author search query.
type Query struct {
	First string // First name (may be empty for last-name-only queries)
	Last  string // Last name (required)
}

var nameSuffixes = map[string]bool{
	"I": true, "II": true, "III": true, "IV": true, "V": true,
	"VI": true, "VII": true, "VIII": true, "Jr.": true, "Sr.": true,
}

// ParseQuery parses an author search string into a structured Query.
//
// Supported formats:
//   - "Yu"           → last="Yu" (single word = last name only)
//   - "Timothy Yu"   → first="Timothy", last="Yu" (space-separated = First Last)
//   - "Yu, Timothy"  → first="Timothy", last="Yu" (comma = Last, First)
//
// Names are trimmed but case is preserved (matching is case-insensitive).
func ParseQuery(input string) Query {
	input = strings.TrimSpace(input)
	if input == "" {
		return Query{}
	}

	if idx := strings.Index(input, ","); idx > 0 {
		last := strings.TrimSpace(input[:idx])
		first := strings.TrimSpace(input[idx+1:])
		return Query{First: first, Last: last}
	}

	parts := strings.Fields(input)
	if len(parts) == 1 {
		return Query{Last: parts[0]}
	}

	// "Timothy C Yu" → first="Timothy C", last="Yu"
	last := parts[len(parts)-1]
	first := strings.Join(parts[:len(parts)-1], " ")
	return Query{First: first, Last: last}
}

// ParseQueries parses each non-blank input.
func ParseQueries(inputs []string) []Query {
	var queries []Query
	for _, in := range inputs {
		if q := ParseQuery(in); q.Last != "" {
			queries = append(queries, q)
		}
	}
	return queries
}

// Matches checks if the query matches one processed author name such as
// "T. C. Yu" or "J. van der Berg".
//
// Matching rules:
//   - Last name: exact match on the final word or the whole surname,
//     ignoring case and diacritics
//   - First name: each query word's initial must match the name's initials
//     in order, so "Tim" and "Timothy C" both match "T. C. Yu"
func (q Query) Matches(name string) bool {
	initials, surname := splitName(name)
	if surname == "" {
		return false
	}

	last := reference.SimplifyName(q.Last)
	words := strings.Fields(surname)
	if last != reference.SimplifyName(surname) && last != reference.SimplifyName(words[len(words)-1]) {
		return false
	}

	if q.First == "" {
		return true
	}

	want := strings.Fields(q.First)
	if len(want) > len(initials) {
		return false
	}
	for i, w := range want {
		if firstLetter(w) != initials[i] {
			return false
		}
	}
	return true
}

// MatchesAny checks if the query matches any author in the list.
func (q Query) MatchesAny(names []string) bool {
	for _, n := range names {
		if q.Matches(n) {
			return true
		}
	}
	return false
}

// AllMatch checks if all queries match at least one author each.
// This implements AND logic for multiple author filters.
func AllMatch(queries []Query, names []string) bool {
	for _, q := range queries {
		if !q.MatchesAny(names) {
			return false
		}
	}
	return true
}

// Filter keeps the publications whose author list satisfies every query.
// With no queries the input is returned unchanged.
func Filter(pubs []reference.Publication, queries []Query) []reference.Publication {
	if len(queries) == 0 {
		return pubs
	}
	out := []reference.Publication{}
	for _, pub := range pubs {
		if AllMatch(queries, pub.AuthorsList) {
			out = append(out, pub)
		}
	}
	return out
}

// splitName separates a processed name into the lowercased first letters
// of its initials and the remaining surname.
func splitName(name string) ([]string, string) {
	words := strings.Fields(name)
	if len(words) > 0 && words[0] == "Dr." {
		words = words[1:]
	}
	for len(words) > 1 && nameSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}

	var initials []string
	for len(words) > 1 && isInitial(words[0]) {
		initials = append(initials, firstLetter(words[0]))
		words = words[1:]
	}
	return initials, strings.Join(words, " ")
}

// isInitial reports whether w looks like "E." or "J.-P.".
func isInitial(w string) bool {
	r := []rune(w)
	switch len(r) {
	case 2:
		return unicode.IsLetter(r[0]) && r[1] == '.'
	case 5:
		return unicode.IsLetter(r[0]) && r[1] == '.' && r[2] == '-' && unicode.IsLetter(r[3]) && r[4] == '.'
	}
	return false
}

func firstLetter(w string) string {
	simple := []rune(reference.SimplifyName(w))
	if len(simple) == 0 {
		return ""
	}
	return string(simple[0])
}
