package reference

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/matsen/publications/internal/bibtex"
)

// Authors is the processed form of an author string.
type Authors struct {
	Display string   // "A. Smith, B. Jones, and C. Brown"
	List    []string // one processed name per author
	Simple  []string // lowercase ASCII-folded "given surname" keys for matching
}

var (
	nameSuffixes     = []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "Jr.", "Sr."}
	namePrefixes     = []string{"Dr."}
	namePrepositions = []string{"van", "von", "der", "de", "den"}
)

// authorSeparators folds the accepted author separators into commas.
var authorSeparators = strings.NewReplacer(
	", and ", ", ",
	",and ", ", ",
	" and ", ", ",
	";", ",",
)

var germanFold = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// IsLiteralAuthor reports whether the author string is brace-wrapped,
// meaning it must not be split or abbreviated.
func IsLiteralAuthor(s string) bool {
	return bibtex.IsBraceWrapped(s)
}

// ReorderBibTeXAuthors converts a BibTeX author field ("Last, First and
// Last, First") into a comma-separated "First Last, First Last" string.
// A brace-wrapped value is returned unchanged.
func ReorderBibTeXAuthors(raw string) string {
	if IsLiteralAuthor(raw) {
		return raw
	}

	authors := strings.Split(raw, " and ")
	for i, a := range authors {
		pieces := strings.Split(a, ",")
		reordered := append([]string{pieces[len(pieces)-1]}, pieces[:len(pieces)-1]...)

		var words []string
		for _, p := range reordered {
			if p = strings.TrimSpace(p); p != "" {
				words = append(words, p)
			}
		}
		authors[i] = strings.Join(words, " ")
	}
	return strings.Join(authors, ", ")
}

// ProcessAuthors splits a comma-separated author string and abbreviates given
// names: "Carl Friedrich Gauss" and "Gauss CF" both become "C. F. Gauss".
func ProcessAuthors(authors string) Authors {
	if IsLiteralAuthor(authors) {
		inner := authors[1 : len(authors)-1]
		return Authors{
			Display: authors,
			List:    []string{inner},
			Simple:  []string{SimplifyName(inner)},
		}
	}

	var out Authors
	for _, author := range strings.Split(authorSeparators.Replace(authors), ",") {
		names := strings.Fields(author)
		if len(names) == 0 {
			continue
		}

		names = expandTrailingInitials(names)
		numSuffixes := countSuffixes(names)

		for j := 0; j < len(names)-1-numSuffixes; j++ {
			if j == 0 && contains(namePrefixes, names[j]) {
				continue
			}
			if j > 0 && contains(namePrepositions, names[j]) {
				continue
			}
			names[j] = abbreviate(names[j])
		}

		out.List = append(out.List, strings.Join(names, " "))

		surname := names[len(names)-1]
		if len(names) > 1 {
			for _, given := range strings.Split(names[0], "-") {
				out.Simple = append(out.Simple, SimplifyName(given+" "+surname))
			}
		} else {
			out.Simple = append(out.Simple, SimplifyName(names[0]))
		}
	}

	out.Display = JoinAuthors(out.List)
	return out
}

// JoinAuthors renders a processed list as "A", "A and B", or "A, B, and C".
func JoinAuthors(list []string) string {
	switch n := len(list); n {
	case 0:
		return ""
	case 1:
		return list[0]
	case 2:
		return list[0] + " and " + list[1]
	default:
		return strings.Join(list[:n-1], ", ") + ", and " + list[n-1]
	}
}

// SimplifyName lowercases a name and folds it to ASCII for matching.
func SimplifyName(name string) string {
	name = germanFold.Replace(strings.ToLower(name))
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		return name
	}
	return folded
}

// expandTrailingInitials turns a trailing block of capitals into leading
// initials: ["Gauss", "CF"] -> ["C.", "F.", "Gauss"].
func expandTrailingInitials(names []string) []string {
	last := names[len(names)-1]
	if len(last) > 3 || contains(nameSuffixes, last) || !isUpperASCII(last) {
		return names
	}

	out := make([]string, 0, len(names)+len(last))
	for _, c := range last {
		out = append(out, string(c)+".")
	}
	return append(out, names[:len(names)-1]...)
}

func countSuffixes(names []string) int {
	n := 0
	for i := len(names) - 1; i >= 0; i-- {
		if !contains(nameSuffixes, names[i]) {
			break
		}
		n++
	}
	return n
}

// abbreviate reduces a given name to its initial; "Jean-Paul" -> "J.-P.".
// Names already of the form "E." are left alone.
func abbreviate(name string) string {
	r := []rune(name)
	if len(r) <= 2 && r[len(r)-1] == '.' {
		return name
	}
	for k, c := range r {
		if c == '-' {
			if k+1 < len(r) {
				return string(r[0]) + ".-" + string(r[k+1]) + "."
			}
			break
		}
	}
	return string(r[0]) + "."
}

func isUpperASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
