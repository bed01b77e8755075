package bibtex

import "strings"

// protectedFields keep inner braces, which protect capitalization or mark a
// literal author name.
var protectedFields = map[string]bool{
	"booktitle": true,
	"title":     true,
	"author":    true,
}

var braceRemover = strings.NewReplacer("{", "", "}", "")

// Normalize returns a copy of the entry with every field value unwrapped.
func Normalize(e Entry) Entry {
	out := e.Clone()
	out.Key = strings.TrimSpace(out.Key)
	for i, f := range out.Fields {
		out.Fields[i].Value = NormalizeValue(f.Name, f.Value)
	}
	return out
}

// NormalizeValue strips one layer of quotes, then one layer of enclosing
// braces, removes the remaining braces from unprotected fields, fully unwraps
// titles, and collapses whitespace.
func NormalizeValue(name, value string) string {
	value = strings.TrimSpace(value)
	if isQuoteWrapped(value) {
		value = value[1 : len(value)-1]
	}
	if isBraceWrapped(value) {
		value = value[1 : len(value)-1]
	}

	if !protectedFields[name] {
		value = braceRemover.Replace(value)
	}

	if name == "title" {
		for {
			value = strings.TrimSpace(value)
			if !isBraceWrapped(value) {
				break
			}
			value = value[1 : len(value)-1]
		}
	}

	return strings.Join(strings.Fields(value), " ")
}

func isQuoteWrapped(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

// isBraceWrapped reports whether the opening brace at s[0] closes at the last byte.
func isBraceWrapped(s string) bool {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i == len(s)-1
			}
		}
	}
	return false
}

// IsBraceWrapped reports whether s is enclosed in one matching brace pair.
func IsBraceWrapped(s string) bool {
	return isBraceWrapped(s)
}
