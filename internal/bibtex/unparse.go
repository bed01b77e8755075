package bibtex

import (
	"fmt"
	"strings"
)

// Unparse writes entries back as BibTeX text, one entry per line group.
// Original formatting is not preserved; every value is brace-delimited.
func Unparse(entries []Entry) string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		pairs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			pairs = append(pairs, fmt.Sprintf("%s = {%s}", f.Name, f.Value))
		}
		out = append(out, fmt.Sprintf("@%s{%s,\n\t%s}", e.Type, e.Key, strings.Join(pairs, ",\n\t")))
	}
	return strings.Join(out, "\n")
}
