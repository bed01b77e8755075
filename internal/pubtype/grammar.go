package pubtype

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// typeListGrammar accepts lists such as "@article, @inproceedings; conference and misc".
//
//nolint:govet // participle grammar tags are not standard struct tags
type typeListGrammar struct {
	Items []*typeListItem `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type typeListItem struct {
	Separator string `  @( "," | ";" | "and" )`
	Name      string `| "@"? @Ident`
}

var typeListLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[a-z0-9_-]+`},
	{Name: "Punct", Pattern: `[@,;]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var typeListParser = participle.MustBuild[typeListGrammar](
	participle.Lexer(typeListLexer),
	participle.Elide("Whitespace"),
)

// ParseTypeList parses a human-entered list of BibTeX types into lowercase
// names, preserving order. "@" prefixes are dropped; ",", ";" and the word
// "and" all separate entries.
func ParseTypeList(s string) ([]string, error) {
	s = strings.ToLower(s)
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	list, err := typeListParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("parsing type list %q: %w", s, err)
	}

	var names []string
	for _, item := range list.Items {
		if item.Name != "" {
			names = append(names, item.Name)
		}
	}
	return names, nil
}
