package bibtex

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// specialChars maps LaTeX accent escapes to Unicode. The table is applied in
// order, so braced forms must precede the bare forms they contain.
var specialChars = [][2]string{
	{`\"{a}`, "ä"}, {`{\"a}`, "ä"}, {`\"a`, "ä"}, {`H{a}`, "ä"},
	{`\"{A}`, "Ä"}, {`{\"A}`, "Ä"}, {`\"A`, "Ä"}, {`H{A}`, "Ä"},
	{`\"{o}`, "ö"}, {`{\"o}`, "ö"}, {`\"o`, "ö"}, {`H{o}`, "ö"},
	{`\"{O}`, "Ö"}, {`{\"O}`, "Ö"}, {`\"O`, "Ö"}, {`H{O}`, "Ö"},
	{`\"{u}`, "ü"}, {`{\"u}`, "ü"}, {`\"u`, "ü"}, {`H{u}`, "ü"},
	{`\"{U}`, "Ü"}, {`{\"U}`, "Ü"}, {`\"U`, "Ü"}, {`H{U}`, "Ü"},
	{`{‘a}`, "à"}, {`\‘A`, "À"},
	{`{‘e}`, "è"}, {`\‘E`, "È"},
	{`{‘o}`, "ò"}, {`\‘O`, "Ò"},
	{`{‘u}`, "ù"}, {`\‘U`, "Ù"},
	{`{’a}`, "á"}, {`\’A`, "Á"},
	{`{’e}`, "é"}, {`\’E`, "É"},
	{`{’o}`, "ó"}, {`\’O`, "Ó"},
	{`{’u}`, "ú"}, {`\’U`, "Ú"},
	{`{\'a}`, "á"}, {`\'{a}`, "á"}, {`\'a`, "á"},
	{`{\'e}`, "é"}, {`\'{e}`, "é"}, {`\'e`, "é"},
	{`{\'i}`, "í"}, {`\'{i}`, "í"}, {`\'i`, "í"},
	{`{\'o}`, "ó"}, {`\'{o}`, "ó"}, {`\'o`, "ó"},
	{`{\'u}`, "ú"}, {`\'{u}`, "ú"}, {`\'u`, "ú"},
	{`{\'E}`, "É"}, {`\'{E}`, "É"}, {`\'E`, "É"},
	{`\`+"`"+`a`, "à"}, {`\`+"`"+`A`, "À"},
	{`\`+"`"+`e`, "è"}, {`\`+"`"+`E`, "È"},
	{`\`+"`"+`u`, "ù"}, {`\`+"`"+`U`, "Ù"},
	{`\`+"`"+`o`, "ò"}, {`\`+"`"+`O`, "Ò"},
	{`\^o`, "ô"}, {`\^O`, "Ô"},
	{`{\c c}`, "ç"}, {`\c{c}`, "ç"},
	{`{\~n}`, "ñ"}, {`\~{n}`, "ñ"}, {`\~n`, "ñ"},
	{`\ss`, "ß"},
	{`\ae`, "æ"}, {`\AE`, "Æ"},
	{`\&`, "&"},
}

// ReplaceSpecialChars substitutes LaTeX escapes with their Unicode characters
// and returns the text in NFC form.
func ReplaceSpecialChars(s string) string {
	for _, pair := range specialChars {
		s = strings.ReplaceAll(s, pair[0], pair[1])
	}
	return norm.NFC.String(s)
}
