package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/matsen/publications/internal/reference"
)

// Layout widths for --human output.
const (
	DefaultListLimit = 50

	ListTitleMaxLen   = 50
	DetailTitleMaxLen = 70

	TextWrapWidth       = 60
	DetailTextWrapWidth = 68
)

// stdout receives command output; tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// outputJSON writes v as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError reports msg as text on stderr (--human) or as a JSON
// ErrorResponse on stdout, then exits with code.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg, Code: code})
	}
	os.Exit(code)
}

// StatusResponse reports the outcome of init and types load.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// UpdateResponse reports a config change.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// ErrorResponse is printed for failed commands in JSON mode.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"exit_code"`
}

// truncateString shortens s to maxLen runes, ending in "..." when cut.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}

// wrapText breaks text into lines of at most width runes, prefixing every
// line after the first with indent. Words longer than width stand alone.
func wrapText(text string, width int, indent string) string {
	if utf8.RuneCountInString(text) <= width {
		return text
	}

	var b strings.Builder
	lineLen := 0
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		switch {
		case lineLen == 0:
		case lineLen+1+n <= width:
			b.WriteByte(' ')
			lineLen++
		default:
			b.WriteString("\n" + indent)
			lineLen = 0
		}
		b.WriteString(word)
		lineLen += n
	}
	return b.String()
}

// printPubLine prints a one-line summary: citekey, year, title.
func printPubLine(pub reference.Publication) {
	year := pub.YearString()
	if year == "" {
		year = "----"
	}
	fmt.Fprintf(stdout, "%-24s %s  %s\n", pub.Citekey, year, truncateString(pub.Title, ListTitleMaxLen))
}
