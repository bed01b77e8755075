package importer

import (
	"errors"
	"strings"

	"github.com/matsen/publications/internal/bibtex"
)

// ErrNoEntries is returned when a submission contains no parseable entry.
var ErrNoEntries = errors.New("no BibTeX entries found")

// ErrorClass identifies why an entry was rejected.
type ErrorClass string

const (
	FieldsNeeded     ErrorClass = "fields_needed"
	NotUnique        ErrorClass = "not_unique"
	NotUniqueCreated ErrorClass = "not_unique_created"
	WrongType        ErrorClass = "wrong_type"
	NoEntries        ErrorClass = "no_entries"
)

// ErrorClasses lists the per-entry classes in reporting order.
var ErrorClasses = []ErrorClass{FieldsNeeded, NotUnique, NotUniqueCreated, WrongType}

var errorMessages = map[ErrorClass]string{
	FieldsNeeded:     "Author and/or title not present.",
	NotUnique:        "Entry already exists.",
	NotUniqueCreated: "Entry already exists in the library.",
	WrongType:        "Type unknown.",
	NoEntries:        "Invalid data",
}

// Message returns the user-facing message for the class.
func (c ErrorClass) Message() string {
	return errorMessages[c]
}

// Rejection is an entry the builder refused, kept for re-display.
type Rejection struct {
	Class   ErrorClass   `json:"class"`
	Citekey string       `json:"citekey,omitempty"`
	Entry   bibtex.Entry `json:"entry"`
}

// Errors buckets rejections by class.
type Errors map[ErrorClass][]Rejection

// Add records a rejection under its class.
func (e Errors) Add(r Rejection) {
	e[r.Class] = append(e[r.Class], r)
}

// Len returns the total number of rejections.
func (e Errors) Len() int {
	n := 0
	for _, rs := range e {
		n += len(rs)
	}
	return n
}

// Classes returns the non-empty classes in reporting order.
func (e Errors) Classes() []ErrorClass {
	var classes []ErrorClass
	for _, c := range ErrorClasses {
		if len(e[c]) > 0 {
			classes = append(classes, c)
		}
	}
	return classes
}

// Messages returns one message per non-empty class.
func (e Errors) Messages() []string {
	var msgs []string
	for _, c := range e.Classes() {
		msgs = append(msgs, c.Message())
	}
	return msgs
}

// Resubmit re-serializes every rejected entry so it can be corrected and
// submitted again. Entries are grouped by class in reporting order.
func (e Errors) Resubmit() string {
	var blocks []string
	for _, c := range e.Classes() {
		entries := make([]bibtex.Entry, len(e[c]))
		for i, r := range e[c] {
			entries[i] = r.Entry
		}
		blocks = append(blocks, bibtex.Unparse(entries))
	}
	return strings.Join(blocks, "\n")
}
