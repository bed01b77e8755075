// Package bibtex extracts, normalizes, and re-serializes BibTeX entries.
package bibtex

import "strings"

// Field is a single name/value pair from an entry body.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Entry is one @type{key, ...} unit. Fields keep their source order so that
// rejected entries can be written back the way the user submitted them.
type Entry struct {
	Type   string  `json:"type"` // lowercased entry type
	Key    string  `json:"key"`  // structural citation key from the header
	Fields []Field `json:"fields"`
}

// Get returns the value of the named field.
func (e *Entry) Get(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of the named field, or "" if absent.
func (e *Entry) Value(name string) string {
	v, _ := e.Get(name)
	return v
}

// Has reports whether the named field is present.
func (e *Entry) Has(name string) bool {
	_, ok := e.Get(name)
	return ok
}

// Set replaces the named field in place, or appends it if absent.
// A repeated field in the source therefore keeps its first position and last value.
func (e *Entry) Set(name, value string) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			e.Fields[i].Value = value
			return
		}
	}
	e.Fields = append(e.Fields, Field{Name: name, Value: value})
}

// Delete removes the named field if present.
func (e *Entry) Delete(name string) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			e.Fields = append(e.Fields[:i], e.Fields[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	fields := make([]Field, len(e.Fields))
	copy(fields, e.Fields)
	return Entry{Type: e.Type, Key: e.Key, Fields: fields}
}

// FieldNames returns the field names in source order.
func (e *Entry) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// String renders the entry as BibTeX text.
func (e Entry) String() string {
	return Unparse([]Entry{e})
}

func isSpace(c byte) bool {
	return strings.IndexByte(" \t\n\r\f\v", c) >= 0
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func isWordByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
