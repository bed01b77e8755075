// Package pubtype holds the registry of known publication types and the
// BibTeX entry types each one accepts.
package pubtype

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_types.yml
var defaultTypesYAML []byte

// KnownType maps a set of BibTeX entry types onto one canonical record type.
type KnownType struct {
	ID          int64    `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	BibTeXTypes []string `yaml:"-" json:"bibtex_types"`
	Required    []string `yaml:"required,omitempty" json:"required,omitempty"`
	Optional    []string `yaml:"optional,omitempty" json:"optional,omitempty"`
	Hidden      bool     `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

// BibTeXType returns the preferred BibTeX type used when exporting.
func (t KnownType) BibTeXType() string {
	if len(t.BibTeXTypes) == 0 {
		return "misc"
	}
	return t.BibTeXTypes[0]
}

// Registry is an ordered, read-only set of known types.
type Registry struct {
	types []KnownType
}

// NewRegistry creates a registry. Order is significant: Resolve returns the
// first type that accepts a given BibTeX type.
func NewRegistry(types []KnownType) *Registry {
	cp := make([]KnownType, len(types))
	copy(cp, types)
	return &Registry{types: cp}
}

// Resolve finds the first known type accepting bibtexType (case-insensitive).
func (r *Registry) Resolve(bibtexType string) (KnownType, bool) {
	bibtexType = strings.ToLower(strings.TrimSpace(bibtexType))
	for _, t := range r.types {
		for _, bt := range t.BibTeXTypes {
			if bt == bibtexType {
				return t, true
			}
		}
	}
	return KnownType{}, false
}

// Lookup finds a known type by ID.
func (r *Registry) Lookup(id int64) (KnownType, bool) {
	for _, t := range r.types {
		if t.ID == id {
			return t, true
		}
	}
	return KnownType{}, false
}

// Types returns a copy of the registry contents in order.
func (r *Registry) Types() []KnownType {
	cp := make([]KnownType, len(r.types))
	copy(cp, r.types)
	return cp
}

// Len returns the number of known types.
func (r *Registry) Len() int {
	return len(r.types)
}

// typeFile is the on-disk YAML layout. bibtex_types is a free-form list
// string so hand-edited files can use "@article, @inproceedings".
type typeFile struct {
	Types []struct {
		KnownType   `yaml:",inline"`
		BibTeXTypes string `yaml:"bibtex_types"`
	} `yaml:"types"`
}

// LoadYAML reads a list of known types. IDs default to the 1-based position
// when not given.
func LoadYAML(r io.Reader) ([]KnownType, error) {
	var f typeFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding types: %w", err)
	}

	types := make([]KnownType, 0, len(f.Types))
	seen := make(map[int64]bool)
	for i, raw := range f.Types {
		t := raw.KnownType
		if t.Name == "" {
			return nil, fmt.Errorf("type %d: missing name", i+1)
		}
		if t.ID == 0 {
			t.ID = int64(i + 1)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("type %q: duplicate id %d", t.Name, t.ID)
		}
		seen[t.ID] = true

		list, err := ParseTypeList(raw.BibTeXTypes)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", t.Name, err)
		}
		if len(list) == 0 {
			list = []string{"article"}
		}
		t.BibTeXTypes = list
		types = append(types, t)
	}
	return types, nil
}

// Defaults returns the built-in types.
func Defaults() []KnownType {
	types, err := LoadYAML(bytes.NewReader(defaultTypesYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded default types: %v", err))
	}
	return types
}
