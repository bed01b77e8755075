package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

func testRegistry() *pubtype.Registry {
	return pubtype.NewRegistry([]pubtype.KnownType{
		{ID: 1, Name: "Journal Article", BibTeXTypes: []string{"article"}, Required: []string{"journal", "year"}},
		{ID: 2, Name: "PhD Thesis", BibTeXTypes: []string{"phdthesis"}, Required: []string{"school", "year", "editor"}},
	})
}

func intPtr(v int) *int { return &v }

func TestCheckLibrary_Clean(t *testing.T) {
	pubs := []reference.Publication{
		{TypeID: 1, Citekey: "Kaika2000", Title: "Fetishizing the modern city", Year: intPtr(2000), Journal: "IJURR", DOI: "10.1111/1468-2427.00239"},
		{TypeID: 2, Citekey: "Smith2019", Title: "Water and power", Year: intPtr(2019), Institution: "Oxford"},
	}

	issues := checkLibrary(pubs, testRegistry())
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestCheckLibrary_Issues(t *testing.T) {
	pubs := []reference.Publication{
		{TypeID: 1, Citekey: "A2000", Title: "Same Title", Year: intPtr(2000), Journal: "J", DOI: "10.1/X"},
		{TypeID: 1, Citekey: "B2000", Title: "same title", Year: intPtr(2000), Journal: "J", DOI: " 10.1/x"},
		{TypeID: 1, Citekey: "C2001", Title: "Same Title", Year: intPtr(2001)},
		{TypeID: 9, Citekey: "D2002", Title: "Orphan", Year: intPtr(2002)},
		{TypeID: 1, Citekey: "E", Title: "Undated"},
		{TypeID: 1, Citekey: "F", Title: "Undated", Journal: "J"},
	}

	want := []CheckIssue{
		{Type: "duplicate_doi", DOI: "10.1/x", Citekeys: []string{"A2000", "B2000"}},
		{Type: "duplicate_title", Citekeys: []string{"A2000", "B2000"}, Reason: `"same title", 2000`},
		{Type: "duplicate_title", Citekeys: []string{"E", "F"}, Reason: `"undated", no year`},
		{Type: "missing_fields", Citekey: "C2001", Fields: []string{"journal"}, Reason: "Journal Article"},
		{Type: "unknown_type", Citekey: "D2002", Reason: "type_id 9"},
		{Type: "missing_fields", Citekey: "E", Fields: []string{"journal", "year"}, Reason: "Journal Article"},
		{Type: "missing_fields", Citekey: "F", Fields: []string{"year"}, Reason: "Journal Article"},
	}
	assert.Equal(t, want, checkLibrary(pubs, testRegistry()))
}

func TestCheckLibrary_UnknownFieldNamesIgnored(t *testing.T) {
	// editor has no record column, so it can never be reported missing
	pubs := []reference.Publication{
		{TypeID: 2, Citekey: "Smith2019", Title: "Water", Year: intPtr(2019), Institution: "Oxford"},
	}
	assert.Empty(t, checkLibrary(pubs, testRegistry()))
}
