package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/export"
	"github.com/matsen/publications/internal/reference"
)

var (
	exportBibtex bool
	exportKeys   string
	exportAppend string
)

func init() {
	exportCmd.Flags().BoolVar(&exportBibtex, "bibtex", false, "Export to BibTeX format")
	exportCmd.Flags().StringVar(&exportKeys, "keys", "", "Export only specified citekeys (comma-separated)")
	exportCmd.Flags().StringVar(&exportAppend, "append", "", "Append entries missing from this .bib file instead of printing")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export publications to BibTeX format",
	Long: `Export publications to BibTeX format.

With --append, entries already present in the target file (matched by DOI,
then citekey) are skipped and the rest are appended.

Examples:
  pubs export --bibtex
  pubs export --bibtex --keys Swyngedouw2004,Kaika2000
  pubs export --bibtex --append paper/refs.bib`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// AppendResult is the response for export --append.
type AppendResult struct {
	Path     string   `json:"path"`
	Appended []string `json:"appended"`
	Skipped  []string `json:"skipped"`
}

func runExport(cmd *cobra.Command, args []string) error {
	if !exportBibtex {
		exitWithError(ExitError, "--bibtex flag is required")
	}

	root := mustFindLibrary()
	db := mustOpenDatabase(root)
	defer db.Close()

	var pubs []reference.Publication
	if exportKeys != "" {
		for _, key := range strings.Split(exportKeys, ",") {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			pub, err := db.GetByCitekey(key)
			if err != nil {
				exitWithError(ExitError, "getting publication %s: %v", key, err)
			}
			if pub == nil {
				exitWithError(ExitError, "unknown citekey: %s", key)
			}
			pubs = append(pubs, *pub)
		}
	} else {
		var err error
		pubs, err = db.ListAll(0)
		if err != nil {
			exitWithError(ExitError, "listing publications: %v", err)
		}
	}

	registry := mustLoadRegistry(db)

	if exportAppend == "" {
		// BibTeX is always text output, never JSON
		fmt.Print(export.ToBibTeXList(pubs, registry))
		return nil
	}

	result, err := appendMissing(exportAppend, pubs, func(p []reference.Publication) string {
		return export.ToBibTeXList(p, registry)
	})
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if humanOutput {
		fmt.Printf("Appended %d entries to %s (%d already present)\n", len(result.Appended), result.Path, len(result.Skipped))
	} else {
		outputJSON(result)
	}
	return nil
}

// appendMissing appends the publications not yet in the .bib file at path.
func appendMissing(path string, pubs []reference.Publication, render func([]reference.Publication) string) (AppendResult, error) {
	result := AppendResult{Path: path, Appended: []string{}, Skipped: []string{}}

	idx, err := export.ReadIndex(path)
	if err != nil {
		return result, err
	}

	var missing []reference.Publication
	for _, pub := range pubs {
		if idx.Has(pub) {
			result.Skipped = append(result.Skipped, pub.Citekey)
			continue
		}
		missing = append(missing, pub)
		result.Appended = append(result.Appended, pub.Citekey)
	}

	if len(missing) == 0 {
		return result, nil
	}
	if err := export.AppendFile(path, render(missing)); err != nil {
		return result, fmt.Errorf("appending to %s: %w", path, err)
	}
	return result, nil
}
