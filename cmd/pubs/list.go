package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/author"
	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
	"github.com/matsen/publications/internal/style"
)

var (
	listStyle   string
	listBatch   string
	listLimit   int
	listAuthors []string
)

func init() {
	listCmd.Flags().StringVar(&listStyle, "style", "", "Render citations in a style (harvard, plain, bibtex); default from config")
	listCmd.Flags().StringVar(&listBatch, "batch", "", "Only publications from this import batch")
	listCmd.Flags().IntVar(&listLimit, "limit", DefaultListLimit, "Maximum publications to list (0 for all)")
	listCmd.Flags().StringArrayVarP(&listAuthors, "author", "a", nil, "Only publications by this author (repeatable, all must match)")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List publications, newest first",
	Long: `List publications, newest first.

Examples:
  pubs list --human
  pubs list --style plain --human
  pubs list -a Swyngedouw -a "Maria Kaika"
  pubs list --batch 5b0c...`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// CitationResult pairs a citekey with its rendered citation.
type CitationResult struct {
	Citekey  string `json:"citekey"`
	Citation string `json:"citation"`
}

func runList(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	cfg := mustLoadConfig(root)
	db := mustOpenDatabase(root)
	defer db.Close()

	authors := author.ParseQueries(listAuthors)
	fetch := listLimit
	if len(authors) > 0 {
		fetch = 0
	}

	var pubs []reference.Publication
	var err error
	if listBatch != "" {
		pubs, err = db.ListByImport(listBatch)
	} else {
		pubs, err = db.ListAll(fetch)
	}
	if err != nil {
		exitWithError(ExitError, "listing publications: %v", err)
	}
	pubs = limitPubs(author.Filter(pubs, authors), listLimit)

	// An explicit --style renders citations; JSON output otherwise stays as records.
	styleName := listStyle
	if styleName == "" && humanOutput {
		styleName = cfg.Style
	}
	if styleName == "" {
		if pubs == nil {
			pubs = []reference.Publication{}
		}
		outputJSON(pubs)
		return nil
	}

	format, err := style.Lookup(styleName)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	citations := renderCitations(pubs, mustLoadRegistry(db), format)

	if humanOutput {
		if len(citations) == 0 {
			fmt.Println("No publications found")
		}
		for _, c := range citations {
			fmt.Println(c.Citation)
			if styleName != "bibtex" {
				fmt.Println()
			}
		}
		return nil
	}
	outputJSON(citations)
	return nil
}

func renderCitations(pubs []reference.Publication, registry *pubtype.Registry, format style.Formatter) []CitationResult {
	out := make([]CitationResult, 0, len(pubs))
	for _, pub := range pubs {
		kt, _ := registry.Lookup(pub.TypeID)
		out = append(out, CitationResult{Citekey: pub.Citekey, Citation: format(pub, kt)})
	}
	return out
}

// limitPubs truncates to limit; zero or less keeps everything.
func limitPubs(pubs []reference.Publication, limit int) []reference.Publication {
	if limit > 0 && len(pubs) > limit {
		return pubs[:limit]
	}
	return pubs
}
