package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/author"
	"github.com/matsen/publications/internal/reference"
)

var (
	searchLimit   int
	searchAuthors []string
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", DefaultListLimit, "Maximum results to return (0 for all)")
	searchCmd.Flags().StringArrayVarP(&searchAuthors, "author", "a", nil, "Only results by this author (repeatable, all must match)")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over citekeys, titles, authors and keywords",
	Long: `Full-text search over citekeys, titles, authors and keywords.

Author names also match their simplified form, so "mueller" finds "Müller".

Examples:
  pubs search water
  pubs search "E. Swyngedouw" --human
  pubs search water -a Kaika`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	db := mustOpenDatabase(root)
	defer db.Close()

	authors := author.ParseQueries(searchAuthors)
	fetch := searchLimit
	if len(authors) > 0 {
		fetch = 0
	}

	pubs, err := db.Search(args[0], fetch)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}
	pubs = limitPubs(author.Filter(pubs, authors), searchLimit)

	if humanOutput {
		if len(pubs) == 0 {
			fmt.Println("No publications found")
			return nil
		}
		for _, pub := range pubs {
			printPubLine(pub)
		}
		return nil
	}

	if pubs == nil {
		pubs = []reference.Publication{}
	}
	outputJSON(pubs)
	return nil
}
