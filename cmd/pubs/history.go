package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/storage"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List import batches, newest first",
	Long: `List import batches, newest first. Use 'pubs list --batch <id>' to see
the publications a batch added.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	db := mustOpenDatabase(root)
	defer db.Close()

	batches, err := db.ListImports()
	if err != nil {
		exitWithError(ExitError, "listing imports: %v", err)
	}

	if humanOutput {
		if len(batches) == 0 {
			fmt.Println("No imports yet")
			return nil
		}
		for _, b := range batches {
			fmt.Printf("%s  %-14s  %d added, %d rejected\n",
				b.ID, humanize.Time(b.CreatedAt), b.Accepted, b.Rejected)
		}
		return nil
	}

	if batches == nil {
		batches = []storage.ImportBatch{}
	}
	outputJSON(batches)
	return nil
}
