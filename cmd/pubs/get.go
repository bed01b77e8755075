package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <citekey>",
	Short: "Get a single publication by citekey",
	Long: `Get a single publication by its citekey.

Example:
  pubs get Swyngedouw2004`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	db := mustOpenDatabase(root)
	defer db.Close()

	citekey := args[0]
	pub, err := db.GetByCitekey(citekey)
	if err != nil {
		exitWithError(ExitError, "getting publication: %v", err)
	}
	if pub == nil {
		exitWithError(ExitError, "publication not found: %s", citekey)
	}

	if humanOutput {
		kt, _ := mustLoadRegistry(db).Lookup(pub.TypeID)
		printPubDetail(*pub, kt)
	} else {
		outputJSON(pub)
	}
	return nil
}

func printPubDetail(pub reference.Publication, kt pubtype.KnownType) {
	fmt.Println(pub.Citekey)
	fmt.Println(strings.Repeat("═", DetailTitleMaxLen))
	fmt.Println()

	fmt.Printf("Title:    %s\n", wrapText(pub.Title, TextWrapWidth, "          "))
	fmt.Println()

	if pub.Authors != "" {
		fmt.Printf("Authors:  %s\n", wrapText(pub.Authors, TextWrapWidth, "          "))
		fmt.Println()
	}

	if kt.Name != "" {
		fmt.Printf("Type:     %s\n", kt.Name)
	}
	if venue := pub.JournalOrBookTitle(); venue != "" {
		fmt.Printf("Venue:    %s\n", venue)
	}
	if pub.Publisher != "" {
		fmt.Printf("Publisher: %s\n", pub.Publisher)
	}
	if pub.Institution != "" {
		fmt.Printf("Institution: %s\n", pub.Institution)
	}

	if year := pub.YearString(); year != "" {
		date := year
		if pub.Month > 0 {
			date = fmt.Sprintf("%s-%02d", year, pub.Month)
		}
		fmt.Printf("Date:     %s\n", date)
	}
	if pub.Pages != "" {
		fmt.Printf("Pages:    %s\n", pub.Pages)
	}
	if pub.DOI != "" {
		fmt.Printf("DOI:      %s\n", pub.DOI)
	}
	if pub.URL != "" {
		fmt.Printf("URL:      %s\n", pub.URL)
	}
	if pub.Keywords != "" {
		fmt.Printf("Keywords: %s\n", wrapText(pub.Keywords, TextWrapWidth, "          "))
	}

	if pub.Abstract != "" {
		fmt.Println()
		fmt.Println("Abstract:")
		fmt.Printf("  %s\n", wrapText(pub.Abstract, DetailTextWrapWidth, "  "))
	}
}
