package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/config"
)

var typesShowHidden bool

func init() {
	typesCmd.Flags().BoolVar(&typesShowHidden, "all", false, "Include hidden types")
	typesCmd.AddCommand(typesLoadCmd)
	rootCmd.AddCommand(typesCmd)
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List publication types and the BibTeX types they accept",
	Long: `List publication types in resolution order. An incoming BibTeX entry
takes the first type whose list contains its entry type.`,
	Args: cobra.NoArgs,
	RunE: runTypes,
}

var typesLoadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Replace the publication types from a YAML file",
	Long: `Replace the publication types from a YAML file
(default: .pubs/types.yml).

File format:
  types:
    - name: Journal Article
      bibtex_types: "@article"
      required: [journal, year]`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTypesLoad,
}

func runTypes(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	db := mustOpenDatabase(root)
	defer db.Close()

	types := mustLoadRegistry(db).Types()
	if !typesShowHidden {
		visible := types[:0]
		for _, t := range types {
			if !t.Hidden {
				visible = append(visible, t)
			}
		}
		types = visible
	}

	if humanOutput {
		for _, t := range types {
			fmt.Printf("%2d. %-18s @%s\n", t.ID, t.Name, strings.Join(t.BibTeXTypes, ", @"))
			if len(t.Required) > 0 {
				fmt.Printf("    required: %s\n", strings.Join(t.Required, ", "))
			}
		}
		return nil
	}
	outputJSON(types)
	return nil
}

func runTypesLoad(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	path := config.TypesPath(root)
	if len(args) == 1 {
		path = args[0]
	}

	types, err := loadTypes(path)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	db := mustOpenDatabase(root)
	defer db.Close()
	if err := db.SaveTypes(types); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Loaded %d publication types from %s\n", len(types), path)
	} else {
		outputJSON(StatusResponse{Status: "loaded", Path: path, Count: len(types)})
	}
	return nil
}
