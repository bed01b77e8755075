package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/config"
	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/storage"
)

var initTypesFile string

func init() {
	initCmd.Flags().StringVar(&initTypesFile, "types", "", "Seed publication types from a YAML file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a new publications library",
	Long: `Create a new publications library in dir (default: current directory).

Creates .pubs/config.yml with defaults and the SQLite database. Publication
types are seeded from --types when given, otherwise from the built-in list.

Examples:
  pubs init
  pubs init ~/group/library --types types.yml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		exitWithError(ExitError, "resolving path: %v", err)
	}

	types, err := loadTypes(initTypesFile)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if config.IsLibrary(root) {
		exitWithError(ExitError, "library already exists: %s", config.LibraryPath(root))
	}
	if err := os.MkdirAll(config.LibraryPath(root), 0755); err != nil {
		exitWithError(ExitError, "creating %s: %v", config.LibraryDir, err)
	}

	if err := config.Default().Save(root); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	db, err := storage.OpenDB(config.DBPath(root))
	if err != nil {
		exitWithError(ExitError, "creating database: %v", err)
	}
	defer db.Close()
	if err := db.SaveTypes(types); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Initialized publications library in %s (%d types)\n", config.LibraryPath(root), len(types))
	} else {
		outputJSON(StatusResponse{Status: "created", Path: config.LibraryPath(root), Count: len(types)})
	}
	return nil
}

// loadTypes reads a types YAML file. An empty path means the built-in types.
func loadTypes(path string) ([]pubtype.KnownType, error) {
	if path == "" {
		return pubtype.Defaults(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	types, err := pubtype.LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return types, nil
}
