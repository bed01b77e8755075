// Package main provides the pubs CLI entry point.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/config"
	"github.com/matsen/publications/internal/logging"
	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	// libraryFlag overrides library discovery
	libraryFlag string
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pubs",
	Short: "Publication library with BibTeX import",
	Long: `pubs manages a research group's publication library.

BibTeX submissions are parsed, normalized and checked entry by entry:
accepted entries become publication records, rejected ones are reported
by class and can be written back out for correction.

The library lives in a .pubs directory (SQLite database and config.yml).
All commands output JSON by default; use --human for text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVarP(&libraryFlag, "library", "L", "", "Library root (default: search upward from the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages to stderr")
	rootCmd.Version = Version
}

// mustFindLibrary finds and validates the library, exits on error.
// Returns the library root path.
func mustFindLibrary() string {
	if libraryFlag != "" {
		root := config.ExpandPath(libraryFlag)
		if !config.IsLibrary(root) {
			exitWithError(ExitConfigError, "not a publications library: %s (no %s directory)", root, config.LibraryDir)
		}
		return root
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	root, err := config.ResolveLibrary(cwd)
	if err != nil {
		if errors.Is(err, config.ErrNoLibrary) {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
			os.Exit(ExitConfigError)
		}
		exitWithError(ExitConfigError, "%v", err)
	}
	return root
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(root string) *storage.DB {
	db, err := storage.OpenDB(config.DBPath(root))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// mustLoadConfig loads and validates configuration, exits on error.
func mustLoadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "invalid config: %v", err)
	}
	return cfg
}

// mustLoadRegistry loads the library's publication types, exits on error.
func mustLoadRegistry(db *storage.DB) *pubtype.Registry {
	registry, err := db.Registry()
	if err != nil {
		exitWithError(ExitError, "loading types: %v", err)
	}
	return registry
}

// newLogger builds the stderr logger from config; --verbose forces debug.
func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	if verbose {
		level = logging.LevelDebug
	}
	return logging.Init(os.Stderr, level, format)
}
