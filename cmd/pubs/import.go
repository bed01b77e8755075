package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"
	"github.com/ulikunitz/xz"

	"github.com/matsen/publications/internal/importer"
	"github.com/matsen/publications/internal/storage"
)

var (
	importText    string
	importDryRun  bool
	importLegacy  bool
	importRejects string
)

func init() {
	importCmd.Flags().StringVar(&importText, "text", "", "BibTeX text to import instead of a file")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Check entries without writing to the library")
	importCmd.Flags().BoolVar(&importLegacy, "legacy", false, "Report stored duplicates as not_unique")
	importCmd.Flags().StringVar(&importRejects, "rejects", "", "Write rejected entries as BibTeX to this file")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [file|-]",
	Short: "Import publications from BibTeX",
	Long: `Import publications from BibTeX.

Reads a .bib file, an xz-compressed .bib.xz file, standard input ("-" or
no argument) or the --text flag. Every entry is checked on its own:
accepted entries are saved as one import batch, rejected ones are
reported by class. Exits with code 3 when any entry is rejected.

Usage:
  pubs import refs.bib
  pubs import refs.bib.xz --dry-run
  pubs import - < refs.bib
  pubs import refs.bib --rejects fixme.bib`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

// ImportReport is the response for the import command.
type ImportReport struct {
	BatchID     string            `json:"batch_id"`
	Digest      string            `json:"digest"`
	Summary     string            `json:"summary"`
	Total       int               `json:"total"`
	Accepted    int               `json:"accepted"`
	Saved       bool              `json:"saved"`
	DryRun      bool              `json:"dry_run,omitempty"`
	Citekeys    []string          `json:"citekeys"`
	Errors      []RejectionReport `json:"errors,omitempty"`
	RejectsPath string            `json:"rejects_path,omitempty"`
}

// RejectionReport summarizes one rejection class.
type RejectionReport struct {
	Class    importer.ErrorClass `json:"class"`
	Message  string              `json:"message"`
	Count    int                 `json:"count"`
	Citekeys []string            `json:"citekeys,omitempty"`
}

func runImport(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	cfg := mustLoadConfig(root)
	logger := newLogger(cfg)

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	text, err := readInput(path, importText, cmd.InOrStdin())
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	db := mustOpenDatabase(root)
	defer db.Close()

	imp := importer.New(mustLoadRegistry(db), db, db, importer.Options{
		Save:   !importDryRun,
		Legacy: importLegacy || cfg.Legacy,
		Logger: logger,
	})
	res, err := imp.Run(text)
	if errors.Is(err, importer.ErrNoEntries) {
		db.Close()
		exitWithError(ExitDataError, "%s: %v", importer.NoEntries.Message(), err)
	}
	if err != nil {
		db.Close()
		exitWithError(ExitError, "import failed: %v", err)
	}

	report := buildImportReport(res, importDryRun)
	if !res.OK() && importRejects != "" {
		if err := writeRejects(importRejects, res); err != nil {
			db.Close()
			exitWithError(ExitError, "%v", err)
		}
		report.RejectsPath = importRejects
	}

	if humanOutput {
		printImportReport(report)
	} else {
		outputJSON(report)
	}

	if !res.OK() {
		db.Close()
		os.Exit(ExitDataError)
	}
	return nil
}

// readInput returns the submission text from --text, a file, or stdin.
// Files ending in .xz are decompressed.
func readInput(path, text string, stdin io.Reader) (string, error) {
	if text != "" {
		return text, nil
	}

	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f

		if storage.IsCompressed(path) {
			xr, err := xz.NewReader(f)
			if err != nil {
				return "", fmt.Errorf("decompressing %s: %w", path, err)
			}
			r = xr
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

func buildImportReport(res *importer.Result, dryRun bool) ImportReport {
	report := ImportReport{
		BatchID:  res.BatchID,
		Digest:   res.Digest,
		Summary:  res.Summary(),
		Total:    res.Total,
		Accepted: len(res.Accepted),
		Saved:    res.Saved,
		DryRun:   dryRun,
		Citekeys: make([]string, 0, len(res.Accepted)),
	}
	if dryRun {
		report.Summary = fmt.Sprintf("Would add %s.", english.Plural(len(res.Accepted), "publication", ""))
	}
	for _, pub := range res.Accepted {
		report.Citekeys = append(report.Citekeys, pub.Citekey)
	}

	for _, class := range res.Errors.Classes() {
		rejections := res.Errors[class]
		rr := RejectionReport{Class: class, Message: class.Message(), Count: len(rejections)}
		for _, rej := range rejections {
			if rej.Citekey != "" {
				rr.Citekeys = append(rr.Citekeys, rej.Citekey)
			}
		}
		report.Errors = append(report.Errors, rr)
	}
	return report
}

// writeRejects writes the rejected entries back out as BibTeX.
func writeRejects(path string, res *importer.Result) error {
	if err := os.WriteFile(path, []byte(res.Resubmit()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing rejects: %w", err)
	}
	return nil
}

func printImportReport(r ImportReport) {
	fmt.Println(r.Summary)
	if len(r.Citekeys) > 0 {
		fmt.Printf("  %s\n", strings.Join(r.Citekeys, ", "))
	}
	if len(r.Errors) == 0 {
		return
	}

	fmt.Printf("\nRejected %s of %d:\n", english.Plural(r.Total-r.Accepted, "entry", "entries"), r.Total)
	for _, e := range r.Errors {
		fmt.Printf("  %s (%d)\n", e.Message, e.Count)
		if len(e.Citekeys) > 0 {
			fmt.Printf("    %s\n", wrapText(strings.Join(e.Citekeys, ", "), TextWrapWidth, "    "))
		}
	}
	if r.RejectsPath != "" {
		fmt.Printf("\nRejected entries written to %s\n", r.RejectsPath)
	}
}
