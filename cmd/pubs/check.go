package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"

	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify library integrity",
	Long: `Verify library integrity: duplicate DOIs, duplicate title and year pairs,
unknown publication types, and required fields missing for a record's type.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status       string       `json:"status"`
	Publications int          `json:"publications"`
	Issues       []CheckIssue `json:"issues"`
}

// CheckIssue represents a single issue found during check.
type CheckIssue struct {
	Type     string   `json:"type"`
	Citekey  string   `json:"citekey,omitempty"`
	Citekeys []string `json:"citekeys,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	Fields   []string `json:"fields,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	db := mustOpenDatabase(root)
	defer db.Close()

	pubs, err := db.ListAll(0)
	if err != nil {
		exitWithError(ExitError, "listing publications: %v", err)
	}
	issues := checkLibrary(pubs, mustLoadRegistry(db))

	status := "ok"
	if len(issues) > 0 {
		status = "issues_found"
	}

	if humanOutput {
		if len(issues) == 0 {
			fmt.Printf("Library check: OK\n\n%d publications checked\n", len(pubs))
			return nil
		}
		fmt.Printf("Library check: %d issues found\n\n", len(issues))
		for _, issue := range issues {
			switch issue.Type {
			case "duplicate_doi":
				fmt.Printf("  [WARN] Duplicate DOI %s\n", issue.DOI)
				fmt.Printf("         Found in: %s\n\n", strings.Join(issue.Citekeys, ", "))
			case "duplicate_title":
				fmt.Printf("  [WARN] Duplicate title and year (%s)\n", issue.Reason)
				fmt.Printf("         Found in: %s\n\n", strings.Join(issue.Citekeys, ", "))
			case "unknown_type":
				fmt.Printf("  [WARN] Unknown type for %s (%s)\n\n", issue.Citekey, issue.Reason)
			case "missing_fields":
				fmt.Printf("  [WARN] %s is missing %s (%s)\n\n", issue.Citekey, strings.Join(issue.Fields, ", "), issue.Reason)
			}
		}
		fmt.Printf("%d publications checked\n", len(pubs))
		return nil
	}

	outputJSON(CheckResult{
		Status:       status,
		Publications: len(pubs),
		Issues:       issues,
	})
	return nil
}

// checkLibrary returns integrity issues in a stable order.
func checkLibrary(pubs []reference.Publication, registry *pubtype.Registry) []CheckIssue {
	issues := []CheckIssue{}
	fold := cases.Fold()

	byDOI := make(map[string][]string)
	byTitle := make(map[string][]string)
	for _, pub := range pubs {
		if doi := strings.ToLower(strings.TrimSpace(pub.DOI)); doi != "" {
			byDOI[doi] = append(byDOI[doi], pub.Citekey)
		}
		key := fold.String(pub.Title) + "\x00" + pub.YearString()
		byTitle[key] = append(byTitle[key], pub.Citekey)
	}

	for _, doi := range sortedKeys(byDOI) {
		if keys := byDOI[doi]; len(keys) > 1 {
			issues = append(issues, CheckIssue{Type: "duplicate_doi", DOI: doi, Citekeys: keys})
		}
	}
	for _, key := range sortedKeys(byTitle) {
		if keys := byTitle[key]; len(keys) > 1 {
			title, year, _ := strings.Cut(key, "\x00")
			if year == "" {
				year = "no year"
			}
			issues = append(issues, CheckIssue{
				Type:     "duplicate_title",
				Citekeys: keys,
				Reason:   fmt.Sprintf("%q, %s", title, year),
			})
		}
	}

	for _, pub := range pubs {
		kt, ok := registry.Lookup(pub.TypeID)
		if !ok {
			issues = append(issues, CheckIssue{
				Type:    "unknown_type",
				Citekey: pub.Citekey,
				Reason:  fmt.Sprintf("type_id %d", pub.TypeID),
			})
			continue
		}

		var missing []string
		for _, field := range kt.Required {
			if v, known := pub.Field(field); known && strings.TrimSpace(v) == "" {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			issues = append(issues, CheckIssue{
				Type:    "missing_fields",
				Citekey: pub.Citekey,
				Fields:  missing,
				Reason:  kt.Name,
			})
		}
	}

	return issues
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
