package show

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/internal/tokens"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

var (
	AppConfig *config.Config
	topRisks  int
)

// ShowCmd renders a manifest as a human-readable summary.
var ShowCmd = &cobra.Command{
	Use:                   "show MANIFEST_PATH",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Print a human summary of an analysis manifest",
	RunE:                  runShowCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func init() {
	ShowCmd.Flags().IntVar(&topRisks, "top", 5, "number of highest-risk files to list")
}

func runShowCommand(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.NewConfigError("show requires exactly one manifest path argument")
	}

	m, err := manifest.Load(args[0])
	if err != nil {
		return err
	}
	render(os.Stdout, m, topRisks)
	return nil
}

func render(w io.Writer, m *manifest.Manifest, top int) {
	fmt.Fprintf(w, "Repository: %s\n", m.Repository.URL)
	fmt.Fprintf(w, "  branch:   %s\n", m.Repository.DefaultBranch)
	fmt.Fprintf(w, "  commit:   %s\n", m.Repository.CommitSHA)
	fmt.Fprintf(w, "  analyzed: %s\n", m.Repository.AnalysisTimestamp)
	fmt.Fprintf(w, "  files:    %d\n\n", len(m.Files))

	renderCounts(w, "Files by category", categoryCounts(m))
	renderCounts(w, "Files by priority", priorityCounts(m))

	stats := tokens.Aggregate(m)
	if stats.TotalFiles > 0 {
		fmt.Fprintf(w, "Tokens: %d total across %d files (estimated cost $%.4f)\n\n",
			stats.TotalTokens, stats.TotalFiles, stats.TotalEstimatedCost)
	}

	renderTopRisks(w, m, top)
}

func categoryCounts(m *manifest.Manifest) map[string]int {
	counts := map[string]int{}
	for i := range m.Files {
		if c := m.Files[i].Category; c != "" {
			counts[c]++
		}
	}
	return counts
}

func priorityCounts(m *manifest.Manifest) map[string]int {
	counts := map[string]int{}
	for i := range m.Files {
		if ra := m.Files[i].RiskAssessment; ra != nil {
			counts[ra.Priority]++
		}
	}
	return counts
}

func renderCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-18s %d\n", k, counts[k])
	}
	fmt.Fprintln(w)
}

func renderTopRisks(w io.Writer, m *manifest.Manifest, top int) {
	type scored struct {
		path string
		ra   *manifest.RiskAssessment
	}
	var rows []scored
	for i := range m.Files {
		if ra := m.Files[i].RiskAssessment; ra != nil {
			rows = append(rows, scored{m.Files[i].Path, ra})
		}
	}
	if len(rows) == 0 {
		return
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ra.RiskScore != rows[j].ra.RiskScore {
			return rows[i].ra.RiskScore > rows[j].ra.RiskScore
		}
		return rows[i].path < rows[j].path
	})
	if top > len(rows) {
		top = len(rows)
	}

	fmt.Fprintln(w, "Top risks:")
	for _, r := range rows[:top] {
		fmt.Fprintf(w, "  %5.2f  %-8s  %s (SLA %dh)\n", r.ra.RiskScore, r.ra.Priority, r.path, r.ra.SLAHours)
	}
}
