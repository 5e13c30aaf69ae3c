package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

type bandit struct {
	cfg    *config.Config
	logger hclog.Logger
}

func newBandit(cfg *config.Config, logger hclog.Logger) *bandit {
	return &bandit{cfg: cfg, logger: logger.Named("bandit")}
}

func (b *bandit) Name() string { return "bandit" }

func (b *bandit) Available(ctx context.Context) error {
	return checkVersion(ctx, "bandit", 1, 7, b.logger)
}

func (b *bandit) Install(ctx context.Context) error {
	return pipInstall(ctx, "bandit", b.logger)
}

type banditOutput struct {
	Results []struct {
		Filename        string `json:"filename"`
		TestID          string `json:"test_id"`
		IssueSeverity   string `json:"issue_severity"`
		IssueConfidence string `json:"issue_confidence"`
		IssueText       string `json:"issue_text"`
		LineNumber      int    `json:"line_number"`
		LineRange       []int  `json:"line_range"`
		IssueCWE        struct {
			ID int `json:"id"`
		} `json:"issue_cwe"`
		MoreInfo string `json:"more_info"`
	} `json:"results"`
}

func (b *bandit) Run(ctx context.Context, repoDir string) ([]FileFinding, error) {
	out, err := runCommand(ctx, b.Name(), b.cfg.ScannerTimeout(b.Name()), repoDir,
		"bandit", b.args()...)
	if err != nil {
		return nil, err
	}
	return b.parse(out)
}

// args builds the invocation; bandit takes its excludes as one comma-joined
// -x argument.
func (b *bandit) args() []string {
	args := []string{"-r", ".", "-f", "json"}
	if patterns := b.cfg.VulnerabilityScanning.Scanners[b.Name()].ExcludePatterns; len(patterns) > 0 {
		args = append(args, "-x", strings.Join(patterns, ","))
	}
	return args
}

func (b *bandit) parse(out []byte) ([]FileFinding, error) {
	var report banditOutput
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("failed to decode bandit report: %w", err)
	}

	findings := make([]FileFinding, 0, len(report.Results))
	for _, r := range report.Results {
		var cwe string
		if r.IssueCWE.ID != 0 {
			cwe = fmt.Sprintf("CWE-%d", r.IssueCWE.ID)
		}
		var refs []string
		if r.MoreInfo != "" {
			refs = []string{r.MoreInfo}
		}
		findings = append(findings, FileFinding{
			Path: cleanPath(r.Filename),
			Finding: manifest.Finding{
				ScannerName: b.Name(),
				RuleID:      r.TestID,
				Severity:    strings.ToLower(r.IssueSeverity),
				Message:     r.IssueText,
				LineStart:   r.LineNumber,
				LineEnd:     lineRangeEnd(r.LineNumber, r.LineRange),
				Confidence:  strings.ToLower(r.IssueConfidence),
				CWE:         cwe,
				References:  refs,
			},
		})
	}
	return findings, nil
}

// lineRangeEnd picks the last line of bandit's line_range, defaulting to
// the start line.
func lineRangeEnd(start int, lineRange []int) int {
	end := start
	for _, l := range lineRange {
		if l > end {
			end = l
		}
	}
	return end
}
