package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

type semgrep struct {
	cfg    *config.Config
	logger hclog.Logger
}

func newSemgrep(cfg *config.Config, logger hclog.Logger) *semgrep {
	return &semgrep{cfg: cfg, logger: logger.Named("semgrep")}
}

func (s *semgrep) Name() string { return "semgrep" }

func (s *semgrep) Available(ctx context.Context) error {
	return checkVersion(ctx, "semgrep", 1, 0, s.logger)
}

func (s *semgrep) Install(ctx context.Context) error {
	return pipInstall(ctx, "semgrep", s.logger)
}

// semgrepOutput is the native JSON report shape.
type semgrepOutput struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		End struct {
			Line int `json:"line"`
		} `json:"end"`
		Extra struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
			Fix      string `json:"fix"`
			Metadata struct {
				CWE        jsonStrings `json:"cwe"`
				References []string    `json:"references"`
				Confidence string      `json:"confidence"`
			} `json:"metadata"`
		} `json:"extra"`
	} `json:"results"`
}

// jsonStrings accepts both a string and a list of strings; semgrep rules
// emit either shape for cwe.
type jsonStrings []string

func (j *jsonStrings) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*j = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*j = many
	return nil
}

func (s *semgrep) Run(ctx context.Context, repoDir string) ([]FileFinding, error) {
	out, err := runCommand(ctx, s.Name(), s.cfg.ScannerTimeout(s.Name()), repoDir,
		"semgrep", s.args()...)
	if err != nil {
		return nil, err
	}
	return s.parse(out)
}

// args builds the invocation, excluding configured trees up front so they
// never burn scan time.
func (s *semgrep) args() []string {
	args := []string{"--json", "--quiet", "--config", "auto"}
	for _, pattern := range s.cfg.VulnerabilityScanning.Scanners[s.Name()].ExcludePatterns {
		args = append(args, "--exclude", pattern)
	}
	return append(args, ".")
}

// parse reads the native report, falling back to SARIF when the output
// carries a runs array instead.
func (s *semgrep) parse(out []byte) ([]FileFinding, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("semgrep output is not JSON: %w", err)
	}
	if _, isSarif := probe["runs"]; isSarif {
		return s.parseSarif(out)
	}

	var report semgrepOutput
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("failed to decode semgrep report: %w", err)
	}

	findings := make([]FileFinding, 0, len(report.Results))
	for _, r := range report.Results {
		findings = append(findings, FileFinding{
			Path: cleanPath(r.Path),
			Finding: manifest.Finding{
				ScannerName:   s.Name(),
				RuleID:        r.CheckID,
				Severity:      semgrepSeverity(r.Extra.Severity),
				Message:       r.Extra.Message,
				LineStart:     r.Start.Line,
				LineEnd:       r.End.Line,
				Confidence:    strings.ToLower(r.Extra.Metadata.Confidence),
				CWE:           firstOf(r.Extra.Metadata.CWE),
				FixSuggestion: r.Extra.Fix,
				References:    r.Extra.Metadata.References,
			},
		})
	}
	return findings, nil
}

func (s *semgrep) parseSarif(out []byte) ([]FileFinding, error) {
	report, err := sarif.FromBytes(out)
	if err != nil {
		return nil, &errors.ScannerUnavailableError{Scanner: s.Name(), Reason: "invalid SARIF output: " + err.Error()}
	}

	var findings []FileFinding
	for _, run := range report.Runs {
		for _, result := range run.Results {
			if len(result.Locations) == 0 || result.Locations[0].PhysicalLocation == nil {
				continue
			}
			loc := result.Locations[0].PhysicalLocation
			path := ""
			if loc.ArtifactLocation != nil && loc.ArtifactLocation.URI != nil {
				path = *loc.ArtifactLocation.URI
			}
			start, end := 0, 0
			if loc.Region != nil {
				if loc.Region.StartLine != nil {
					start = *loc.Region.StartLine
				}
				end = start
				if loc.Region.EndLine != nil {
					end = *loc.Region.EndLine
				}
			}
			findings = append(findings, FileFinding{
				Path: cleanPath(path),
				Finding: manifest.Finding{
					ScannerName: s.Name(),
					RuleID:      deref(result.RuleID),
					Severity:    sarifSeverity(deref(result.Level)),
					Message:     deref(result.Message.Text),
					LineStart:   start,
					LineEnd:     end,
				},
			})
		}
	}
	return findings, nil
}

// semgrepSeverity maps semgrep's ERROR/WARNING/INFO onto the manifest scale.
func semgrepSeverity(s string) string {
	switch strings.ToUpper(s) {
	case "ERROR":
		return "high"
	case "WARNING":
		return "medium"
	case "INFO":
		return "info"
	default:
		return "medium"
	}
}

func sarifSeverity(level string) string {
	switch strings.ToLower(level) {
	case "error":
		return "high"
	case "warning":
		return "medium"
	case "note", "none":
		return "info"
	default:
		return "medium"
	}
}

// cleanPath strips the leading "./" scanners produce when pointed at the
// clone root.
func cleanPath(p string) string {
	return strings.TrimPrefix(p, "./")
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

