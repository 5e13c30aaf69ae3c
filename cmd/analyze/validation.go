package analyze

import (
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

var knownProviders = map[string]bool{"openai": true, "bedrock": true}
var knownScanners = map[string]bool{"semgrep": true, "bandit": true}

// validateAnalyzeArgs checks the positional argument and flag domains before
// any work starts.
func validateAnalyzeArgs(opts *RunOptionsAnalyze, args []string) error {
	if len(args) != 1 {
		return errors.NewConfigError("analyze requires exactly one repository URL argument")
	}
	if opts.Provider != "" && !knownProviders[opts.Provider] {
		return errors.NewConfigError("unknown provider %q (valid: openai, bedrock)", opts.Provider)
	}
	for _, s := range opts.Scanners {
		if !knownScanners[s] {
			return errors.NewConfigError("unknown scanner %q (valid: semgrep, bandit)", s)
		}
	}
	if len(opts.Scanners) > 0 && !opts.ScanVulnerabilities && !containsPhase(opts.Phases, "3") {
		return errors.NewConfigError("--scanners requires --scan-vulnerabilities or --phase 3")
	}
	return nil
}

func containsPhase(phases []string, want string) bool {
	for _, p := range phases {
		if p == want {
			return true
		}
	}
	return false
}
