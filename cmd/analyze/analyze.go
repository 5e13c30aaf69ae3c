package analyze

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/codesentinel/codesentinel/internal/phases"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/files"
	"github.com/codesentinel/codesentinel/pkg/shared/logger"
)

// RunOptionsAnalyze holds the analyze command flags.
type RunOptionsAnalyze struct {
	Phases              []string
	Provider            string
	Output              string
	ScanVulnerabilities bool
	Scanners            []string
	SkipCostPreview     bool
	Reanalyze           bool
}

var (
	AppConfig           *config.Config
	analyzeOptions      RunOptionsAnalyze
	exampleAnalyzeUsage = `# Full analysis of a repository
  codesentinel analyze https://github.com/org/repo

  # Inventory and token accounting only
  codesentinel analyze --phase 1 --phase 1.5 https://github.com/org/repo

  # Classification with Bedrock, no consent prompt
  codesentinel analyze --phase 2.5 --provider bedrock --skip-cost-preview https://github.com/org/repo

  # Vulnerability scan and risk scoring with semgrep only
  codesentinel analyze --phase 3 --scanners semgrep https://github.com/org/repo`
)

// AnalyzeCmd represents the command driving the analysis phases.
var AnalyzeCmd = &cobra.Command{
	Use:                   "analyze [--phase N]... [--provider PROVIDER] [--output DIR] [--scan-vulnerabilities] [--scanners LIST] [--skip-cost-preview] [--reanalyze] REPO_URL",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleAnalyzeUsage,
	Short:                 "Analyze a remote repository into an enriched manifest",
	RunE:                  runAnalyzeCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func init() {
	flags := AnalyzeCmd.Flags()
	flags.StringArrayVar(&analyzeOptions.Phases, "phase", nil, "phase to run: 1 (inventory), 1.5 (tokens), 2.5 (classification), 3 (scan+risk); repeatable")
	flags.StringVarP(&analyzeOptions.Provider, "provider", "p", "", "LLM provider for classification (openai|bedrock)")
	flags.StringVarP(&analyzeOptions.Output, "output", "o", "", "output directory for the manifest")
	flags.BoolVar(&analyzeOptions.ScanVulnerabilities, "scan-vulnerabilities", false, "include the vulnerability scanning phase")
	flags.StringSliceVar(&analyzeOptions.Scanners, "scanners", nil, "scanners to run in phase 3 (semgrep,bandit)")
	flags.BoolVar(&analyzeOptions.SkipCostPreview, "skip-cost-preview", false, "skip the cost preview and consent prompt")
	flags.BoolVar(&analyzeOptions.Reanalyze, "reanalyze", false, "re-classify files that already carry a purpose")
}

func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !hasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	logger := logger.NewLogger(AppConfig, "core-analyze")

	if err := validateAnalyzeArgs(&analyzeOptions, args); err != nil {
		logger.Error("invalid analyze arguments", "error", err)
		return err
	}
	repoURL := args[0]

	outputDir := analyzeOptions.Output
	if outputDir == "" {
		outputDir = AppConfig.Output.DefaultDir
	}
	if err := files.CreateFolderIfNotExists(outputDir); err != nil {
		return err
	}
	manifestPath := filepath.Join(outputDir, AppConfig.Output.ManifestFilename)

	controller, err := phases.New(repoURL, manifestPath, AppConfig, phases.Options{
		Provider:    analyzeOptions.Provider,
		Scanners:    analyzeOptions.Scanners,
		Reanalyze:   analyzeOptions.Reanalyze,
		SkipPreview: analyzeOptions.SkipCostPreview,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
	}, logger)
	if err != nil {
		return err
	}

	requested := requestedPhases(&analyzeOptions)
	logger.Info("starting analysis", "repository", repoURL, "phases", requested, "manifest", manifestPath)
	if err := controller.Run(cmd.Context(), requested); err != nil {
		logger.Error("analysis failed", "error", err)
		return err
	}
	logger.Info("analysis complete", "manifest", manifestPath)
	return nil
}

// hasFlags reports whether the user set any flag explicitly.
func hasFlags(flags *pflag.FlagSet) bool {
	changed := false
	flags.Visit(func(*pflag.Flag) { changed = true })
	return changed
}

// requestedPhases applies the flag defaults: all enrichment phases when none
// are named, with phase 3 gated behind --scan-vulnerabilities.
func requestedPhases(opts *RunOptionsAnalyze) []string {
	if len(opts.Phases) > 0 {
		return opts.Phases
	}
	requested := []string{phases.PhaseInventory, phases.PhaseTokens, phases.PhaseClassification}
	if opts.ScanVulnerabilities {
		requested = append(requested, phases.PhaseRisk)
	}
	return requested
}
