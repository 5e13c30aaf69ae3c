package analyzetokens

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/internal/source"
	"github.com/codesentinel/codesentinel/internal/tokens"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
	"github.com/codesentinel/codesentinel/pkg/shared/files"
	"github.com/codesentinel/codesentinel/pkg/shared/logger"
)

var (
	AppConfig *config.Config
	provider  string
)

// AnalyzeTokensCmd runs standalone token accounting over an existing
// manifest and writes a sibling token-analysis report.
var AnalyzeTokensCmd = &cobra.Command{
	Use:                   "analyze-tokens [--provider PROVIDER] MANIFEST_PATH",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Count tokens for a manifest and write a token-analysis report",
	RunE:                  runAnalyzeTokensCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func init() {
	AnalyzeTokensCmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider to price against (openai|bedrock)")
}

func runAnalyzeTokensCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-analyze-tokens")

	if len(args) != 1 {
		return errors.NewConfigError("analyze-tokens requires exactly one manifest path argument")
	}
	manifestPath := args[0]

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	if m.Repository.URL == "" {
		return errors.NewConfigError("manifest %q has no repository URL", manifestPath)
	}

	providerName := provider
	if providerName == "" {
		providerName = AppConfig.LLM.DefaultProvider
	}

	src, err := source.New(m.Repository.URL, AppConfig, logger)
	if err != nil {
		return err
	}
	_, commit, err := src.Resolve(cmd.Context())
	if err != nil {
		return err
	}
	if m.Repository.CommitSHA != "" && m.Repository.CommitSHA != commit {
		return &errors.StaleManifestError{Pinned: m.Repository.CommitSHA, Resolved: commit}
	}

	accountant := tokens.NewAccountant(AppConfig, providerName, logger)
	for i := range m.Files {
		e := &m.Files[i]
		if e.Size > AppConfig.Analysis.MaxFileSize {
			continue
		}
		if err := cmd.Context().Err(); err != nil {
			return &errors.CancelledError{Phase: "tokens"}
		}
		content, err := src.FetchBlob(cmd.Context(), e.BlobID)
		if err != nil {
			return err
		}
		m.SetTokenStats(e.Path, accountant.Count(e.Path, e.Extension, string(content)))
	}

	if err := manifest.Save(manifestPath, m); err != nil {
		return err
	}

	report := tokens.BuildReport(m, accountant)
	reportPath := filepath.Join(filepath.Dir(manifestPath), AppConfig.Output.TokenAnalysisFilename)
	if err := files.WriteJSONAtomic(reportPath, report); err != nil {
		return err
	}

	fmt.Printf("Token accounting: %d files, %d tokens, estimated $%.4f (%s)\n",
		report.RepositoryStats.TotalFiles,
		report.RepositoryStats.TotalTokens,
		report.RepositoryStats.TotalEstimatedCost,
		report.AnalysisMetadata.Encoder)
	fmt.Printf("Report written to %s\n", reportPath)
	return nil
}
