package costpreview

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codesentinel/codesentinel/internal/analyzer"
	"github.com/codesentinel/codesentinel/internal/llm"
	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/internal/source"
	"github.com/codesentinel/codesentinel/internal/tokens"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
	"github.com/codesentinel/codesentinel/pkg/shared/logger"
)

// RunOptionsCostPreview holds the cost-preview command flags.
type RunOptionsCostPreview struct {
	Provider   string
	SampleSize int
	Quick      bool
}

var (
	AppConfig          *config.Config
	costPreviewOptions RunOptionsCostPreview
)

// CostPreviewCmd estimates the classification spend for a repository before
// committing to a full run.
var CostPreviewCmd = &cobra.Command{
	Use:                   "cost-preview [--provider PROVIDER] [--sample-size N] [--quick] REPO_URL",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Estimate the LLM cost of analyzing a repository",
	RunE:                  runCostPreviewCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func init() {
	flags := CostPreviewCmd.Flags()
	flags.StringVarP(&costPreviewOptions.Provider, "provider", "p", "", "LLM provider to price against (openai|bedrock)")
	flags.IntVar(&costPreviewOptions.SampleSize, "sample-size", config.DefaultSampleSize, "files to classify for the sampled estimate")
	flags.BoolVar(&costPreviewOptions.Quick, "quick", false, "size-based heuristic only, no API calls")
}

func runCostPreviewCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-cost-preview")

	if len(args) != 1 {
		return errors.NewConfigError("cost-preview requires exactly one repository URL argument")
	}

	providerName := costPreviewOptions.Provider
	if providerName == "" {
		providerName = AppConfig.LLM.DefaultProvider
	}

	src, err := source.New(args[0], AppConfig, logger)
	if err != nil {
		return err
	}
	_, commit, err := src.Resolve(cmd.Context())
	if err != nil {
		return err
	}
	remote, err := src.ListFiles(cmd.Context(), commit)
	if err != nil {
		return err
	}

	m := inventory(args[0], commit, remote)
	if costPreviewOptions.Quick {
		return quickPreview(m, providerName)
	}

	provider, err := llm.New(providerName, AppConfig, logger)
	if err != nil {
		return err
	}
	a := analyzer.New(src, provider, AppConfig, analyzer.Options{
		SampleSize: costPreviewOptions.SampleSize,
	}, logger)

	preview, err := a.PreviewCost(cmd.Context(), m)
	if err != nil {
		return err
	}
	fmt.Printf("Sampled %d of %d candidate files with %s:\n", preview.SampleSize, preview.TotalFiles, providerName)
	fmt.Printf("  mean cost per file: $%.6f\n", preview.MeanCostPer1)
	fmt.Printf("  projected tokens:   %d input, %d output\n",
		preview.ProjectedInputTokens, preview.ProjectedOutputTokens)
	fmt.Printf("  estimated total:    $%.4f (95%% band $%.4f - $%.4f)\n",
		preview.EstimatedTotal, preview.LowTotal, preview.HighTotal)
	return nil
}

// inventory builds an in-memory manifest from a tree listing; nothing is
// written to disk.
func inventory(repoURL, commit string, remote []source.RemoteFile) *manifest.Manifest {
	allowed := make(map[string]bool, len(AppConfig.Analysis.FileExtensions))
	for _, ext := range AppConfig.Analysis.FileExtensions {
		allowed[ext] = true
	}

	m := manifest.New(manifest.Repository{URL: repoURL, CommitSHA: commit})
	for _, f := range remote {
		ext := strings.ToLower(filepath.Ext(f.Path))
		if !allowed[ext] {
			continue
		}
		m.Files = append(m.Files, manifest.FileEntry{
			Path: f.Path, BlobID: f.BlobID, Size: f.Size, Extension: ext,
		})
	}
	return m
}

// quickPreview prices the whole tree from extension and size heuristics.
func quickPreview(m *manifest.Manifest, providerName string) error {
	pc := AppConfig.LLM.Providers[providerName]

	var total float64
	counted := 0
	for i := range m.Files {
		e := &m.Files[i]
		if e.Size > AppConfig.Analysis.MaxFileSize {
			continue
		}
		total += tokens.EstimateCost(e.Extension, e.Size, pc.InputRatePer1K, pc.OutputRatePer1K)
		counted++
	}

	fmt.Printf("Heuristic estimate for %d candidate files with %s (model %s):\n", counted, providerName, pc.Model)
	fmt.Printf("  estimated total: $%.4f\n", total)
	fmt.Println("  (size-based heuristic; run without --quick for a sampled estimate)")
	return nil
}
