package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codesentinel/codesentinel/cmd/analyze"
	analyzetokens "github.com/codesentinel/codesentinel/cmd/analyze-tokens"
	costpreview "github.com/codesentinel/codesentinel/cmd/cost-preview"
	"github.com/codesentinel/codesentinel/cmd/show"
	testconnection "github.com/codesentinel/codesentinel/cmd/test-connection"
	testllm "github.com/codesentinel/codesentinel/cmd/test-llm"
	testvulnerabilityscanner "github.com/codesentinel/codesentinel/cmd/test-vulnerability-scanner"
	"github.com/codesentinel/codesentinel/cmd/version"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "codesentinel [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "CodeSentinel audits remote repositories into a single analysis manifest.",
		Long: `CodeSentinel inventories a remote repository, accounts LLM token costs,
classifies every file with an LLM provider, runs vulnerability scanners over a pinned
checkout, and computes deterministic risk scores - all into one JSON manifest that is
enriched phase by phase.
`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml)")
	rootCmd.AddCommand(analyze.AnalyzeCmd)
	rootCmd.AddCommand(analyzetokens.AnalyzeTokensCmd)
	rootCmd.AddCommand(costpreview.CostPreviewCmd)
	rootCmd.AddCommand(show.ShowCmd)
	rootCmd.AddCommand(testconnection.TestConnectionCmd)
	rootCmd.AddCommand(testllm.TestLLMCmd)
	rootCmd.AddCommand(testvulnerabilityscanner.TestVulnerabilityScannerCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command under a signal-bound context and returns
// the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return errors.ExitCode(err)
	}
	return errors.ExitOK
}

func initConfig() {
	var err error

	if cfgFile == "" {
		cfgFile = "config.yml"
	}
	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize configuration: %v\n", err)
		os.Exit(errors.ExitConfig)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errors.ExitConfig)
	}

	analyze.Init(AppConfig)
	analyzetokens.Init(AppConfig)
	costpreview.Init(AppConfig)
	show.Init(AppConfig)
	testconnection.Init(AppConfig)
	testllm.Init(AppConfig)
	testvulnerabilityscanner.Init(AppConfig)
	version.Init(AppConfig)
}
