package testllm

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesentinel/codesentinel/internal/llm"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/logger"
)

var (
	AppConfig *config.Config
	provider  string
)

// TestLLMCmd pings the selected LLM provider with a minimal request.
var TestLLMCmd = &cobra.Command{
	Use:                   "test-llm [--provider PROVIDER]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Verify LLM provider credentials and connectivity",
	RunE:                  runTestLLMCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func init() {
	TestLLMCmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider to test (openai|bedrock)")
}

func runTestLLMCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-test-llm")

	name := provider
	if name == "" {
		name = AppConfig.LLM.DefaultProvider
	}

	p, err := llm.New(name, AppConfig, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := p.TestConnection(ctx); err != nil {
		logger.Error("provider test failed", "provider", p.Name(), "error", err)
		return err
	}

	fmt.Printf("OK: provider %q (model %s) responded\n", p.Name(), p.Model())
	return nil
}
