package testconnection

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codesentinel/codesentinel/internal/source"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
	"github.com/codesentinel/codesentinel/pkg/shared/logger"
)

var AppConfig *config.Config

// TestConnectionCmd verifies repository host access. With a URL it resolves
// the repository for real; without one it only reports token availability.
var TestConnectionCmd = &cobra.Command{
	Use:                   "test-connection [REPO_URL]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Verify repository host API access",
	RunE:                  runTestConnectionCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runTestConnectionCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-test-connection")

	if len(args) > 1 {
		return errors.NewConfigError("test-connection accepts at most one repository URL")
	}

	if len(args) == 0 {
		reportTokens()
		return nil
	}

	src, err := source.New(args[0], AppConfig, logger)
	if err != nil {
		return err
	}
	branch, commit, err := src.Resolve(cmd.Context())
	if err != nil {
		logger.Error("connection test failed", "host", src.Name(), "error", err)
		return err
	}

	fmt.Printf("OK: %s resolved %s to branch %q at commit %s\n", src.Name(), args[0], branch, commit)
	return nil
}

func reportTokens() {
	for _, env := range []string{"GITHUB_TOKEN", "GITLAB_TOKEN"} {
		state := "not set"
		if os.Getenv(env) != "" {
			state = "set"
		}
		fmt.Printf("%s: %s\n", env, state)
	}
	if AppConfig.Source.Token != "" || AppConfig.Source.TokenEnv != "" {
		fmt.Println("config source token: set")
	}
}
