package testvulnerabilityscanner

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codesentinel/codesentinel/internal/scanner"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
	"github.com/codesentinel/codesentinel/pkg/shared/logger"
)

var (
	AppConfig *config.Config
	scanners  []string
)

// TestVulnerabilityScannerCmd reports which scanners are installed at a
// usable version.
var TestVulnerabilityScannerCmd = &cobra.Command{
	Use:                   "test-vulnerability-scanner [--scanners LIST]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Check vulnerability scanner availability and versions",
	RunE:                  runTestVulnerabilityScannerCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func init() {
	TestVulnerabilityScannerCmd.Flags().StringSliceVar(&scanners, "scanners", []string{"semgrep", "bandit"}, "scanners to check")
}

func runTestVulnerabilityScannerCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-test-vulnerability-scanner")

	runner, err := scanner.NewRunner(nil, scanners, AppConfig, logger)
	if err != nil {
		return err
	}

	report := runner.Probe(cmd.Context())
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	available := 0
	for _, name := range names {
		if report[name] == nil {
			fmt.Printf("%s: available\n", name)
			available++
			continue
		}
		fmt.Printf("%s: %v\n", name, report[name])
	}

	if available == 0 && len(names) > 0 {
		return &errors.ScannerUnavailableError{Scanner: names[0], Reason: "no usable scanner found"}
	}
	return nil
}
