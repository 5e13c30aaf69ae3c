package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

var (
	AppConfig *config.Config

	// Set at build time via -ldflags.
	CoreVersion = "unknown"
	BuildTime   = "unknown"
)

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// NewVersionCmd creates a new cobra.Command for the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Print the version number of the application",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("codesentinel %s (built %s, %s)\n", CoreVersion, BuildTime, runtime.Version())
		},
	}
}
