package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

func NewLogger(config *config.Config, name string) hclog.Logger {
	var logLevel hclog.Level

	if config != nil && config.Logger.Level != "" {
		logLevel = getLogLevel(strings.ToUpper(config.Logger.Level))
	} else {
		// env variables has the second priority
		logLevelEnv := os.Getenv("CODESENTINEL_LOG_LEVEL")
		logLevel = getLogLevel(strings.ToUpper(logLevelEnv))
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:        name,
		DisableTime: true,
		Output:      os.Stderr,
		Level:       logLevel,
	})

	return logger
}

// GetLoggerOutput returns an io.Writer that forwards subprocess and progress
// output through the logger at debug level, or io.Discard below debug.
func GetLoggerOutput(logger hclog.Logger) io.Writer {
	if logger.IsDebug() {
		return logger.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})
	}
	return io.Discard
}

func getLogLevel(levelStr string) hclog.Level {
	switch levelStr {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO":
		return hclog.Info
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		return hclog.Info
	}
}
