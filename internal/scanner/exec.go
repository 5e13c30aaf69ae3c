package scanner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// runCommand executes an external tool under a wall-clock budget and
// returns its stdout. A deadline hit maps to ScannerTimeoutError; a nonzero
// exit with output is NOT an error here because scanners signal "findings
// present" through their exit code.
func runCommand(ctx context.Context, scanner string, timeout time.Duration, dir string, name string, args ...string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cmdCtx.Err() == context.DeadlineExceeded {
		return nil, &errors.ScannerTimeoutError{Scanner: scanner, Timeout: timeout}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) && stdout.Len() > 0 {
			return stdout.Bytes(), nil
		}
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// checkVersion probes `<tool> --version` and enforces a minimum.
func checkVersion(ctx context.Context, tool string, minMajor, minMinor int, logger hclog.Logger) error {
	out, err := exec.CommandContext(ctx, tool, "--version").CombinedOutput()
	if err != nil {
		return &errors.ScannerUnavailableError{Scanner: tool, Reason: "not installed"}
	}

	major, minor, ok := parseVersion(string(out))
	if !ok {
		return &errors.ScannerUnavailableError{Scanner: tool, Reason: "unparseable version: " + strings.TrimSpace(string(out))}
	}
	if major < minMajor || (major == minMajor && minor < minMinor) {
		return &errors.ScannerUnavailableError{
			Scanner: tool,
			Reason:  fmt.Sprintf("version %d.%d below required %d.%d", major, minor, minMajor, minMinor),
		}
	}
	logger.Debug("scanner version ok", "scanner", tool, "version", fmt.Sprintf("%d.%d", major, minor))
	return nil
}

func parseVersion(out string) (major, minor int, ok bool) {
	match := versionPattern.FindStringSubmatch(out)
	if match == nil {
		return 0, 0, false
	}
	major, _ = strconv.Atoi(match[1])
	minor, _ = strconv.Atoi(match[2])
	return major, minor, true
}

// pipInstall provisions a Python-based scanner through pip3.
func pipInstall(ctx context.Context, pkg string, logger hclog.Logger) error {
	logger.Info("installing via pip3", "package", pkg)
	out, err := exec.CommandContext(ctx, "pip3", "install", "--user", pkg).CombinedOutput()
	if err != nil {
		return &errors.ScannerUnavailableError{
			Scanner: pkg,
			Reason:  fmt.Sprintf("pip3 install failed: %v: %s", err, strings.TrimSpace(string(out))),
		}
	}
	return nil
}
