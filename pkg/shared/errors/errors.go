package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Process exit codes surfaced by the CLI.
const (
	ExitOK                 = 0
	ExitError              = 1
	ExitConfig             = 2
	ExitSourceUnavailable  = 3
	ExitCancelled          = 4
	ExitScannerUnavailable = 5
)

// ConfigError reports an invalid or unusable configuration value.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// NewConfigError creates a ConfigError from a format string.
func NewConfigError(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// StaleManifestError reports that a phase resolved a different commit than the
// one pinned in the manifest.
type StaleManifestError struct {
	Pinned   string
	Resolved string
}

func (e *StaleManifestError) Error() string {
	return fmt.Sprintf("manifest is pinned to commit %s but the repository resolved to %s", e.Pinned, e.Resolved)
}

// SourceUnavailableError reports a permanent failure of the repository host.
type SourceUnavailableError struct {
	Host   string
	Status int
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("source %q unavailable (HTTP %d): %v", e.Host, e.Status, e.Err)
	}
	return fmt.Sprintf("source %q unavailable: %v", e.Host, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// CancelledError reports a cooperative shutdown; partial results were saved.
type CancelledError struct {
	Phase string
}

func (e *CancelledError) Error() string {
	if e.Phase == "" {
		return "operation cancelled"
	}
	return fmt.Sprintf("phase %s cancelled", e.Phase)
}

// RateLimitedError is a retryable throttling signal from a provider or host.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// ProviderExhaustedError reports that retries against one provider ran out;
// the analyzer reacts by falling back to the secondary provider.
type ProviderExhaustedError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ProviderExhaustedError) Error() string {
	return fmt.Sprintf("provider %q exhausted after %d attempts: %v", e.Provider, e.Attempts, e.Err)
}

func (e *ProviderExhaustedError) Unwrap() error { return e.Err }

// MalformedResponseError reports an LLM reply that did not contain the
// required JSON object. Per-file and non-fatal.
type MalformedResponseError struct {
	Provider string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %q: %s", e.Provider, e.Reason)
}

// ScannerUnavailableError reports a scanner that could not be provisioned.
type ScannerUnavailableError struct {
	Scanner string
	Reason  string
}

func (e *ScannerUnavailableError) Error() string {
	return fmt.Sprintf("scanner %q unavailable: %s", e.Scanner, e.Reason)
}

// ScannerTimeoutError reports a scanner that exceeded its wall-clock budget.
// Its partial output is discarded.
type ScannerTimeoutError struct {
	Scanner string
	Timeout time.Duration
}

func (e *ScannerTimeoutError) Error() string {
	return fmt.Sprintf("scanner %q timed out after %s", e.Scanner, e.Timeout)
}

// CorruptManifestError reports a manifest file that is not valid JSON.
type CorruptManifestError struct {
	Path string
	Err  error
}

func (e *CorruptManifestError) Error() string {
	return fmt.Sprintf("manifest %q is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptManifestError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a manifest missing required top-level keys.
type SchemaMismatchError struct {
	Path    string
	Missing string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("manifest %q does not match the expected schema: missing %s", e.Path, e.Missing)
}

// NotFoundError reports a missing manifest file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("manifest %q not found", e.Path)
}

// ExitCode maps an error to the process exit code the CLI should return.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		configErr  *ConfigError
		staleErr   *StaleManifestError
		sourceErr  *SourceUnavailableError
		cancelErr  *CancelledError
		scannerErr *ScannerUnavailableError
	)
	switch {
	case errors.As(err, &configErr), errors.As(err, &staleErr):
		return ExitConfig
	case errors.As(err, &sourceErr):
		return ExitSourceUnavailable
	case errors.As(err, &cancelErr), errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.As(err, &scannerErr):
		return ExitScannerUnavailable
	default:
		return ExitError
	}
}

// IsRateLimited reports whether err carries a throttling signal anywhere in
// its chain.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}
