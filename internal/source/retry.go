package source

import (
	"context"
	stderrors "errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

// Retry policy for transient host errors: exponential backoff, base 1s,
// factor 2, jitter ±25%, up to 5 attempts.
const (
	maxAttempts   = 5
	backoffBase   = 1 * time.Second
	backoffFactor = 2
	jitterRatio   = 0.25
)

// withRetry runs fn, retrying on transient failures. Permanent host errors
// and context cancellation surface immediately.
func withRetry(ctx context.Context, logger hclog.Logger, op string, fn func() error) error {
	var err error
	delay := backoffBase

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		wait := jitter(delay)
		logger.Warn("transient host error, backing off", "operation", op, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= backoffFactor
	}
	return err
}

// jitter spreads a delay by ±25% so concurrent workers do not retry in
// lockstep.
func jitter(d time.Duration) time.Duration {
	spread := float64(d) * jitterRatio
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}

// isTransient reports whether err is worth retrying: throttling signals and
// server-side failures. Auth and not-found errors are permanent.
func isTransient(err error) bool {
	if errors.IsRateLimited(err) {
		return true
	}
	var source *errors.SourceUnavailableError
	if stderrors.As(err, &source) {
		return source.Status >= http.StatusInternalServerError
	}
	return false
}

// classifyStatus maps an HTTP status from the host into the error taxonomy.
func classifyStatus(host string, status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &errors.RateLimitedError{Err: err}
	case status >= http.StatusInternalServerError:
		return &errors.SourceUnavailableError{Host: host, Status: status, Err: err}
	case status == http.StatusNotFound, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &errors.SourceUnavailableError{Host: host, Status: status, Err: err}
	default:
		return err
	}
}
