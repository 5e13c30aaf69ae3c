package source

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := &errors.SourceUnavailableError{Host: "github.com", Status: http.StatusNotFound, Err: stderrors.New("not found")}

	err := withRetry(context.Background(), hclog.NewNullLogger(), "op", func() error {
		calls++
		return permanent
	})

	assert.Equal(t, 1, calls, "permanent errors must not be retried")
	var source *errors.SourceUnavailableError
	require.ErrorAs(t, err, &source)
	assert.Equal(t, http.StatusNotFound, source.Status)
}

func TestWithRetryRecoversFromTransientError(t *testing.T) {
	calls := 0

	err := withRetry(context.Background(), hclog.NewNullLogger(), "op", func() error {
		calls++
		if calls < 3 {
			return &errors.RateLimitedError{Err: stderrors.New("429")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0

	err := withRetry(context.Background(), hclog.NewNullLogger(), "op", func() error {
		calls++
		return &errors.SourceUnavailableError{Host: "github.com", Status: http.StatusBadGateway, Err: stderrors.New("502")}
	})

	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, hclog.NewNullLogger(), "op", func() error {
		return &errors.RateLimitedError{Err: stderrors.New("429")}
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestJitterStaysWithinSpread(t *testing.T) {
	base := 1 * time.Second
	for i := 0; i < 100; i++ {
		d := jitter(base)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}

func TestClassifyStatus(t *testing.T) {
	cause := stderrors.New("host said no")

	tests := []struct {
		name        string
		status      int
		rateLimited bool
		unavailable bool
	}{
		{name: "Too many requests is retryable", status: http.StatusTooManyRequests, rateLimited: true},
		{name: "Server error is unavailable", status: http.StatusBadGateway, unavailable: true},
		{name: "Not found is unavailable", status: http.StatusNotFound, unavailable: true},
		{name: "Unauthorized is unavailable", status: http.StatusUnauthorized, unavailable: true},
		{name: "Forbidden is unavailable", status: http.StatusForbidden, unavailable: true},
		{name: "Other statuses pass through", status: http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("github.com", tt.status, cause)
			assert.Equal(t, tt.rateLimited, errors.IsRateLimited(err))

			var source *errors.SourceUnavailableError
			assert.Equal(t, tt.unavailable, stderrors.As(err, &source))
			if !tt.rateLimited && !tt.unavailable {
				assert.Equal(t, cause, err)
			}
		})
	}
}

func TestIsTransientDistinguishesServerErrors(t *testing.T) {
	assert.True(t, isTransient(&errors.RateLimitedError{Err: stderrors.New("429")}))
	assert.True(t, isTransient(&errors.SourceUnavailableError{Status: http.StatusServiceUnavailable}))
	assert.False(t, isTransient(&errors.SourceUnavailableError{Status: http.StatusNotFound}))
	assert.False(t, isTransient(stderrors.New("something else")))
}
