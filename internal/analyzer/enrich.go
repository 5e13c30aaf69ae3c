package analyzer

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codesentinel/codesentinel/internal/llm"
	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

// Checkpoint persists the manifest mid-run. Called after every completed
// batch so an interrupted run loses at most one batch of work.
type Checkpoint func(m *manifest.Manifest) error

type result struct {
	entry          *manifest.FileEntry
	classification *llm.Classification
	err            error
}

// Enrich classifies every candidate entry, writing results into the
// manifest in inventory order. Work proceeds in batches sized by the
// configured concurrency; each finished batch is checkpointed. On
// cancellation the current batch is drained, a final checkpoint is written
// and a CancelledError is returned.
func (a *Analyzer) Enrich(ctx context.Context, m *manifest.Manifest, checkpoint Checkpoint) error {
	candidates := a.Candidates(m)
	if len(candidates) == 0 {
		a.logger.Info("no files to classify")
		return nil
	}
	a.logger.Info("starting classification", "files", len(candidates), "provider", a.provider.Name())

	batchSize := a.cfg.Analysis.BatchSize
	failed := 0
	for start := 0; start < len(candidates); start += batchSize {
		if ctx.Err() != nil {
			if err := checkpoint(m); err != nil {
				return err
			}
			return &errors.CancelledError{}
		}

		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		results := a.classifyBatch(ctx, batch)
		batchFailed, err := a.mergeBatch(ctx, m, results)
		failed += batchFailed
		if err != nil {
			// Save what we have before surfacing the failure.
			if cerr := checkpoint(m); cerr != nil {
				a.logger.Error("checkpoint failed during shutdown", "error", cerr)
			}
			return err
		}
		if err := checkpoint(m); err != nil {
			return err
		}
		a.logger.Debug("batch complete", "done", end, "total", len(candidates))
	}

	a.logger.Info("classification complete",
		"files", len(candidates),
		"classified", len(candidates)-failed,
		"placeholders", failed)
	return nil
}

// classifyBatch runs one batch concurrently. Per-file errors are carried in
// the results, never aborting sibling work.
func (a *Analyzer) classifyBatch(ctx context.Context, batch []*manifest.FileEntry) []result {
	results := make([]result, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(batch))

	for i, e := range batch {
		i, e := i, e
		g.Go(func() error {
			c, err := a.classifyFile(gctx, e)
			results[i] = result{entry: e, classification: c, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// mergeBatch writes batch results into the manifest in batch (and therefore
// inventory) order, handling provider fallback for exhausted files. It
// returns how many entries got a placeholder classification.
func (a *Analyzer) mergeBatch(ctx context.Context, m *manifest.Manifest, results []result) (int, error) {
	failed := 0
	for _, r := range results {
		switch {
		case r.err == nil:
			m.SetClassification(r.entry.Path, toManifest(r.classification))

		case stderrors.Is(r.err, context.Canceled):
			return failed, &errors.CancelledError{}

		case isExhausted(r.err):
			// Only switch providers if the exhausted one is still active;
			// a sibling in the same batch may have switched already.
			var pe *errors.ProviderExhaustedError
			stderrors.As(r.err, &pe)
			if pe.Provider == a.provider.Name() {
				if err := a.fallback(ctx); err != nil {
					return failed, err
				}
			}
			c, err := a.classifyFile(ctx, r.entry)
			if err != nil {
				if isExhausted(err) {
					return failed, err
				}
				m.SetClassification(r.entry.Path, failedClassification(a.provider, failureReason(err)))
				failed++
				continue
			}
			m.SetClassification(r.entry.Path, toManifest(c))

		default:
			a.logger.Warn("classification failed", "path", r.entry.Path, "error", r.err)
			m.SetClassification(r.entry.Path, failedClassification(a.provider, failureReason(r.err)))
			failed++
		}
	}
	return failed, nil
}

// classifyFile fetches the blob and runs the retry loop against the current
// provider under the configured per-request deadline.
func (a *Analyzer) classifyFile(ctx context.Context, e *manifest.FileEntry) (*llm.Classification, error) {
	content, err := a.src.FetchBlob(ctx, e.BlobID)
	if err != nil {
		return nil, err
	}

	req := llm.ClassifyRequest{Path: e.Path, Extension: e.Extension, Content: string(content)}

	var lastErr error
	transientLeft := transientAttempts
	for attempt := 0; attempt < throttleMaxAttempts; attempt++ {
		if attempt > 0 {
			a.sleep(throttleBackoffBase << (attempt - 1))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c, err := a.classifyOnce(ctx, req)
		if err == nil {
			return c, nil
		}
		lastErr = err

		if errors.IsRateLimited(err) {
			a.logger.Debug("throttled, backing off", "path", e.Path, "attempt", attempt+1)
			continue
		}
		if stderrors.Is(err, context.Canceled) {
			return nil, err
		}
		transientLeft--
		if transientLeft <= 0 {
			return nil, err
		}
	}

	return nil, &errors.ProviderExhaustedError{
		Provider: a.provider.Name(),
		Attempts: throttleMaxAttempts,
		Err:      lastErr,
	}
}

func (a *Analyzer) classifyOnce(ctx context.Context, req llm.ClassifyRequest) (*llm.Classification, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout())
	defer cancel()
	return a.provider.Classify(reqCtx, req)
}

func (a *Analyzer) requestTimeout() time.Duration {
	if a.cfg.LLM.RequestTimeout > 0 {
		return a.cfg.LLM.RequestTimeout
	}
	return 60 * time.Second
}

// fallback swaps in the secondary provider. Exhausting it too is fatal for
// the run, so a second fallback request fails.
func (a *Analyzer) fallback(ctx context.Context) error {
	secondary := a.cfg.SecondaryProvider.Name
	if secondary == "" || secondary == a.provider.Name() {
		return &errors.ProviderExhaustedError{Provider: a.provider.Name(), Attempts: throttleMaxAttempts}
	}

	a.logger.Warn("primary provider exhausted, switching", "from", a.provider.Name(), "to", secondary)
	p, err := a.newProvider(secondary, a.cfg, a.logger)
	if err != nil {
		return err
	}
	if err := p.TestConnection(ctx); err != nil {
		return err
	}
	a.provider = p
	return nil
}

func isExhausted(err error) bool {
	var pe *errors.ProviderExhaustedError
	return stderrors.As(err, &pe)
}
