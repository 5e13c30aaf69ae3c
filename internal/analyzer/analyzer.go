package analyzer

import (
	"context"
	stderrors "errors"
	"math/rand"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/internal/llm"
	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/internal/source"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

// Retry policy. Throttling gets exponential backoff and many attempts;
// everything else gets one quick retry before the file is marked failed.
const (
	throttleMaxAttempts = 5
	throttleBackoffBase = time.Second
	transientAttempts   = 2
)

// Options tune one enrichment run.
type Options struct {
	// Reanalyze re-classifies files that already carry a purpose.
	Reanalyze bool
	// SkipPreview bypasses the cost preview and consent gate.
	SkipPreview bool
	// SampleSize is the number of files classified for the cost preview.
	SampleSize int
}

// Analyzer drives LLM classification over a manifest: candidate selection,
// cost preview, concurrent enrichment with checkpointing, and fallback to
// the secondary provider when the primary is exhausted.
type Analyzer struct {
	src      source.RepoSource
	provider llm.Provider
	cfg      *config.Config
	opts     Options
	logger   hclog.Logger

	// Swappable in tests.
	newProvider func(name string, cfg *config.Config, logger hclog.Logger) (llm.Provider, error)
	sleep       func(d time.Duration)
	sample      func(n, k int) []int
}

// New builds an analyzer around a resolved source and an initialized
// primary provider.
func New(src source.RepoSource, provider llm.Provider, cfg *config.Config, opts Options, logger hclog.Logger) *Analyzer {
	if opts.SampleSize <= 0 {
		opts.SampleSize = config.DefaultSampleSize
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Analyzer{
		src:         src,
		provider:    provider,
		cfg:         cfg,
		opts:        opts,
		logger:      logger.Named("analyzer"),
		newProvider: llm.New,
		sleep:       time.Sleep,
		sample: func(n, k int) []int {
			idx := rng.Perm(n)[:k]
			sort.Ints(idx)
			return idx
		},
	}
}

// Candidates selects the manifest entries eligible for classification:
// whitelisted extension, within the size cap, and not yet classified unless
// a re-run was requested.
func (a *Analyzer) Candidates(m *manifest.Manifest) []*manifest.FileEntry {
	allowed := make(map[string]bool, len(a.cfg.Analysis.FileExtensions))
	for _, ext := range a.cfg.Analysis.FileExtensions {
		allowed[ext] = true
	}

	var candidates []*manifest.FileEntry
	for i := range m.Files {
		e := &m.Files[i]
		if !allowed[e.Extension] {
			continue
		}
		if e.Size > a.cfg.Analysis.MaxFileSize {
			a.logger.Debug("skipping oversized file", "path", e.Path, "size", e.Size)
			continue
		}
		if e.Purpose != "" && !a.opts.Reanalyze {
			continue
		}
		candidates = append(candidates, e)
	}
	return candidates
}

// classification converts a provider verdict into the manifest's
// classification record.
func toManifest(c *llm.Classification) manifest.Classification {
	return manifest.Classification{
		Purpose:           c.Purpose,
		Category:          c.Category,
		Confidence:        c.Confidence,
		SecurityRelevance: c.SecurityRelevance,
		Reasoning:         c.Reasoning,
		Provider:          c.Provider,
		Model:             c.Model,
	}
}

// failedClassification is the placeholder written when a file's
// classification could not be obtained. The run continues.
func failedClassification(provider llm.Provider, reason string) manifest.Classification {
	return manifest.Classification{
		Category:          "other",
		Confidence:        0,
		SecurityRelevance: "low",
		Reasoning:         "analysis_failed:" + reason,
		Provider:          provider.Name(),
		Model:             provider.Model(),
	}
}

// failureReason condenses an error into the short tag recorded in the
// placeholder reasoning.
func failureReason(err error) string {
	var merr *errors.MalformedResponseError
	if stderrors.As(err, &merr) {
		return "malformed_response"
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "provider_error"
}
