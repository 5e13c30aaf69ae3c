package phases

import (
	"context"
	stderrors "errors"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/internal/analyzer"
	"github.com/codesentinel/codesentinel/internal/llm"
	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/internal/risk"
	"github.com/codesentinel/codesentinel/internal/scanner"
	"github.com/codesentinel/codesentinel/internal/source"
	"github.com/codesentinel/codesentinel/internal/tokens"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

// Phase identifiers in execution order.
const (
	PhaseInventory      = "1"
	PhaseTokens         = "1.5"
	PhaseClassification = "2.5"
	PhaseRisk           = "3"
)

var phaseOrder = map[string]int{
	PhaseInventory:      0,
	PhaseTokens:         1,
	PhaseClassification: 2,
	PhaseRisk:           3,
}

// Options tune one controller run.
type Options struct {
	// Provider overrides the configured default LLM provider.
	Provider string
	// Scanners names the vulnerability scanners to run in phase 3.
	Scanners []string
	// Reanalyze re-classifies already classified files.
	Reanalyze bool
	// SkipPreview bypasses the cost preview consent gate.
	SkipPreview bool
	// SampleSize is the cost preview sample size.
	SampleSize int
	// Stdin/Stdout carry the consent prompt.
	Stdin  io.Reader
	Stdout io.Writer
}

// Controller runs the analysis phases over one manifest. Each phase is
// read → enrich → atomic write; the manifest on disk is always a complete
// document.
type Controller struct {
	repoURL      string
	src          source.RepoSource
	cfg          *config.Config
	opts         Options
	manifestPath string
	logger       hclog.Logger
}

// New builds a controller for the repository behind repoURL, persisting to
// manifestPath.
func New(repoURL, manifestPath string, cfg *config.Config, opts Options, logger hclog.Logger) (*Controller, error) {
	src, err := source.New(repoURL, cfg, logger)
	if err != nil {
		return nil, err
	}
	if opts.Provider == "" {
		opts.Provider = cfg.LLM.DefaultProvider
	}
	if len(opts.Scanners) == 0 {
		opts.Scanners = []string{"semgrep", "bandit"}
	}
	return &Controller{
		repoURL:      repoURL,
		src:          src,
		cfg:          cfg,
		opts:         opts,
		manifestPath: manifestPath,
		logger:       logger.Named("phases"),
	}, nil
}

// Normalize validates the requested phases and returns them in execution
// order, deduplicated.
func Normalize(requested []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range requested {
		if _, ok := phaseOrder[p]; !ok {
			return nil, errors.NewConfigError("unknown phase %q (valid: 1, 1.5, 2.5, 3)", p)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return phaseOrder[out[i]] < phaseOrder[out[j]] })
	return out, nil
}

// Run resolves the repository once, enforces the stale-manifest check, and
// executes the requested phases in order. Every phase persists the manifest
// before the next one starts.
func (c *Controller) Run(ctx context.Context, requested []string) error {
	phases, err := Normalize(requested)
	if err != nil {
		return err
	}

	branch, commit, err := c.src.Resolve(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("repository resolved", "branch", branch, "commit", commit)

	m, err := c.load()
	if err != nil {
		return err
	}
	if m != nil && m.Repository.CommitSHA != "" && m.Repository.CommitSHA != commit {
		return &errors.StaleManifestError{Pinned: m.Repository.CommitSHA, Resolved: commit}
	}

	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return &errors.CancelledError{Phase: phase}
		}
		if phase != PhaseInventory && m == nil {
			return &errors.NotFoundError{Path: c.manifestPath}
		}

		switch phase {
		case PhaseInventory:
			m, err = c.inventory(ctx, m, branch, commit)
		case PhaseTokens:
			err = c.countTokens(ctx, m)
		case PhaseClassification:
			err = c.classify(ctx, m)
		case PhaseRisk:
			err = c.scanAndScore(ctx, m, commit)
		}
		if err != nil {
			return err
		}
		if err := manifest.Save(c.manifestPath, m); err != nil {
			return err
		}
		c.logger.Info("phase complete", "phase", phase)
	}
	return nil
}

// load returns the existing manifest, or nil when none exists yet.
func (c *Controller) load() (*manifest.Manifest, error) {
	m, err := manifest.Load(c.manifestPath)
	if err != nil {
		var nf *errors.NotFoundError
		if stderrors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// inventory lists the repository tree and merges the whitelisted files into
// the manifest, creating it on first run.
func (c *Controller) inventory(ctx context.Context, m *manifest.Manifest, branch, commit string) (*manifest.Manifest, error) {
	remote, err := c.src.ListFiles(ctx, commit)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(c.cfg.Analysis.FileExtensions))
	for _, ext := range c.cfg.Analysis.FileExtensions {
		allowed[ext] = true
	}

	entries := make([]manifest.FileEntry, 0, len(remote))
	for _, f := range remote {
		ext := strings.ToLower(filepath.Ext(f.Path))
		if !allowed[ext] {
			continue
		}
		entries = append(entries, manifest.FileEntry{
			Path:      f.Path,
			BlobID:    f.BlobID,
			Size:      f.Size,
			Extension: ext,
		})
	}

	if m == nil {
		m = manifest.New(manifest.Repository{
			URL:               c.repoURL,
			DefaultBranch:     branch,
			CommitSHA:         commit,
			AnalysisTimestamp: time.Now().UTC().Format(time.RFC3339),
		})
	} else {
		m.Repository.DefaultBranch = branch
		m.Repository.AnalysisTimestamp = time.Now().UTC().Format(time.RFC3339)
	}

	m.MergeInventory(entries)
	c.logger.Info("inventory merged", "listed", len(remote), "whitelisted", len(entries), "total", len(m.Files))
	return m, nil
}

// countTokens attaches token accounting to every entry within the size cap.
func (c *Controller) countTokens(ctx context.Context, m *manifest.Manifest) error {
	accountant := tokens.NewAccountant(c.cfg, c.opts.Provider, c.logger)
	counted := 0
	for i := range m.Files {
		e := &m.Files[i]
		if e.Size > c.cfg.Analysis.MaxFileSize {
			continue
		}
		if err := ctx.Err(); err != nil {
			if serr := manifest.Save(c.manifestPath, m); serr != nil {
				return serr
			}
			return &errors.CancelledError{Phase: PhaseTokens}
		}

		content, err := c.src.FetchBlob(ctx, e.BlobID)
		if err != nil {
			return err
		}
		m.SetTokenStats(e.Path, accountant.Count(e.Path, e.Extension, string(content)))
		counted++
	}

	stats := tokens.Aggregate(m)
	c.logger.Info("token accounting complete",
		"files", counted,
		"total_tokens", stats.TotalTokens,
		"estimated_cost", stats.TotalEstimatedCost,
		"encoder", accountant.Encoder())
	return nil
}

// classify runs the LLM enrichment with the cost preview consent gate.
func (c *Controller) classify(ctx context.Context, m *manifest.Manifest) error {
	provider, err := llm.New(c.opts.Provider, c.cfg, c.logger)
	if err != nil {
		return err
	}

	a := analyzer.New(c.src, provider, c.cfg, analyzer.Options{
		Reanalyze:   c.opts.Reanalyze,
		SkipPreview: c.opts.SkipPreview,
		SampleSize:  c.opts.SampleSize,
	}, c.logger)

	checkpoint := func(m *manifest.Manifest) error {
		return manifest.Save(c.manifestPath, m)
	}

	if !c.opts.SkipPreview {
		preview, err := a.PreviewCost(ctx, m)
		if err != nil {
			return err
		}
		if err := checkpoint(m); err != nil {
			return err
		}
		if preview.TotalFiles > preview.SampleSize {
			if err := analyzer.Confirm(preview, c.opts.Stdin, c.opts.Stdout); err != nil {
				return err
			}
		}
	}

	return a.Enrich(ctx, m, checkpoint)
}

// scanAndScore runs the vulnerability scanners and then scores every entry.
func (c *Controller) scanAndScore(ctx context.Context, m *manifest.Manifest, commit string) error {
	runner, err := scanner.NewRunner(c.src, c.opts.Scanners, c.cfg, c.logger)
	if err != nil {
		return err
	}
	checkpoint := func(m *manifest.Manifest) error {
		return manifest.Save(c.manifestPath, m)
	}
	if err := runner.Run(ctx, m, commit, checkpoint); err != nil {
		return err
	}
	return c.score(m)
}

// score assesses every inventoried file, scanned or not.
func (c *Controller) score(m *manifest.Manifest) error {
	scorer, err := risk.NewScorer(c.cfg.RiskScoring, c.logger)
	if err != nil {
		return err
	}
	for i := range m.Files {
		ra := scorer.Assess(&m.Files[i])
		m.SetRiskAssessment(m.Files[i].Path, ra)
	}
	c.logger.Info("risk scoring complete", "files", len(m.Files))
	return nil
}
