package scanner

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/internal/source"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
	"github.com/codesentinel/codesentinel/pkg/shared/files"
)

// FileFinding is one normalized finding tied to a repository-relative path.
type FileFinding struct {
	Path    string
	Finding manifest.Finding
}

// Scanner is one external vulnerability tool. Run receives a working tree
// and returns normalized findings; Available reports whether a usable
// version is installed.
type Scanner interface {
	Name() string
	Available(ctx context.Context) error
	Install(ctx context.Context) error
	Run(ctx context.Context, repoDir string) ([]FileFinding, error)
}

// Checkpoint persists the manifest after each completed scanner.
type Checkpoint func(m *manifest.Manifest) error

// Runner clones the pinned revision into a scratch directory and drives the
// configured scanners over it sequentially, merging normalized findings into
// the manifest.
type Runner struct {
	src      source.RepoSource
	scanners []Scanner
	cfg      *config.Config
	logger   hclog.Logger
}

// NewRunner builds a runner for the named scanners. Unknown names are a
// configuration error.
func NewRunner(src source.RepoSource, names []string, cfg *config.Config, logger hclog.Logger) (*Runner, error) {
	r := &Runner{src: src, cfg: cfg, logger: logger.Named("scan-runner")}
	for _, name := range names {
		if !cfg.ScannerEnabled(name) {
			r.logger.Info("scanner disabled by configuration", "scanner", name)
			continue
		}
		switch name {
		case "semgrep":
			r.scanners = append(r.scanners, newSemgrep(cfg, r.logger))
		case "bandit":
			r.scanners = append(r.scanners, newBandit(cfg, r.logger))
		default:
			return nil, errors.NewConfigError("unknown scanner %q", name)
		}
	}
	return r, nil
}

// Run executes every scanner against a fresh clone of commitSHA and merges
// the results. Files listed in the manifest get their vulnerabilities field
// set even when empty, marking them as scanned; paths outside the manifest
// are dropped. A scanner that crashes or times out contributes nothing and
// the remaining scanners still run.
func (r *Runner) Run(ctx context.Context, m *manifest.Manifest, commitSHA string, checkpoint Checkpoint) error {
	if len(r.scanners) == 0 {
		return errors.NewConfigError("no scanners selected")
	}

	scratch := filepath.Join(os.TempDir(), "codesentinel-"+uuid.NewString())
	if err := files.CreateFolderIfNotExists(scratch); err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	r.logger.Info("cloning for scan", "commit", commitSHA, "dir", scratch)
	if err := r.src.Clone(ctx, commitSHA, scratch); err != nil {
		return err
	}

	known := make(map[string]bool, len(m.Files))
	for i := range m.Files {
		known[m.Files[i].Path] = true
	}

	byPath := make(map[string][]manifest.Finding)
	ranOK := 0
	var lastFailure error

	for _, s := range r.scanners {
		if err := ctx.Err(); err != nil {
			return &errors.CancelledError{}
		}

		if err := r.provision(ctx, s); err != nil {
			r.logger.Warn("scanner unavailable", "scanner", s.Name(), "error", err)
			lastFailure = err
			continue
		}

		findings, err := s.Run(ctx, scratch)
		if err != nil {
			if stderrors.Is(err, context.Canceled) {
				return &errors.CancelledError{}
			}
			var te *errors.ScannerTimeoutError
			if stderrors.As(err, &te) {
				// Partial output from a timed-out scanner is untrustworthy.
				r.logger.Warn("scanner timed out, discarding its output", "scanner", s.Name())
			} else {
				r.logger.Warn("scanner failed, skipping it", "scanner", s.Name(), "error", err)
			}
			lastFailure = err
			continue
		}
		ranOK++

		for _, f := range findings {
			if !known[f.Path] {
				continue
			}
			if r.excluded(s.Name(), f.Path) {
				continue
			}
			byPath[f.Path] = append(byPath[f.Path], f.Finding)
		}

		r.merge(m, byPath)
		if err := checkpoint(m); err != nil {
			return err
		}
		r.logger.Info("scanner finished", "scanner", s.Name(), "findings", len(findings))
	}

	if ranOK == 0 {
		return &errors.ScannerUnavailableError{
			Scanner: r.scanners[0].Name(),
			Reason:  unavailableReason(lastFailure),
		}
	}
	return nil
}

// Probe reports the availability of each configured scanner without
// running anything. A nil entry means the scanner is usable.
func (r *Runner) Probe(ctx context.Context) map[string]error {
	out := make(map[string]error, len(r.scanners))
	for _, s := range r.scanners {
		out[s.Name()] = s.Available(ctx)
	}
	return out
}

// provision checks the scanner and attempts an install when configured.
func (r *Runner) provision(ctx context.Context, s Scanner) error {
	err := s.Available(ctx)
	if err == nil {
		return nil
	}
	if !r.cfg.VulnerabilityScanning.AutoInstall {
		return err
	}
	r.logger.Info("installing scanner", "scanner", s.Name())
	if ierr := s.Install(ctx); ierr != nil {
		return ierr
	}
	return s.Available(ctx)
}

// merge writes accumulated findings into the manifest, capping the list per
// file and marking every inventoried file as scanned.
func (r *Runner) merge(m *manifest.Manifest, byPath map[string][]manifest.Finding) {
	limit := r.cfg.VulnerabilityScanning.MaxFindingsPerFile
	for i := range m.Files {
		findings := byPath[m.Files[i].Path]
		if len(findings) > limit {
			r.logger.Warn("capping findings", "path", m.Files[i].Path, "total", len(findings), "kept", limit)
			findings = findings[:limit]
		}
		m.SetVulnerabilities(m.Files[i].Path, findings)
	}
}

func (r *Runner) excluded(scanner, path string) bool {
	sc := r.cfg.VulnerabilityScanning.Scanners[scanner]
	for _, pattern := range sc.ExcludePatterns {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

func unavailableReason(err error) string {
	if err == nil {
		return "not installed"
	}
	return err.Error()
}
