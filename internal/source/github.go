package source

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/gitsight/go-vcsurl"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v47/github"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/codesentinel/codesentinel/internal/git"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
	"github.com/codesentinel/codesentinel/pkg/shared/httpclient"
)

// Git object modes the inventory skips.
const (
	modeSymlink   = "120000"
	modeSubmodule = "160000"
)

type githubSource struct {
	client   *github.Client
	owner    string
	repo     string
	cloneURL string
	token    string
	logger   hclog.Logger
}

func newGitHubSource(info *vcsurl.VCS, repoURL string, cfg *config.Config, logger hclog.Logger) (RepoSource, error) {
	token := cfg.SourceToken("GITHUB_TOKEN")

	base := httpclient.HTTPClient(logger, cfg)
	hc := base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := github.NewClient(hc)
	if cfg.Source.APIBaseURL != "" {
		enterprise, err := github.NewEnterpriseClient(cfg.Source.APIBaseURL, cfg.Source.APIBaseURL, hc)
		if err != nil {
			return nil, fmt.Errorf("failed to configure API base URL %q: %w", cfg.Source.APIBaseURL, err)
		}
		client = enterprise
	}

	cloneURL, err := info.Remote(vcsurl.HTTPS)
	if err != nil {
		return nil, fmt.Errorf("failed to derive clone URL for %q: %w", repoURL, err)
	}

	return &githubSource{
		client:   client,
		owner:    info.Username,
		repo:     info.Name,
		cloneURL: cloneURL,
		token:    token,
		logger:   logger.Named("github-source"),
	}, nil
}

func (s *githubSource) Name() string { return "github" }

func (s *githubSource) Resolve(ctx context.Context) (string, string, error) {
	var defaultBranch, commitSHA string

	err := withRetry(ctx, s.logger, "resolve", func() error {
		repo, resp, err := s.client.Repositories.Get(ctx, s.owner, s.repo)
		if err != nil {
			return s.classify(resp, err)
		}
		defaultBranch = repo.GetDefaultBranch()

		branch, resp, err := s.client.Repositories.GetBranch(ctx, s.owner, s.repo, defaultBranch, true)
		if err != nil {
			return s.classify(resp, err)
		}
		commitSHA = branch.GetCommit().GetSHA()
		return nil
	})
	if err != nil {
		return "", "", err
	}

	s.logger.Info("repository resolved", "owner", s.owner, "repo", s.repo, "branch", defaultBranch, "commit", commitSHA)
	return defaultBranch, commitSHA, nil
}

func (s *githubSource) ListFiles(ctx context.Context, commitSHA string) ([]RemoteFile, error) {
	var tree *github.Tree

	err := withRetry(ctx, s.logger, "list-files", func() error {
		t, resp, err := s.client.Git.GetTree(ctx, s.owner, s.repo, commitSHA, true)
		if err != nil {
			return s.classify(resp, err)
		}
		tree = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if tree.GetTruncated() {
		s.logger.Warn("repository tree was truncated by the host API", "commit", commitSHA)
	}

	files := make([]RemoteFile, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if mode := entry.GetMode(); mode == modeSymlink || mode == modeSubmodule {
			continue
		}
		files = append(files, RemoteFile{
			Path:   entry.GetPath(),
			BlobID: entry.GetSHA(),
			Size:   int64(entry.GetSize()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	s.logger.Debug("file inventory listed", "commit", commitSHA, "files", len(files))
	return files, nil
}

func (s *githubSource) FetchBlob(ctx context.Context, blobID string) ([]byte, error) {
	var content []byte

	err := withRetry(ctx, s.logger, "fetch-blob", func() error {
		blob, resp, err := s.client.Git.GetBlob(ctx, s.owner, s.repo, blobID)
		if err != nil {
			return s.classify(resp, err)
		}

		raw := blob.GetContent()
		if blob.GetEncoding() == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				return fmt.Errorf("failed to decode blob %s: %w", blobID, err)
			}
			content = decoded
			return nil
		}
		content = []byte(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *githubSource) Clone(ctx context.Context, commitSHA, destDir string) error {
	var auth *githttp.BasicAuth
	if s.token != "" {
		auth = &githttp.BasicAuth{Username: "git", Password: s.token}
	}
	return git.CloneAtCommit(ctx, s.cloneURL, commitSHA, destDir, auth, s.logger)
}

// classify maps go-github errors onto the error taxonomy: explicit
// rate-limit types become retryable, everything else is judged by status.
func (s *githubSource) classify(resp *github.Response, err error) error {
	var rateLimit *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	if stderrors.As(err, &rateLimit) || stderrors.As(err, &abuse) {
		return &errors.RateLimitedError{Err: err}
	}
	if resp != nil {
		return classifyStatus("github.com", resp.StatusCode, err)
	}
	return err
}
