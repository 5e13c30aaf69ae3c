package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/gitsight/go-vcsurl"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/hashicorp/go-hclog"
	gitlab "github.com/xanzy/go-gitlab"

	"github.com/codesentinel/codesentinel/internal/git"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/httpclient"
)

type gitlabSource struct {
	client    *gitlab.Client
	projectID string
	cloneURL  string
	token     string
	logger    hclog.Logger
}

func newGitLabSource(info *vcsurl.VCS, repoURL string, cfg *config.Config, logger hclog.Logger) (RepoSource, error) {
	token := cfg.SourceToken("GITLAB_TOKEN")

	opts := []gitlab.ClientOptionFunc{
		gitlab.WithHTTPClient(httpclient.HTTPClient(logger, cfg)),
	}
	if cfg.Source.APIBaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.Source.APIBaseURL))
	}

	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	cloneURL, err := info.Remote(vcsurl.HTTPS)
	if err != nil {
		return nil, fmt.Errorf("failed to derive clone URL for %q: %w", repoURL, err)
	}

	return &gitlabSource{
		client:    client,
		projectID: fmt.Sprintf("%s/%s", info.Username, info.Name),
		cloneURL:  cloneURL,
		token:     token,
		logger:    logger.Named("gitlab-source"),
	}, nil
}

func (s *gitlabSource) Name() string { return "gitlab" }

func (s *gitlabSource) Resolve(ctx context.Context) (string, string, error) {
	var defaultBranch, commitSHA string

	err := withRetry(ctx, s.logger, "resolve", func() error {
		project, resp, err := s.client.Projects.GetProject(s.projectID, nil, gitlab.WithContext(ctx))
		if err != nil {
			return s.classify(resp, err)
		}
		defaultBranch = project.DefaultBranch

		branch, resp, err := s.client.Branches.GetBranch(s.projectID, defaultBranch, gitlab.WithContext(ctx))
		if err != nil {
			return s.classify(resp, err)
		}
		commitSHA = branch.Commit.ID
		return nil
	})
	if err != nil {
		return "", "", err
	}

	s.logger.Info("repository resolved", "project", s.projectID, "branch", defaultBranch, "commit", commitSHA)
	return defaultBranch, commitSHA, nil
}

func (s *gitlabSource) ListFiles(ctx context.Context, commitSHA string) ([]RemoteFile, error) {
	var nodes []*gitlab.TreeNode

	opt := &gitlab.ListTreeOptions{
		Ref:         gitlab.String(commitSHA),
		Recursive:   gitlab.Bool(true),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	for {
		var page []*gitlab.TreeNode
		var resp *gitlab.Response

		err := withRetry(ctx, s.logger, "list-files", func() error {
			var err error
			page, resp, err = s.client.Repositories.ListTree(s.projectID, opt, gitlab.WithContext(ctx))
			if err != nil {
				return s.classify(resp, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, page...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	files := make([]RemoteFile, 0, len(nodes))
	for _, node := range nodes {
		if node.Type != "blob" {
			continue
		}
		if node.Mode == modeSymlink || node.Mode == modeSubmodule {
			continue
		}

		// The tree listing carries no size; one metadata call per blob.
		size, err := s.fileSize(ctx, node.Path, commitSHA)
		if err != nil {
			return nil, err
		}
		files = append(files, RemoteFile{Path: node.Path, BlobID: node.ID, Size: size})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	s.logger.Debug("file inventory listed", "commit", commitSHA, "files", len(files))
	return files, nil
}

func (s *gitlabSource) fileSize(ctx context.Context, path, ref string) (int64, error) {
	var size int64
	err := withRetry(ctx, s.logger, "file-meta", func() error {
		meta, resp, err := s.client.RepositoryFiles.GetFileMetaData(s.projectID, path, &gitlab.GetFileMetaDataOptions{
			Ref: gitlab.String(ref),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return s.classify(resp, err)
		}
		size = int64(meta.Size)
		return nil
	})
	return size, err
}

func (s *gitlabSource) FetchBlob(ctx context.Context, blobID string) ([]byte, error) {
	var content []byte

	err := withRetry(ctx, s.logger, "fetch-blob", func() error {
		raw, resp, err := s.client.Repositories.RawBlobContent(s.projectID, blobID, gitlab.WithContext(ctx))
		if err != nil {
			return s.classify(resp, err)
		}
		content = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *gitlabSource) Clone(ctx context.Context, commitSHA, destDir string) error {
	var auth *githttp.BasicAuth
	if s.token != "" {
		auth = &githttp.BasicAuth{Username: "oauth2", Password: s.token}
	}
	return git.CloneAtCommit(ctx, s.cloneURL, commitSHA, destDir, auth, s.logger)
}

func (s *gitlabSource) classify(resp *gitlab.Response, err error) error {
	if resp != nil {
		return classifyStatus("gitlab.com", resp.StatusCode, err)
	}
	return err
}
