package source

import (
	"context"
	"fmt"

	"github.com/gitsight/go-vcsurl"
	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

// RemoteFile is one blob reported by the host API tree listing.
type RemoteFile struct {
	Path   string
	BlobID string
	Size   int64
}

// RepoSource enumerates and fetches repository content at a pinned
// revision. Implementations must be safe for concurrent FetchBlob calls.
type RepoSource interface {
	Name() string

	// Resolve pins the repository: default branch name and its head commit.
	Resolve(ctx context.Context) (defaultBranch, commitSHA string, err error)

	// ListFiles returns every blob reachable from commitSHA, submodules and
	// symlinks excluded, sorted lexicographically by path.
	ListFiles(ctx context.Context, commitSHA string) ([]RemoteFile, error)

	// FetchBlob returns the raw bytes of a blob.
	FetchBlob(ctx context.Context, blobID string) ([]byte, error)

	// Clone materializes a working tree at exactly commitSHA under destDir.
	Clone(ctx context.Context, commitSHA, destDir string) error
}

type factory func(info *vcsurl.VCS, repoURL string, cfg *config.Config, logger hclog.Logger) (RepoSource, error)

// Registry of adapters keyed by host kind.
var factories = map[vcsurl.Host]factory{
	vcsurl.GitHub: newGitHubSource,
	vcsurl.GitLab: newGitLabSource,
}

// New selects a source adapter by the host parsed from repoURL.
func New(repoURL string, cfg *config.Config, logger hclog.Logger) (RepoSource, error) {
	info, err := vcsurl.Parse(repoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse repository URL %q: %w", repoURL, err)
	}

	f, ok := factories[info.Host]
	if !ok {
		return nil, fmt.Errorf("unsupported repository host %q", info.Host)
	}
	return f(info, repoURL, cfg, logger)
}
