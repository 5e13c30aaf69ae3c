package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/hashicorp/go-hclog"

	log "github.com/codesentinel/codesentinel/pkg/shared/logger"
)

// CloneAtCommit materializes a working tree at exactly commitSHA under
// destDir. The clone is full-history because the pinned commit is not
// necessarily the branch head; the checkout is forced so the tree matches
// the commit bit for bit.
func CloneAtCommit(ctx context.Context, cloneURL, commitSHA, destDir string, auth *githttp.BasicAuth, logger hclog.Logger) error {
	output := log.GetLoggerOutput(logger)

	logger.Debug("cloning repository", "cloneURL", cloneURL, "commit", commitSHA, "destDir", destDir)
	repo, err := git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
		Auth:       auth,
		URL:        cloneURL,
		Progress:   output,
		NoCheckout: true,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %q: %w", cloneURL, err)
	}

	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to access worktree in %q: %w", destDir, err)
	}

	logger.Debug("checking out pinned commit", "commit", commitSHA)
	if err := w.Checkout(&git.CheckoutOptions{
		Hash:  plumbing.NewHash(commitSHA),
		Force: true,
	}); err != nil {
		return fmt.Errorf("failed to check out commit %s: %w", commitSHA, err)
	}

	logger.Info("working tree ready", "commit", commitSHA, "destDir", destDir)
	return nil
}
