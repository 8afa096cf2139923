package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var errAlreadyUpToDate = errors.New("already up to date")

// cloneSource clones a pack repository, optionally a single branch
func cloneSource(ctx context.Context, src GitSource, dest string) error {
	opts := &git.CloneOptions{
		URL:   src.URL,
		Depth: 1,
	}
	if src.Ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Ref)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		return fmt.Errorf("failed to clone %s: %w", src.URL, err)
	}
	return nil
}

// updateSource fast-forwards an existing clone. Local modifications are left alone.
func updateSource(ctx context.Context, dest string) error {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dest, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if !status.IsClean() {
		return errAlreadyUpToDate
	}

	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin", Depth: 1})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return errAlreadyUpToDate
	}
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", dest, err)
	}
	return nil
}

func isGitRepo(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}
