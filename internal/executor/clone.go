package executor

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// commitSHAPattern matches the hex-SHA commit ref form accepted alongside
// branch names (spec.md §4.7); anything else is checked out as a branch.
var commitSHAPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// CloneAt clones repoURL into a fresh temp directory under baseDir and
// checks out commitRef, adapted from backend/runner.go's cloneRepository:
// a hex SHA pins that exact commit, and any other ref checks out the
// branch of that name (see checkoutOptionsFor; spec.md §4.2).
func CloneAt(baseDir, repoURL, commitRef string) (dir string, err error) {
	dir, err = os.MkdirTemp(baseDir, "submission-")
	if err != nil {
		return "", fmt.Errorf("creating clone tempdir: %w", err)
	}

	repo, err := git.PlainClone(dir, false, &git.CloneOptions{URL: repoURL})
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("cloning %s: %w", repoURL, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("opening worktree: %w", err)
	}

	if err := worktree.Checkout(checkoutOptionsFor(commitRef)); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("checking out %s: %w", commitRef, err)
	}

	return dir, nil
}

// checkoutOptionsFor builds the go-git checkout options for either of
// spec.md §4.7's accepted commit-ref forms: a hex SHA pins an exact
// commit, anything else is treated as a branch name.
func checkoutOptionsFor(commitRef string) *git.CheckoutOptions {
	if commitSHAPattern.MatchString(commitRef) {
		return &git.CheckoutOptions{Hash: plumbing.NewHash(commitRef)}
	}
	return &git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(commitRef)}
}

// Cleanup removes a directory tree (a clone or an output directory) and
// returns os.RemoveAll's error, which is nil for a path already gone.
// Callers log or ignore a failure; it never changes the evaluation outcome.
func Cleanup(dir string) error {
	return os.RemoveAll(dir)
}
