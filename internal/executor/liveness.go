package executor

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/go-github/v32/github"
)

var repoURLParts = regexp.MustCompile(`^https://github\.com/([A-Za-z0-9_-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?$`)

// CheckRepoLiveness confirms a submission's repository is visible and
// non-empty before it is cloned, using go-github's REST client against
// the GitHub API.
//
// This is a soft check: a repository that can't be reached here may still
// clone fine (rate limiting, a private fork visible to the clone
// credentials but not this token), so callers should log and proceed
// rather than treat a non-nil error as fatal.
func CheckRepoLiveness(ctx context.Context, gh *github.Client, repoURL string) error {
	m := repoURLParts.FindStringSubmatch(repoURL)
	if m == nil {
		return fmt.Errorf("repo URL %q is not a github.com URL", repoURL)
	}
	owner, repo := m[1], m[2]

	info, _, err := gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("fetching repository metadata: %w", err)
	}
	if info.GetSize() == 0 {
		return fmt.Errorf("repository %s/%s appears empty", owner, repo)
	}
	return nil
}
