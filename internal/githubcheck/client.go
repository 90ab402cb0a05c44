package githubcheck

import (
	"context"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// pullPageSize is the single page of most-recently-updated pull requests the
// checker inspects. No pagination: one page bounds the per-project cost.
const pullPageSize = 20

// Lister is the slice of the GitHub API the checker needs.
type Lister interface {
	LatestCommit(ctx context.Context, owner, name string) (*github.RepositoryCommit, error)
	RecentPulls(ctx context.Context, owner, name string) ([]*github.PullRequest, error)
}

// Client wraps the GitHub API client.
type Client struct {
	gh *github.Client
}

// NewClient creates a GitHub client. The token is optional; without it,
// public repositories still work at the unauthenticated rate limit.
func NewClient(token string) *Client {
	if token == "" {
		return &Client{gh: github.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &Client{gh: github.NewClient(tc)}
}

// LatestCommit returns the single most recent commit, or nil for an empty
// repository.
func (c *Client) LatestCommit(ctx context.Context, owner, name string) (*github.RepositoryCommit, error) {
	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, nil
	}
	return commits[0], nil
}

// RecentPulls returns up to one page of pull requests, most recently updated
// first, in API order.
func (c *Client) RecentPulls(ctx context.Context, owner, name string) ([]*github.PullRequest, error) {
	pulls, _, err := c.gh.PullRequests.List(ctx, owner, name, &github.PullRequestListOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: github.ListOptions{
			PerPage: pullPageSize,
		},
	})
	if err != nil {
		return nil, err
	}
	return pulls, nil
}
