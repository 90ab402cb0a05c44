package githubcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
)

// CommitSummary carries enough of the latest commit to log it.
type CommitSummary struct {
	SHA        string
	Message    *string
	AuthorName *string
	Date       *string
	URL        *string
}

// PullSummary carries enough of the latest merged pull request to log it.
type PullSummary struct {
	Number    int
	Title     *string
	State     string
	Merged    bool
	UpdatedAt *string
	MergedAt  *string
	URL       *string
}

// Result is the outcome of one repository check. When OK is false, Reason
// explains the failure; a commit result obtained before a pull-call failure
// is preserved.
type Result struct {
	OK             bool
	Reason         string
	CommitActivity bool
	PullActivity   bool
	LastCommit     *CommitSummary
	LastMergedPR   *PullSummary
}

// Checker classifies repository activity against a window start. Read-only;
// logging the discovered events is the orchestrator's business.
type Checker struct {
	API Lister
}

// Check fetches the latest commit and one page of pull requests for the
// canonical owner/name repo and flags each signal as within the window or
// not. All failures are captured in the Result, never returned as an error.
func (c Checker) Check(ctx context.Context, repo string, since time.Time) Result {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return Result{Reason: "invalid_repo_format"}
	}

	commit, err := c.API.LatestCommit(ctx, owner, name)
	if err != nil {
		return Result{Reason: callFailure("commits", err)}
	}
	var lastCommit *CommitSummary
	commitActivity := false
	if commit != nil {
		lastCommit = summarizeCommit(commit)
		if lastCommit.Date != nil {
			if d, perr := time.Parse(time.RFC3339, *lastCommit.Date); perr == nil {
				commitActivity = !d.Before(since)
			}
		}
	}

	pulls, err := c.API.RecentPulls(ctx, owner, name)
	if err != nil {
		return Result{
			Reason:         callFailure("prs", err),
			CommitActivity: commitActivity,
			LastCommit:     lastCommit,
		}
	}
	var lastMergedPR *PullSummary
	pullActivity := false
	for _, pr := range pulls {
		if pr.MergedAt == nil {
			continue
		}
		lastMergedPR = summarizePull(pr)
		compare := lastMergedPR.MergedAt
		if compare == nil {
			compare = lastMergedPR.UpdatedAt
		}
		if compare != nil {
			if d, perr := time.Parse(time.RFC3339, *compare); perr == nil {
				pullActivity = !d.Before(since)
			}
		}
		break
	}

	return Result{
		OK:             true,
		CommitActivity: commitActivity,
		PullActivity:   pullActivity,
		LastCommit:     lastCommit,
		LastMergedPR:   lastMergedPR,
	}
}

func summarizeCommit(c *github.RepositoryCommit) *CommitSummary {
	s := &CommitSummary{SHA: c.GetSHA()}
	if msg := c.GetCommit().GetMessage(); msg != "" {
		s.Message = &msg
	}
	if d := commitDate(c); !d.IsZero() {
		formatted := d.UTC().Format(time.RFC3339)
		s.Date = &formatted
	}
	if author := commitAuthor(c); author != "" {
		s.AuthorName = &author
	}
	if url := c.GetHTMLURL(); url != "" {
		s.URL = &url
	}
	return s
}

func commitDate(c *github.RepositoryCommit) time.Time {
	if d := c.GetCommit().GetAuthor().GetDate(); !d.IsZero() {
		return d.Time
	}
	return c.GetCommit().GetCommitter().GetDate().Time
}

func commitAuthor(c *github.RepositoryCommit) string {
	if name := c.GetCommit().GetAuthor().GetName(); name != "" {
		return name
	}
	if login := c.GetAuthor().GetLogin(); login != "" {
		return login
	}
	return c.GetCommit().GetCommitter().GetName()
}

func summarizePull(pr *github.PullRequest) *PullSummary {
	s := &PullSummary{
		Number: pr.GetNumber(),
		State:  pr.GetState(),
		Merged: pr.MergedAt != nil,
	}
	if s.State == "" {
		s.State = "closed"
	}
	if title := pr.GetTitle(); title != "" {
		s.Title = &title
	}
	if pr.MergedAt != nil {
		formatted := pr.MergedAt.UTC().Format(time.RFC3339)
		s.MergedAt = &formatted
	}
	if pr.UpdatedAt != nil {
		formatted := pr.UpdatedAt.UTC().Format(time.RFC3339)
		s.UpdatedAt = &formatted
	}
	if url := pr.GetHTMLURL(); url != "" {
		s.URL = &url
	}
	return s
}

// callFailure maps an API error to the structured reason string. Non-2xx
// responses keep the status code and message; anything else (transport,
// parse) becomes a generic github_error.
func callFailure(call string, err error) string {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return fmt.Sprintf("%s_check_failed:%d:%s", call, ghErr.Response.StatusCode, ghErr.Message)
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return fmt.Sprintf("%s_check_failed:%d:%s", call, rateErr.Response.StatusCode, rateErr.Message)
	}
	return fmt.Sprintf("github_error:%s", err.Error())
}
