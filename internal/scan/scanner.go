package scan

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"pulsewatch/internal/activity"
	"pulsewatch/internal/config"
	"pulsewatch/internal/domain"
	"pulsewatch/internal/githubcheck"
	"pulsewatch/internal/repo"
)

// Scanner drives one sweep over all tracked projects: milestone overdue
// transition first, then per-project signal collection, evaluation, and the
// idempotent side effects (activity log rows, at-risk status transitions).
type Scanner struct {
	DB         *sql.DB
	Repo       repo.Repo
	Log        activity.Writer
	Github     githubcheck.Lister
	WindowDays int
	Logger     *log.Logger
	Now        func() time.Time
}

// New wires a Scanner from an open database and config.
func New(conn *sql.DB, cfg *config.Config) Scanner {
	windowDays := cfg.Scan.WindowDays
	if windowDays <= 0 {
		windowDays = config.DefaultWindowDays
	}
	return Scanner{
		DB:         conn,
		Repo:       repo.Repo{DB: conn},
		Log:        activity.Writer{DB: conn},
		Github:     githubcheck.NewClient(cfg.Github.Token),
		WindowDays: windowDays,
		Now:        time.Now,
	}
}

func (s Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Scanner) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// Run executes one sweep. Per-project GitHub failures are captured in that
// project's result and the sweep continues; store errors abort the sweep.
func (s Scanner) Run(ctx context.Context) (domain.Report, error) {
	// Single sweep-start timestamp, threaded through every date decision so
	// milestone state cannot flip mid-sweep.
	now := s.now().UTC()
	window := time.Duration(s.WindowDays) * day
	globalSince := now.Add(-window)
	nowISO := now.Format(time.RFC3339)
	sinceISO := globalSince.Format(time.RFC3339)

	marked, err := s.Repo.MarkOverdueMilestones(ctx, nowISO)
	if err != nil {
		return domain.Report{}, fmt.Errorf("mark overdue milestones: %w", err)
	}
	if marked > 0 {
		s.logf("marked %d milestones overdue", marked)
	}

	projects, err := s.Repo.ListProjects(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("list projects: %w", err)
	}
	overdueByProject, err := s.Repo.EarliestOverdueByProject(ctx, nowISO)
	if err != nil {
		return domain.Report{}, fmt.Errorf("preload overdue milestones: %w", err)
	}

	results := make([]domain.EvaluationResult, 0, len(projects))
	for _, p := range projects {
		res, err := s.evaluateProject(ctx, p, now, globalSince, sinceISO, overdueByProject)
		if err != nil {
			return domain.Report{}, err
		}
		results = append(results, res)
	}
	return domain.Report{Since: sinceISO, Results: results}, nil
}

func (s Scanner) evaluateProject(ctx context.Context, p domain.Project, now, globalSince time.Time, sinceISO string, overdueByProject map[string]string) (domain.EvaluationResult, error) {
	baseDate := ComputeBaseDate(now, p.StartDate, p.CreatedAt)

	normRepo, repoOK := "", false
	if p.GithubRepo != nil {
		normRepo, repoOK = githubcheck.ParseRepo(*p.GithubRepo)
	}

	if baseDate == nil {
		final, note := Evaluate(Verdict{WindowDays: s.WindowDays})
		return domain.EvaluationResult{
			ProjectID: p.ID,
			Name:      p.Name,
			Repo:      optional(normRepo),
			RepoCheck: string(RepoCheckNone),
			Github:    domain.GithubSignal{Reason: "invalid_or_future_start/created_at"},
			Discord:   domain.DiscordSignal{},
			Final:     final,
			Note:      note,
		}, nil
	}

	baseISO := baseDate.UTC().Format(time.RFC3339)
	ageDays := AgeDays(now, *baseDate)

	var overdueDays *int
	if due, ok := overdueByProject[p.ID]; ok {
		overdueDays = OverdueDays(now, due)
	}

	// Chat window is global; a store failure here is fatal to the sweep.
	discordCount, err := s.Repo.CountActivitySince(ctx, p.ID, activity.SourceDiscord, sinceISO)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("count chat activity for %s: %w", p.ID, err)
	}

	// GitHub since must be within the window and not before the project began.
	sinceForGithub := globalSince
	if baseDate.After(globalSince) {
		sinceForGithub = *baseDate
	}

	repoCheck := RepoCheckNone
	var gh domain.GithubSignal
	switch {
	case p.GithubRepo != nil && *p.GithubRepo != "" && !repoOK:
		repoCheck = RepoCheckInvalid
		gh.Reason = "invalid_repo_format"
	case repoOK:
		res := githubcheck.Checker{API: s.Github}.Check(ctx, normRepo, sinceForGithub)
		if !res.OK {
			repoCheck = RepoCheckError
			if strings.HasPrefix(res.Reason, "invalid_repo_format") {
				repoCheck = RepoCheckInvalid
			}
			gh.Reason = res.Reason
		} else {
			repoCheck = RepoCheckChecked
			gh.CommitActivity = &res.CommitActivity
			gh.PullActivity = &res.PullActivity
			if err := s.recordDiscoveries(ctx, p.ID, res); err != nil {
				return domain.EvaluationResult{}, err
			}
		}
	}

	verdict := Verdict{
		HasBaseDate:    true,
		Stale:          IsStale(now, baseDate, now.Sub(globalSince)),
		OverdueDays:    overdueDays,
		ChatActive:     discordCount > 0,
		RepoCheck:      repoCheck,
		CommitActivity: gh.CommitActivity != nil && *gh.CommitActivity,
		PullActivity:   gh.PullActivity != nil && *gh.PullActivity,
		WindowDays:     s.WindowDays,
	}
	final, note := Evaluate(verdict)

	// Only the transition into at-risk is written back; recovery to active is
	// left to humans (see DESIGN.md).
	if final == domain.StatusAtRisk && p.Status != domain.StatusAtRisk {
		if err := s.Repo.UpdateProjectStatus(ctx, p.ID, domain.StatusAtRisk); err != nil {
			return domain.EvaluationResult{}, fmt.Errorf("update status for %s: %w", p.ID, err)
		}
		s.logf("project %s: %s -> %s (%s)", p.ID, p.Status, final, note)
	}

	return domain.EvaluationResult{
		ProjectID:            p.ID,
		Name:                 p.Name,
		BaseDate:             &baseISO,
		AgeDays:              &ageDays,
		Repo:                 optional(normRepo),
		RepoCheck:            string(repoCheck),
		Github:               gh,
		Discord:              domain.DiscordSignal{HasActivity: discordCount > 0, CountKnown: discordCount},
		Final:                final,
		Note:                 note,
		MilestoneOverdueDays: overdueDays,
	}, nil
}

// recordDiscoveries offers in-window commit and merged-PR events to the
// dedup writer. Events outside the window, or without a URL, are never
// written.
func (s Scanner) recordDiscoveries(ctx context.Context, projectID string, res githubcheck.Result) error {
	if res.CommitActivity && res.LastCommit != nil && res.LastCommit.URL != nil {
		c := res.LastCommit
		title := "Commit"
		if c.Message != nil {
			if first, _, _ := strings.Cut(*c.Message, "\n"); first != "" {
				title = first
			}
		}
		written, err := s.Log.RecordIfNew(ctx, activity.Entry{
			ProjectID:    projectID,
			ActivityType: activity.TypeCommit,
			Source:       activity.SourceGithub,
			Title:        &title,
			Description:  c.Message,
			URL:          c.URL,
			Author:       c.AuthorName,
			Timestamp:    c.Date,
		})
		if err != nil {
			return fmt.Errorf("record commit for %s: %w", projectID, err)
		}
		if written {
			s.logf("project %s: logged commit %s", projectID, c.SHA)
		}
	}
	if res.PullActivity && res.LastMergedPR != nil && res.LastMergedPR.URL != nil {
		pr := res.LastMergedPR
		title := fmt.Sprintf("Merged PR #%d", pr.Number)
		if pr.Title != nil && *pr.Title != "" {
			title = *pr.Title
		}
		desc := fmt.Sprintf("PR #%d (%s)", pr.Number, pr.State)
		if pr.Merged {
			desc = fmt.Sprintf("PR #%d merged", pr.Number)
		}
		ts := pr.MergedAt
		if ts == nil {
			ts = pr.UpdatedAt
		}
		written, err := s.Log.RecordIfNew(ctx, activity.Entry{
			ProjectID:    projectID,
			ActivityType: activity.TypeMerge,
			Source:       activity.SourceGithub,
			Title:        &title,
			Description:  &desc,
			URL:          pr.URL,
			Timestamp:    ts,
		})
		if err != nil {
			return fmt.Errorf("record merged PR for %s: %w", projectID, err)
		}
		if written {
			s.logf("project %s: logged merged PR #%d", projectID, pr.Number)
		}
	}
	return nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
