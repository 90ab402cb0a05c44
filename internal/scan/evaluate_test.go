package scan

import (
	"testing"

	"pulsewatch/internal/domain"
)

func intPtr(n int) *int { return &n }

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name      string
		v         Verdict
		wantFinal string
		wantNote  string
	}{
		{
			name:      "no base date",
			v:         Verdict{WindowDays: 30},
			wantFinal: domain.StatusActive,
			wantNote:  "Invalid or future start/created date; skipped (status unchanged)",
		},
		{
			name:      "too new without overdue milestone",
			v:         Verdict{HasBaseDate: true, Stale: false, WindowDays: 30},
			wantFinal: domain.StatusActive,
			wantNote:  "Project and milestones < 30 days old (skipped for risk-scan; status unchanged)",
		},
		{
			name:      "overdue milestone dominates activity",
			v:         Verdict{HasBaseDate: true, Stale: true, OverdueDays: intPtr(10), ChatActive: true, RepoCheck: RepoCheckChecked, CommitActivity: true, WindowDays: 30},
			wantFinal: domain.StatusAtRisk,
			wantNote:  "Overdue milestone (10 days)",
		},
		{
			name:      "overdue milestone and silent",
			v:         Verdict{HasBaseDate: true, Stale: true, OverdueDays: intPtr(5), RepoCheck: RepoCheckNone, WindowDays: 30},
			wantFinal: domain.StatusAtRisk,
			wantNote:  "Overdue milestone (5 days) and no Discord/GitHub activity in 30d",
		},
		{
			name:      "overdue milestone on young project",
			v:         Verdict{HasBaseDate: true, Stale: false, OverdueDays: intPtr(3), ChatActive: true, WindowDays: 30},
			wantFinal: domain.StatusAtRisk,
			wantNote:  "Overdue milestone (3 days)",
		},
		{
			name:      "future milestone does not dominate",
			v:         Verdict{HasBaseDate: true, Stale: true, OverdueDays: intPtr(-4), ChatActive: true, WindowDays: 30},
			wantFinal: domain.StatusActive,
			wantNote:  "Has Discord and/or GitHub activity in 30d",
		},
		{
			name:      "quiet with no repo",
			v:         Verdict{HasBaseDate: true, Stale: true, RepoCheck: RepoCheckNone, WindowDays: 30},
			wantFinal: domain.StatusAtRisk,
			wantNote:  "No Discord updates in 30d and no GitHub repo set",
		},
		{
			name:      "quiet with invalid repo",
			v:         Verdict{HasBaseDate: true, Stale: true, RepoCheck: RepoCheckInvalid, WindowDays: 30},
			wantFinal: domain.StatusAtRisk,
			wantNote:  "No Discord updates in 30d and GitHub repo format is invalid",
		},
		{
			name:      "quiet with errored check",
			v:         Verdict{HasBaseDate: true, Stale: true, RepoCheck: RepoCheckError, WindowDays: 30},
			wantFinal: domain.StatusAtRisk,
			wantNote:  "No Discord updates in 30d and GitHub check errored",
		},
		{
			name:      "quiet with checked repo and no activity",
			v:         Verdict{HasBaseDate: true, Stale: true, RepoCheck: RepoCheckChecked, WindowDays: 30},
			wantFinal: domain.StatusAtRisk,
			wantNote:  "No Discord updates in 30d and no GitHub activity in 30d",
		},
		{
			name:      "chat activity keeps active",
			v:         Verdict{HasBaseDate: true, Stale: true, ChatActive: true, RepoCheck: RepoCheckNone, WindowDays: 30},
			wantFinal: domain.StatusActive,
			wantNote:  "Has Discord and/or GitHub activity in 30d",
		},
		{
			name:      "pull activity keeps active",
			v:         Verdict{HasBaseDate: true, Stale: true, RepoCheck: RepoCheckChecked, PullActivity: true, WindowDays: 30},
			wantFinal: domain.StatusActive,
			wantNote:  "Has Discord and/or GitHub activity in 30d",
		},
		{
			name:      "commit activity keeps active",
			v:         Verdict{HasBaseDate: true, Stale: true, RepoCheck: RepoCheckChecked, CommitActivity: true, WindowDays: 30},
			wantFinal: domain.StatusActive,
			wantNote:  "Has Discord and/or GitHub activity in 30d",
		},
		{
			name:      "errored check with chat stays active",
			v:         Verdict{HasBaseDate: true, Stale: true, ChatActive: true, RepoCheck: RepoCheckError, WindowDays: 30},
			wantFinal: domain.StatusActive,
			wantNote:  "Has Discord and/or GitHub activity in 30d",
		},
		{
			name:      "custom window in notes",
			v:         Verdict{HasBaseDate: true, Stale: true, RepoCheck: RepoCheckNone, WindowDays: 14},
			wantFinal: domain.StatusAtRisk,
			wantNote:  "No Discord updates in 14d and no GitHub repo set",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			final, note := Evaluate(c.v)
			if final != c.wantFinal || note != c.wantNote {
				t.Fatalf("got (%q, %q), want (%q, %q)", final, note, c.wantFinal, c.wantNote)
			}
		})
	}
}
