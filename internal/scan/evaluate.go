package scan

import (
	"fmt"

	"pulsewatch/internal/domain"
)

// RepoCheck is the outcome of the source-control lookup for one project.
type RepoCheck string

const (
	RepoCheckNone    RepoCheck = "none"    // no repository configured
	RepoCheckChecked RepoCheck = "checked" // API queried, signals valid
	RepoCheckInvalid RepoCheck = "invalid" // repository string did not normalize
	RepoCheckError   RepoCheck = "error"   // API call failed
)

// Verdict is one per-project decision input set. The evaluator is pure: it
// reads these fields and produces a status and rationale, nothing else.
type Verdict struct {
	// BaseDate nil means the project had no usable start/created date.
	HasBaseDate bool
	// Stale means the base date is at least the window old.
	Stale bool
	// OverdueDays is days since the earliest overdue milestone, nil if none.
	OverdueDays *int
	ChatActive  bool
	RepoCheck   RepoCheck
	CommitActivity bool
	PullActivity   bool
	// WindowDays is only used for rationale text.
	WindowDays int
}

// HasOverdueMilestone reports whether an overdue milestone exists. Negative
// values mean the earliest due date is still ahead and do not count.
func (v Verdict) HasOverdueMilestone() bool {
	return v.OverdueDays != nil && *v.OverdueDays >= 0
}

// Evaluate runs the risk decision for one project. Milestone overdueness
// dominates activity signals; chat and source-control activity OR-combine for
// the active case.
func Evaluate(v Verdict) (final, note string) {
	if !v.HasBaseDate {
		return domain.StatusActive, "Invalid or future start/created date; skipped (status unchanged)"
	}
	if !v.Stale && !v.HasOverdueMilestone() {
		return domain.StatusActive, fmt.Sprintf("Project and milestones < %d days old (skipped for risk-scan; status unchanged)", v.WindowDays)
	}

	noGithubActivity := v.RepoCheck != RepoCheckChecked ||
		(!v.CommitActivity && !v.PullActivity)

	if v.HasOverdueMilestone() {
		if !v.ChatActive && noGithubActivity {
			return domain.StatusAtRisk, fmt.Sprintf("Overdue milestone (%d days) and no Discord/GitHub activity in %dd", *v.OverdueDays, v.WindowDays)
		}
		return domain.StatusAtRisk, fmt.Sprintf("Overdue milestone (%d days)", *v.OverdueDays)
	}

	if !v.ChatActive && noGithubActivity {
		switch v.RepoCheck {
		case RepoCheckNone:
			return domain.StatusAtRisk, fmt.Sprintf("No Discord updates in %dd and no GitHub repo set", v.WindowDays)
		case RepoCheckInvalid:
			return domain.StatusAtRisk, fmt.Sprintf("No Discord updates in %dd and GitHub repo format is invalid", v.WindowDays)
		case RepoCheckError:
			return domain.StatusAtRisk, fmt.Sprintf("No Discord updates in %dd and GitHub check errored", v.WindowDays)
		default:
			return domain.StatusAtRisk, fmt.Sprintf("No Discord updates in %dd and no GitHub activity in %dd", v.WindowDays, v.WindowDays)
		}
	}
	return domain.StatusActive, fmt.Sprintf("Has Discord and/or GitHub activity in %dd", v.WindowDays)
}
