package domain

// Project statuses. "too_new" is a legacy value; `pw admin fix-status`
// migrates it to "active".
const (
	StatusActive = "active"
	StatusAtRisk = "at-risk"
	StatusTooNew = "too_new"
)

// Milestone statuses the sweep cares about. Anything else counts as
// in-progress.
const (
	MilestoneCompleted = "completed"
	MilestoneOverdue   = "overdue"
)

type Project struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	GithubRepo *string `json:"github_repo,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	StartDate  *string `json:"start_date,omitempty" format:"date-time"`
}

type Milestone struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Title     string  `json:"title"`
	DueDate   *string `json:"due_date,omitempty" format:"date-time"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type ActivityLogEntry struct {
	ID           int64   `json:"id"`
	ProjectID    string  `json:"project_id"`
	ActivityType string  `json:"activity_type"`
	Source       string  `json:"source"`
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	URL          *string `json:"url,omitempty"`
	Author       *string `json:"author,omitempty"`
	Timestamp    string  `json:"timestamp" format:"date-time"`
}

// GithubSignal is the github section of a sweep result. Reason is set when
// the check never produced signals (not configured, invalid, or failed).
type GithubSignal struct {
	CommitActivity *bool  `json:"commitActivity,omitempty"`
	PullActivity   *bool  `json:"pullActivity,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

type DiscordSignal struct {
	HasActivity bool `json:"hasActivity"`
	CountKnown  int  `json:"countKnown"`
}

// EvaluationResult is one project's outcome for a single sweep. It is never
// persisted; the report is the only place it lives.
type EvaluationResult struct {
	ProjectID            string        `json:"projectId"`
	Name                 string        `json:"name"`
	BaseDate             *string       `json:"base_date"`
	AgeDays              *int          `json:"age_days"`
	Repo                 *string       `json:"repo"`
	RepoCheck            string        `json:"repo_check" enum:"none,checked,invalid,error"`
	Github               GithubSignal  `json:"github"`
	Discord              DiscordSignal `json:"discord"`
	Final                string        `json:"final" enum:"active,at-risk"`
	Note                 string        `json:"note"`
	MilestoneOverdueDays *int          `json:"milestone_overdue_days,omitempty"`
}

// Report is the full sweep output: the global window start plus one result
// per tracked project.
type Report struct {
	Since   string             `json:"since" format:"date-time"`
	Results []EvaluationResult `json:"results"`
}
