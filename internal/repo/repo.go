package repo

import (
	"context"
	"database/sql"
	"errors"

	"pulsewatch/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,name,status,github_repo,created_at,start_date) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, p.Status, nullableStringPtr(p.GithubRepo), p.CreatedAt, nullableStringPtr(p.StartDate))
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	var repo, start sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,github_repo,created_at,start_date FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.Status, &repo, &p.CreatedAt, &start)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if repo.Valid {
		p.GithubRepo = &repo.String
	}
	if start.Valid {
		p.StartDate = &start.String
	}
	return p, nil
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,github_repo,created_at,start_date FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var repo, start sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &repo, &p.CreatedAt, &start); err != nil {
			return nil, err
		}
		if repo.Valid {
			p.GithubRepo = &repo.String
		}
		if start.Valid {
			p.StartDate = &start.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProjectStatus sets the status field only; the sweep never touches any
// other project column.
func (r Repo) UpdateProjectStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE projects SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertMilestone(ctx context.Context, m domain.Milestone) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO milestones(id,project_id,title,due_date,status,created_at) VALUES (?,?,?,?,?,?)`,
		m.ID, m.ProjectID, m.Title, nullableStringPtr(m.DueDate), m.Status, m.CreatedAt)
	return err
}

func (r Repo) ListMilestones(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,title,due_date,status,created_at FROM milestones WHERE project_id=? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Milestone
	for rows.Next() {
		var m domain.Milestone
		var due sql.NullString
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &due, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		if due.Valid {
			m.DueDate = &due.String
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// MarkOverdueMilestones transitions every milestone whose due date has passed
// and whose status is neither completed nor overdue. Runs once per sweep,
// before any project is evaluated.
func (r Repo) MarkOverdueMilestones(ctx context.Context, now string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE milestones
		SET status=?
		WHERE due_date IS NOT NULL
		  AND due_date <= ?
		  AND status <> ?
		  AND status <> ?`,
		domain.MilestoneOverdue, now, domain.MilestoneCompleted, domain.MilestoneOverdue)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EarliestOverdueByProject returns, per project, the minimum due date among
// milestones already past due and not completed. One grouped query per sweep.
func (r Repo) EarliestOverdueByProject(ctx context.Context, now string) (map[string]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT project_id, MIN(due_date)
		FROM milestones
		WHERE due_date IS NOT NULL
		  AND status <> ?
		  AND due_date <= ?
		GROUP BY project_id`,
		domain.MilestoneCompleted, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]string{}
	for rows.Next() {
		var projectID, due string
		if err := rows.Scan(&projectID, &due); err != nil {
			return nil, err
		}
		res[projectID] = due
	}
	return res, rows.Err()
}

// CountActivitySince counts activity log rows for a project from one source
// at or after the given timestamp. Timestamps are RFC3339 UTC, so the string
// comparison orders correctly.
func (r Repo) CountActivitySince(ctx context.Context, projectID, source, since string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs WHERE project_id=? AND source=? AND timestamp>=?`,
		projectID, source, since).Scan(&n)
	return n, err
}

func (r Repo) ListActivity(ctx context.Context, projectID string, limit int) ([]domain.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,activity_type,source,title,description,url,author,timestamp
		FROM activity_logs WHERE project_id=? ORDER BY timestamp DESC, id DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityLogEntry
	for rows.Next() {
		var e domain.ActivityLogEntry
		var title, desc, url, author sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ActivityType, &e.Source, &title, &desc, &url, &author, &e.Timestamp); err != nil {
			return nil, err
		}
		if title.Valid {
			e.Title = &title.String
		}
		if desc.Valid {
			e.Description = &desc.String
		}
		if url.Valid {
			e.URL = &url.String
		}
		if author.Valid {
			e.Author = &author.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
