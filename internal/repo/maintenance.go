package repo

import (
	"context"

	"pulsewatch/internal/domain"
)

// TableCounts holds row counts for the three swept tables.
type TableCounts struct {
	Projects     int `json:"projects"`
	Milestones   int `json:"milestones"`
	ActivityLogs int `json:"activity_logs"`
}

func (r Repo) Counts(ctx context.Context) (TableCounts, error) {
	var c TableCounts
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&c.Projects); err != nil {
		return c, err
	}
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM milestones`).Scan(&c.Milestones); err != nil {
		return c, err
	}
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&c.ActivityLogs); err != nil {
		return c, err
	}
	return c, nil
}

// WipeAll deletes every row from activity_logs, milestones, and projects, in
// child-first order, and resets the activity log id sequence. One-off
// maintenance; not part of the sweep.
func (r Repo) WipeAll(ctx context.Context) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM activity_logs`,
		`DELETE FROM milestones`,
		`DELETE FROM projects`,
		`DELETE FROM sqlite_sequence WHERE name='activity_logs'`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FixLegacyStatus migrates projects still carrying the legacy "too_new"
// status to "active" and returns the affected projects.
func (r Repo) FixLegacyStatus(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM projects WHERE status=?`, domain.StatusTooNew)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := r.DB.ExecContext(ctx, `UPDATE projects SET status=? WHERE status=?`, domain.StatusActive, domain.StatusTooNew); err != nil {
		return nil, err
	}
	var fixed []domain.Project
	for _, id := range ids {
		p, err := r.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		fixed = append(fixed, p)
	}
	return fixed, nil
}
