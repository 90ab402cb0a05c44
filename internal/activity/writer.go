package activity

import (
	"context"
	"database/sql"
	"time"
)

// Sources tagging activity log rows. Discord rows are written by the chat
// bridge outside this repository; the sweep only counts them.
const (
	SourceGithub  = "GITHUB"
	SourceDiscord = "discord"
)

// Activity types the sweep records.
const (
	TypeCommit = "commit"
	TypeMerge  = "merge"
)

// Writer appends deduplicated rows to the activity log. The (project_id,
// activity_type, url) triple is the natural key; rows without a URL are never
// written.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Entry struct {
	ProjectID    string
	ActivityType string
	Source       string
	Title        *string
	Description  *string
	URL          *string
	Author       *string
	// Timestamp is RFC3339; nil or unparseable falls back to Now.
	Timestamp *string
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// RecordIfNew inserts the entry unless an identical (project, type, url) row
// already exists. Returns whether a row was written.
func (w Writer) RecordIfNew(ctx context.Context, e Entry) (bool, error) {
	if e.URL == nil || *e.URL == "" {
		return false, nil
	}
	var one int
	err := w.DB.QueryRowContext(ctx, `SELECT 1 FROM activity_logs WHERE project_id=? AND activity_type=? AND url=? LIMIT 1`,
		e.ProjectID, e.ActivityType, *e.URL).Scan(&one)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	ts := w.now().UTC().Format(time.RFC3339)
	if e.Timestamp != nil {
		if parsed, perr := time.Parse(time.RFC3339, *e.Timestamp); perr == nil {
			ts = parsed.UTC().Format(time.RFC3339)
		}
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO activity_logs(project_id,activity_type,source,title,description,url,author,timestamp)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.ProjectID, e.ActivityType, e.Source, nullable(e.Title), nullable(e.Description), *e.URL, nullable(e.Author), ts)
	if err != nil {
		return false, err
	}
	return true, nil
}

func nullable(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
