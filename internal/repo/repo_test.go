package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"pulsewatch/internal/db"
	"pulsewatch/internal/domain"
	"pulsewatch/internal/migrate"
	"pulsewatch/internal/repo"
)

func newRepo(t *testing.T) (repo.Repo, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, conn
}

func seedProject(t *testing.T, r repo.Repo, id, status string) {
	t.Helper()
	err := r.InsertProject(context.Background(), domain.Project{
		ID:        id,
		Name:      "Project " + id,
		Status:    status,
		CreatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert project %s: %v", id, err)
	}
}

func seedMilestone(t *testing.T, r repo.Repo, id, projectID string, due *string, status string) {
	t.Helper()
	err := r.InsertMilestone(context.Background(), domain.Milestone{
		ID:        id,
		ProjectID: projectID,
		Title:     "Milestone " + id,
		DueDate:   due,
		Status:    status,
		CreatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert milestone %s: %v", id, err)
	}
}

func strPtr(s string) *string { return &s }

func TestGetProjectNotFound(t *testing.T) {
	r, _ := newRepo(t)
	if _, err := r.GetProject(context.Background(), "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := r.UpdateProjectStatus(context.Background(), "missing", domain.StatusAtRisk); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("update err = %v, want ErrNotFound", err)
	}
}

func TestProjectNullableFieldsRoundTrip(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	err := r.InsertProject(ctx, domain.Project{
		ID:         "p1",
		Name:       "With repo",
		Status:     domain.StatusActive,
		GithubRepo: strPtr("octo/hello"),
		CreatedAt:  "2024-01-01T00:00:00Z",
		StartDate:  strPtr("2024-01-15"),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	seedProject(t, r, "p2", domain.StatusActive)

	p, err := r.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.GithubRepo == nil || *p.GithubRepo != "octo/hello" {
		t.Fatalf("github_repo = %v", p.GithubRepo)
	}
	if p.StartDate == nil || *p.StartDate != "2024-01-15" {
		t.Fatalf("start_date = %v", p.StartDate)
	}
	p, err = r.GetProject(ctx, "p2")
	if err != nil {
		t.Fatalf("get p2: %v", err)
	}
	if p.GithubRepo != nil || p.StartDate != nil {
		t.Fatalf("expected nil optionals, got %+v", p)
	}
}

func TestMarkOverdueMilestones(t *testing.T) {
	r, conn := newRepo(t)
	ctx := context.Background()
	seedProject(t, r, "p1", domain.StatusActive)
	seedMilestone(t, r, "past", "p1", strPtr("2024-02-01"), "pending")
	seedMilestone(t, r, "future", "p1", strPtr("2024-04-01"), "pending")
	seedMilestone(t, r, "done", "p1", strPtr("2024-02-01"), domain.MilestoneCompleted)
	seedMilestone(t, r, "nodate", "p1", nil, "pending")

	n, err := r.MarkOverdueMilestones(ctx, "2024-03-01T00:00:00Z")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if n != 1 {
		t.Fatalf("marked = %d, want 1", n)
	}
	// Rerun is a no-op.
	n, err = r.MarkOverdueMilestones(ctx, "2024-03-01T00:00:00Z")
	if err != nil || n != 0 {
		t.Fatalf("rerun = (%d, %v), want (0, nil)", n, err)
	}

	rows := map[string]string{}
	rs, err := conn.QueryContext(ctx, `SELECT id, status FROM milestones`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rs.Close()
	for rs.Next() {
		var id, status string
		if err := rs.Scan(&id, &status); err != nil {
			t.Fatalf("scan: %v", err)
		}
		rows[id] = status
	}
	want := map[string]string{
		"past":   domain.MilestoneOverdue,
		"future": "pending",
		"done":   domain.MilestoneCompleted,
		"nodate": "pending",
	}
	for id, status := range want {
		if rows[id] != status {
			t.Errorf("milestone %s = %q, want %q", id, rows[id], status)
		}
	}
}

func TestEarliestOverdueByProject(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	seedProject(t, r, "p1", domain.StatusActive)
	seedProject(t, r, "p2", domain.StatusActive)
	seedMilestone(t, r, "m1", "p1", strPtr("2024-02-10"), "pending")
	seedMilestone(t, r, "m2", "p1", strPtr("2024-01-05"), "pending")
	seedMilestone(t, r, "m3", "p1", strPtr("2024-01-01"), domain.MilestoneCompleted)
	seedMilestone(t, r, "m4", "p2", strPtr("2024-04-01"), "pending")

	got, err := r.EarliestOverdueByProject(ctx, "2024-03-01T00:00:00Z")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("projects = %v, want only p1", got)
	}
	if got["p1"] != "2024-01-05" {
		t.Fatalf("p1 earliest = %q, want 2024-01-05", got["p1"])
	}
}

func TestFixLegacyStatus(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	seedProject(t, r, "legacy", domain.StatusTooNew)
	seedProject(t, r, "fine", domain.StatusActive)

	fixed, err := r.FixLegacyStatus(ctx)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if len(fixed) != 1 || fixed[0].ID != "legacy" || fixed[0].Status != domain.StatusActive {
		t.Fatalf("fixed = %+v", fixed)
	}

	fixed, err = r.FixLegacyStatus(ctx)
	if err != nil || fixed != nil {
		t.Fatalf("rerun = (%v, %v), want (nil, nil)", fixed, err)
	}
}

func TestWipeAll(t *testing.T) {
	r, conn := newRepo(t)
	ctx := context.Background()
	seedProject(t, r, "p1", domain.StatusActive)
	seedMilestone(t, r, "m1", "p1", strPtr("2024-02-01"), "pending")
	_, err := conn.ExecContext(ctx,
		`INSERT INTO activity_logs(project_id,activity_type,source,timestamp) VALUES ('p1','message','discord','2024-02-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("insert activity: %v", err)
	}

	before, err := r.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if before.Projects != 1 || before.Milestones != 1 || before.ActivityLogs != 1 {
		t.Fatalf("counts = %+v", before)
	}

	if err := r.WipeAll(ctx); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	after, err := r.Counts(ctx)
	if err != nil {
		t.Fatalf("counts after: %v", err)
	}
	if after.Projects != 0 || after.Milestones != 0 || after.ActivityLogs != 0 {
		t.Fatalf("counts after = %+v", after)
	}
}
