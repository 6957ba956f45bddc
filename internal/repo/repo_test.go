package repo_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"riverwatch/internal/audit"
	"riverwatch/internal/db"
	"riverwatch/internal/domain"
	"riverwatch/internal/migrate"
	"riverwatch/internal/repo"
)

func newTestRepo(t *testing.T) (repo.Repo, *sql.DB) {
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

func insertReport(t *testing.T, r repo.Repo, conn *sql.DB, rep domain.Report) domain.Report {
	t.Helper()
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.Title == "" {
		rep.Title = "Foam on the surface"
	}
	if rep.Description == "" {
		rep.Description = "White foam patches by the outflow"
	}
	if rep.ReportType == "" {
		rep.ReportType = "waste"
	}
	if rep.Severity == "" {
		rep.Severity = "low"
	}
	if rep.Status == "" {
		rep.Status = domain.StatusPending
	}
	if rep.CreatedAt == "" {
		rep.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	}
	ctx := context.Background()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := r.InsertReport(ctx, tx, rep); err != nil {
		t.Fatalf("insert report: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return rep
}

func TestReportRoundTripNullables(t *testing.T) {
	r, conn := newTestRepo(t)
	ctx := context.Background()

	bare := insertReport(t, r, conn, domain.Report{})
	got, err := r.GetReport(ctx, bare.ID)
	if err != nil {
		t.Fatalf("get bare: %v", err)
	}
	if got.Latitude != nil || got.UserEmail != nil || got.AdminNotes != nil || len(got.ImageURLs) != 0 {
		t.Fatalf("expected null optionals, got %+v", got)
	}

	lat, lng := 48.85, 2.35
	name := "Jo River"
	full := insertReport(t, r, conn, domain.Report{
		Latitude:    &lat,
		Longitude:   &lng,
		Address:     "Mill bridge",
		UserName:    &name,
		IsAnonymous: false,
		ImageURLs:   []string{"https://img.example/1.jpg", "https://img.example/2.jpg"},
	})
	got, err = r.GetReport(ctx, full.ID)
	if err != nil {
		t.Fatalf("get full: %v", err)
	}
	if got.Latitude == nil || *got.Latitude != lat {
		t.Fatalf("lost latitude: %+v", got)
	}
	if got.UserName == nil || *got.UserName != name {
		t.Fatalf("lost user name: %+v", got)
	}
	if got.Address != "Mill bridge" || got.IsAnonymous {
		t.Fatalf("lost scalar fields: %+v", got)
	}
	if len(got.ImageURLs) != 2 {
		t.Fatalf("lost image urls: %+v", got.ImageURLs)
	}
}

func TestCursorPagination(t *testing.T) {
	r, conn := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertReport(t, r, conn, domain.Report{
			ID:        fmt.Sprintf("r-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		})
	}

	page, err := r.ListReports(ctx, repo.ReportFilters{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "r-4" || page[1].ID != "r-3" {
		t.Fatalf("unexpected first page %+v", page)
	}

	last := page[len(page)-1]
	page, err = r.ListReports(ctx, repo.ReportFilters{
		Limit:           2,
		CursorCreatedAt: last.CreatedAt,
		CursorID:        last.ID,
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "r-2" || page[1].ID != "r-1" {
		t.Fatalf("unexpected second page %+v", page)
	}
}

func TestUpdateReportPartial(t *testing.T) {
	r, conn := newTestRepo(t)
	ctx := context.Background()
	rep := insertReport(t, r, conn, domain.Report{})

	status := domain.StatusCompleted
	admin := "admin"
	tx, _ := conn.BeginTx(ctx, nil)
	if err := r.UpdateReport(ctx, tx, rep.ID, repo.ReportUpdate{Status: &status, LastUpdatedBy: &admin}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ := r.GetReport(ctx, rep.ID)
	if got.Status != domain.StatusCompleted || got.AdminNotes != nil {
		t.Fatalf("partial update touched wrong columns: %+v", got)
	}

	tx, _ = conn.BeginTx(ctx, nil)
	defer tx.Rollback()
	if err := r.UpdateReport(ctx, tx, "missing", repo.ReportUpdate{Status: &status}); err != repo.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdminLogsByReportGroups(t *testing.T) {
	r, conn := newTestRepo(t)
	ctx := context.Background()
	a := insertReport(t, r, conn, domain.Report{ID: "rep-a"})
	b := insertReport(t, r, conn, domain.Report{ID: "rep-b"})

	w := audit.Writer{DB: conn}
	tx, _ := conn.BeginTx(ctx, nil)
	if _, err := w.Append(ctx, tx, a.ID, domain.ActionStatusUpdate, "admin", audit.Details{"from": "pending", "to": "in_progress"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := w.Append(ctx, tx, a.ID, domain.ActionNoteAdded, "admin", audit.Details{"note": "n"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := w.Append(ctx, tx, b.ID, domain.ActionNoteAdded, "admin", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	grouped, err := r.AdminLogsByReport(ctx, []string{a.ID, b.ID, "rep-c"})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(grouped[a.ID]) != 2 || len(grouped[b.ID]) != 1 || len(grouped["rep-c"]) != 0 {
		t.Fatalf("unexpected grouping %+v", grouped)
	}

	filtered, err := r.ListAdminLogs(ctx, repo.AdminLogFilters{Action: domain.ActionNoteAdded})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 note_added entries, got %d", len(filtered))
	}
}
