package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenWithConfig(Config{
		Path:         filepath.Join(t.TempDir(), "rfp.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func TestRunLifecycleCascades(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	run, err := store.CreateRun(ctx, "  Agency RFP  ")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.ID == 0 || run.Name != "Agency RFP" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if _, err := store.AddArtifact(ctx, run.ID, ArtifactOriginal, "/tmp/run1_orig.pdf", strPtr("abc")); err != nil {
		t.Fatalf("add artifact: %v", err)
	}
	if err := store.InsertChecklistItems(ctx, run.ID, []ChecklistItem{{RequirementID: "R1", Text: "Provide SSP", Must: true}}); err != nil {
		t.Fatalf("insert items: %v", err)
	}

	removed, deleted, err := store.DeleteRun(ctx, run.ID)
	if err != nil || !deleted {
		t.Fatalf("delete run: %v (deleted=%v)", err, deleted)
	}
	if len(removed) != 1 || removed[0].Path != "/tmp/run1_orig.pdf" {
		t.Fatalf("expected removed artifact, got %+v", removed)
	}
	if _, err := store.GetRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	items, err := store.ChecklistForRun(ctx, run.ID)
	if err != nil || len(items) != 0 {
		t.Fatalf("expected checklist cascade, got %d items (%v)", len(items), err)
	}
	artifacts, err := store.ArtifactsForRun(ctx, run.ID)
	if err != nil || len(artifacts) != 0 {
		t.Fatalf("expected artifact cascade, got %d (%v)", len(artifacts), err)
	}

	again, deleted, err := store.DeleteRun(ctx, run.ID)
	if err != nil || deleted || len(again) != 0 {
		t.Fatalf("second delete should be a no-op: %v %v %v", again, deleted, err)
	}
}

func TestListRunsOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	for _, name := range []string{"first", "second", "third"} {
		if _, err := store.CreateRun(ctx, name); err != nil {
			t.Fatalf("create run: %v", err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].Name != "first" || runs[2].Name != "third" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestLatestArtifactPrefersNewest(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	run, _ := store.CreateRun(ctx, "r")
	if _, err := store.LatestArtifact(ctx, run.ID, ArtifactDraft); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any draft, got %v", err)
	}
	store.AddArtifact(ctx, run.ID, ArtifactDraft, "old.html", nil)
	store.AddArtifact(ctx, run.ID, ArtifactDraft, "new.html", nil)
	latest, err := store.LatestArtifact(ctx, run.ID, ArtifactDraft)
	if err != nil {
		t.Fatalf("latest artifact: %v", err)
	}
	if latest.Path != "new.html" || latest.Hash != nil {
		t.Fatalf("unexpected artifact: %+v", latest)
	}
}

func TestChecklistDefaultsAndToggle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	run, _ := store.CreateRun(ctx, "r")
	other, _ := store.CreateRun(ctx, "other")
	limit := 5
	err := store.InsertChecklistItems(ctx, run.ID, []ChecklistItem{
		{RequirementID: "R1", Text: "Provide SSP", Must: true, PageLimit: &limit, Due: strPtr("2025-01-31")},
		{RequirementID: "R2", Must: false},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	items, err := store.ChecklistForRun(ctx, run.ID)
	if err != nil || len(items) != 2 {
		t.Fatalf("checklist: %v %d", err, len(items))
	}
	if items[0].PageLimit == nil || *items[0].PageLimit != 5 || items[0].Due == nil || !items[0].Must {
		t.Fatalf("optional fields not persisted: %+v", items[0])
	}
	if items[1].Section != "General" || items[1].Text != "(empty)" || items[1].Status != StatusTodo || items[1].Must {
		t.Fatalf("defaults not applied: %+v", items[1])
	}

	toggled, err := store.ToggleChecklistItem(ctx, run.ID, items[0].ID)
	if err != nil || toggled.Status != StatusDone {
		t.Fatalf("toggle to done: %+v %v", toggled, err)
	}
	toggled, err = store.ToggleChecklistItem(ctx, run.ID, items[0].ID)
	if err != nil || toggled.Status != StatusTodo {
		t.Fatalf("toggle back: %+v %v", toggled, err)
	}
	if _, err := store.ToggleChecklistItem(ctx, other.ID, items[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for item of another run, got %v", err)
	}
	if _, err := store.ToggleChecklistItem(ctx, run.ID, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing item, got %v", err)
	}
}

func TestUpdateChecklistItem(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	run, _ := store.CreateRun(ctx, "r")
	store.InsertChecklistItems(ctx, run.ID, []ChecklistItem{{RequirementID: "R1", Text: "t"}})
	items, _ := store.ChecklistForRun(ctx, run.ID)

	updated, err := store.UpdateChecklistItem(ctx, run.ID, items[0].ID, ItemUpdate{Status: strPtr(StatusInProgress), Assignee: strPtr(" dana ")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusInProgress || updated.Assignee == nil || *updated.Assignee != "dana" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	cleared, err := store.UpdateChecklistItem(ctx, run.ID, items[0].ID, ItemUpdate{Assignee: strPtr("")})
	if err != nil || cleared.Assignee != nil || cleared.Status != StatusInProgress {
		t.Fatalf("unexpected clear: %+v %v", cleared, err)
	}
	if _, err := store.UpdateChecklistItem(ctx, run.ID, items[0].ID, ItemUpdate{Status: strPtr("blocked")}); err == nil {
		t.Fatalf("expected invalid status error")
	}

	trail, err := store.AuditForRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	actions := map[string]int{}
	for _, row := range trail {
		actions[row.Action]++
	}
	if actions["run_created"] != 1 || actions["checklist_created"] != 1 || actions["item_updated"] != 2 {
		t.Fatalf("unexpected audit trail: %+v", actions)
	}
}

func TestRenameRun(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	first, _ := store.CreateRun(ctx, "Agency RFP")
	second, _ := store.CreateRun(ctx, "Other")
	if first.Status != RunDraft {
		t.Fatalf("expected new run in draft status, got %q", first.Status)
	}

	if _, err := store.RenameRun(ctx, second.ID, "agency rfp"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	renamed, err := store.RenameRun(ctx, first.ID, "AGENCY RFP")
	if err != nil || renamed.Name != "AGENCY RFP" {
		t.Fatalf("case-only rename: %+v %v", renamed, err)
	}
	if _, err := store.RenameRun(ctx, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	taken, err := store.NameInUse(ctx, "agency rfp", second.ID)
	if err != nil || !taken {
		t.Fatalf("expected name in use: %v %v", taken, err)
	}
	if taken, _ := store.NameInUse(ctx, "agency rfp", first.ID); taken {
		t.Fatalf("a run's own name must not count as taken")
	}
	audit, _ := store.AuditForRun(ctx, first.ID)
	if got := countAction(audit, "run_renamed"); got != 1 {
		t.Fatalf("expected one rename audit row, got %d", got)
	}
}

func TestSetRunStatus(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	run, _ := store.CreateRun(ctx, "r")
	for i := 0; i < 2; i++ {
		if err := store.SetRunStatus(ctx, run.ID, RunExported); err != nil {
			t.Fatalf("set status: %v", err)
		}
	}
	got, _ := store.GetRun(ctx, run.ID)
	if got.Status != RunExported {
		t.Fatalf("expected exported, got %q", got.Status)
	}
	audit, _ := store.AuditForRun(ctx, run.ID)
	if n := countAction(audit, "status_changed"); n != 1 {
		t.Fatalf("expected a single status change audit, got %d", n)
	}
	if err := store.SetRunStatus(ctx, run.ID, "archived"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if err := store.SetRunStatus(ctx, 999, RunDraft); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrateAddsStatusToExistingRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	legacy, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	if _, err := legacy.Exec(`CREATE TABLE runs (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if _, err := legacy.Exec(`INSERT INTO runs(name) VALUES('old run')`); err != nil {
		t.Fatalf("insert legacy run: %v", err)
	}
	legacy.Close()

	store, err := OpenWithConfig(Config{Path: path, MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	run, err := store.GetRun(context.Background(), 1)
	if err != nil || run.Status != RunDraft || run.Name != "old run" {
		t.Fatalf("unexpected migrated run: %+v %v", run, err)
	}
}

func countAction(rows []AuditRow, action string) int {
	n := 0
	for _, row := range rows {
		if row.Action == action {
			n++
		}
	}
	return n
}

func TestUninitialisedStore(t *testing.T) {
	var store *Store
	if _, err := store.ListRuns(context.Background()); err == nil {
		t.Fatalf("expected error from nil store")
	}
}

func TestPathFromURL(t *testing.T) {
	cases := map[string]string{
		"sqlite:///./rfp.db": "./rfp.db",
		"data/rfp.db":        "data/rfp.db",
	}
	for in, want := range cases {
		got, err := PathFromURL(in)
		if err != nil || got != want {
			t.Fatalf("PathFromURL(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := PathFromURL("postgres://db"); err == nil {
		t.Fatalf("expected unsupported url error")
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("SQLITE_CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "sqlite:///./from-url.db")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("SQLITE_MAX_OPEN_CONNS", "2")
	t.Setenv("SQLITE_MAX_IDLE_CONNS", "")
	t.Setenv("SQLITE_CONN_MAX_LIFETIME", "")
	t.Setenv("SQLITE_BUSY_TIMEOUT", "250ms")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Path != "./from-url.db" || cfg.MaxOpenConns != 2 || cfg.MaxIdleConns != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.BusyTimeout.Milliseconds() != 250 || cfg.ConnMaxLifetime.Minutes() != 15 {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
}
