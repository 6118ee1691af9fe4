// File path: internal/sqlite/queries.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a run, artifact or checklist item does not
// exist (or belongs to another run).
var ErrNotFound = errors.New("sqlite: record not found")

// ErrNameTaken reports that another run already uses a name, compared
// case-insensitively.
var ErrNameTaken = errors.New("sqlite: run name already in use")

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	return nil
}

// CreateRun inserts a run row and returns it with its assigned id.
func (s *Store) CreateRun(ctx context.Context, name string) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	run := Run{Name: strings.TrimSpace(name), Status: RunDraft, CreatedAt: time.Now().UTC()}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO runs(name, status, created_at) VALUES(?, ?, ?)`, run.Name, run.Status, run.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if run.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("run id: %w", err)
		}
		return recordAudit(ctx, tx, &run.ID, "run_created", run.Name)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var run Run
	if err := s.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "select run")
	}
	return &run, nil
}

// ListRuns returns every run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, `SELECT * FROM runs ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

// NameInUse reports whether a run other than exceptID is called name.
func (s *Store) NameInUse(ctx context.Context, name string, exceptID int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM runs WHERE lower(name) = lower(?) AND id <> ?`, strings.TrimSpace(name), exceptID); err != nil {
		return false, fmt.Errorf("count run names: %w", err)
	}
	return count > 0, nil
}

// RenameRun changes a run's display name. Renaming to a name held by another
// run returns ErrNameTaken; a change of case only is allowed.
func (s *Store) RenameRun(ctx context.Context, id int64, name string) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	var run Run
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = ?`, id); err != nil {
			return notFound(err, "select run")
		}
		if run.Name == name {
			return nil
		}
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(1) FROM runs WHERE lower(name) = lower(?) AND id <> ?`, name, id); err != nil {
			return fmt.Errorf("count run names: %w", err)
		}
		if count > 0 {
			return ErrNameTaken
		}
		if _, err := tx.ExecContext(ctx, `UPDATE runs SET name = ? WHERE id = ?`, name, id); err != nil {
			return fmt.Errorf("rename run: %w", err)
		}
		previous := run.Name
		run.Name = name
		return recordAudit(ctx, tx, &id, "run_renamed", fmt.Sprintf("%s -> %s", previous, name))
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// SetRunStatus moves a run to status, auditing only real changes.
func (s *Store) SetRunStatus(ctx context.Context, id int64, status string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if status != RunDraft && status != RunExported {
		return fmt.Errorf("invalid run status %q", status)
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var current string
		if err := tx.GetContext(ctx, &current, `SELECT status FROM runs WHERE id = ?`, id); err != nil {
			return notFound(err, "select run status")
		}
		if current == status {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, status, id); err != nil {
			return fmt.Errorf("update run status: %w", err)
		}
		return recordAudit(ctx, tx, &id, "status_changed", fmt.Sprintf("%s -> %s", current, status))
	})
}

// DeleteRun removes a run together with its artifacts and checklist items.
// The removed artifact rows are returned so callers can clean up files.
// Deleting a missing run is not an error; deleted reports whether a row was
// removed.
func (s *Store) DeleteRun(ctx context.Context, id int64) ([]Artifact, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	artifacts := []Artifact{}
	deleted := false
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &artifacts, `SELECT * FROM artifacts WHERE run_id = ? ORDER BY id`, id); err != nil {
			return fmt.Errorf("select artifacts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		deleted = true
		return recordAudit(ctx, tx, nil, "run_deleted", fmt.Sprintf("run %d", id))
	})
	if err != nil {
		return nil, false, err
	}
	return artifacts, deleted, nil
}

// AddArtifact records a file produced for a run.
func (s *Store) AddArtifact(ctx context.Context, runID int64, kind ArtifactKind, path string, hash *string) (*Artifact, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	artifact := Artifact{RunID: runID, Kind: kind, Path: path, Hash: hash, CreatedAt: time.Now().UTC()}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO artifacts(run_id, kind, path, hash, created_at) VALUES(?, ?, ?, ?, ?)`,
			runID, string(kind), path, hash, artifact.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}
		if artifact.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("artifact id: %w", err)
		}
		return recordAudit(ctx, tx, &runID, "artifact_added", string(kind))
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// LatestArtifact returns the most recently recorded artifact of kind for a run.
func (s *Store) LatestArtifact(ctx context.Context, runID int64, kind ArtifactKind) (*Artifact, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := s.db.GetContext(ctx, &artifact, `SELECT * FROM artifacts WHERE run_id = ? AND kind = ? ORDER BY id DESC LIMIT 1`, runID, string(kind)); err != nil {
		return nil, notFound(err, "select artifact")
	}
	return &artifact, nil
}

// ArtifactsForRun lists a run's artifacts in creation order.
func (s *Store) ArtifactsForRun(ctx context.Context, runID int64) ([]Artifact, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	artifacts := []Artifact{}
	if err := s.db.SelectContext(ctx, &artifacts, `SELECT * FROM artifacts WHERE run_id = ? ORDER BY id`, runID); err != nil {
		return nil, fmt.Errorf("select artifacts: %w", err)
	}
	return artifacts, nil
}

// InsertChecklistItems stores items for a run in one transaction. Blank
// section, text and status fall back to General, (empty) and todo.
func (s *Store) InsertChecklistItems(ctx context.Context, runID int64, items []ChecklistItem) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, item := range items {
			if strings.TrimSpace(item.Section) == "" {
				item.Section = "General"
			}
			if strings.TrimSpace(item.Text) == "" {
				item.Text = "(empty)"
			}
			if !ValidStatus(item.Status) {
				item.Status = StatusTodo
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO checklist_items(run_id, requirement_id, section, text, must, due, artifact_type, page_limit, status, assignee)
                                VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, item.RequirementID, item.Section, item.Text, item.Must, item.Due, item.ArtifactType, item.PageLimit, item.Status, item.Assignee); err != nil {
				return fmt.Errorf("insert checklist item %q: %w", item.RequirementID, err)
			}
		}
		return recordAudit(ctx, tx, &runID, "checklist_created", fmt.Sprintf("%d items", len(items)))
	})
}

// ChecklistForRun returns a run's checklist in insertion order.
func (s *Store) ChecklistForRun(ctx context.Context, runID int64) ([]ChecklistItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	items := []ChecklistItem{}
	if err := s.db.SelectContext(ctx, &items, `SELECT * FROM checklist_items WHERE run_id = ? ORDER BY id`, runID); err != nil {
		return nil, fmt.Errorf("select checklist: %w", err)
	}
	return items, nil
}

// ChecklistItem retrieves one item, scoped to its run.
func (s *Store) ChecklistItem(ctx context.Context, runID, itemID int64) (*ChecklistItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var item ChecklistItem
	if err := s.db.GetContext(ctx, &item, `SELECT * FROM checklist_items WHERE id = ? AND run_id = ?`, itemID, runID); err != nil {
		return nil, notFound(err, "select checklist item")
	}
	return &item, nil
}

// ToggleChecklistItem flips an item between done and todo. Any status other
// than done becomes done.
func (s *Store) ToggleChecklistItem(ctx context.Context, runID, itemID int64) (*ChecklistItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var item ChecklistItem
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &item, `SELECT * FROM checklist_items WHERE id = ? AND run_id = ?`, itemID, runID); err != nil {
			return notFound(err, "select checklist item")
		}
		if item.Status == StatusDone {
			item.Status = StatusTodo
		} else {
			item.Status = StatusDone
		}
		if _, err := tx.ExecContext(ctx, `UPDATE checklist_items SET status = ? WHERE id = ?`, item.Status, item.ID); err != nil {
			return fmt.Errorf("update checklist item: %w", err)
		}
		return recordAudit(ctx, tx, &runID, "item_toggled", fmt.Sprintf("%s -> %s", item.RequirementID, item.Status))
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ItemUpdate carries the optional fields of a checklist edit. Nil fields are
// left unchanged; an empty assignee clears it.
type ItemUpdate struct {
	Status   *string
	Assignee *string
}

// UpdateChecklistItem applies update to an item scoped to its run.
func (s *Store) UpdateChecklistItem(ctx context.Context, runID, itemID int64, update ItemUpdate) (*ChecklistItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if update.Status != nil && !ValidStatus(*update.Status) {
		return nil, fmt.Errorf("invalid status %q", *update.Status)
	}
	var item ChecklistItem
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &item, `SELECT * FROM checklist_items WHERE id = ? AND run_id = ?`, itemID, runID); err != nil {
			return notFound(err, "select checklist item")
		}
		var changes []string
		if update.Status != nil {
			item.Status = *update.Status
			changes = append(changes, "status="+item.Status)
		}
		if update.Assignee != nil {
			if assignee := strings.TrimSpace(*update.Assignee); assignee != "" {
				item.Assignee = &assignee
				changes = append(changes, "assignee="+assignee)
			} else {
				item.Assignee = nil
				changes = append(changes, "assignee cleared")
			}
		}
		if len(changes) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE checklist_items SET status = ?, assignee = ? WHERE id = ?`, item.Status, item.Assignee, item.ID); err != nil {
			return fmt.Errorf("update checklist item: %w", err)
		}
		return recordAudit(ctx, tx, &runID, "item_updated", item.RequirementID+": "+strings.Join(changes, ", "))
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RecordAudit appends an entry to the audit trail outside any other write.
func (s *Store) RecordAudit(ctx context.Context, runID *int64, action, detail string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return recordAudit(ctx, tx, runID, action, detail)
	})
}

// AuditForRun returns a run's audit trail, oldest first.
func (s *Store) AuditForRun(ctx context.Context, runID int64) ([]AuditRow, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows := []AuditRow{}
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM audit WHERE run_id = ? ORDER BY id`, runID); err != nil {
		return nil, fmt.Errorf("select audit: %w", err)
	}
	return rows, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func recordAudit(ctx context.Context, tx *sqlx.Tx, runID *int64, action, detail string) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO audit(run_id, action, detail, created_at) VALUES(?, ?, ?, ?)`,
		runID, action, detail, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
