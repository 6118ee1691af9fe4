// File path: internal/sqlite/types.go
package sqlite

import "time"

// ArtifactKind discriminates the files a run produces.
type ArtifactKind string

const (
	ArtifactOriginal   ArtifactKind = "original"
	ArtifactNormalized ArtifactKind = "normalized_text"
	ArtifactDraft      ArtifactKind = "draft_html"
	ArtifactPDF        ArtifactKind = "pdf"
)

// Checklist item statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// ValidStatus reports whether status is one of the checklist statuses.
func ValidStatus(status string) bool {
	switch status {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Run lifecycle states. A run starts as a draft and becomes exported once a
// PDF has been written for it.
const (
	RunDraft    = "draft"
	RunExported = "exported"
)

// Run is one document-processing session.
type Run struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Artifact is a file produced by a pipeline stage.
type Artifact struct {
	ID        int64        `db:"id" json:"id"`
	RunID     int64        `db:"run_id" json:"run_id"`
	Kind      ArtifactKind `db:"kind" json:"kind"`
	Path      string       `db:"path" json:"path"`
	Hash      *string      `db:"hash" json:"hash,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// ChecklistItem is one extracted requirement and its completion state.
type ChecklistItem struct {
	ID            int64   `db:"id" json:"id"`
	RunID         int64   `db:"run_id" json:"run_id"`
	RequirementID string  `db:"requirement_id" json:"requirement_id"`
	Section       string  `db:"section" json:"section"`
	Text          string  `db:"text" json:"text"`
	Must          bool    `db:"must" json:"must"`
	Due           *string `db:"due" json:"due,omitempty"`
	ArtifactType  *string `db:"artifact_type" json:"artifact_type,omitempty"`
	PageLimit     *int    `db:"page_limit" json:"page_limit,omitempty"`
	Status        string  `db:"status" json:"status"`
	Assignee      *string `db:"assignee" json:"assignee,omitempty"`
}

// AuditRow is one entry of the run audit trail. RunID is cleared when the
// run is deleted.
type AuditRow struct {
	ID        int64     `db:"id" json:"id"`
	RunID     *int64    `db:"run_id" json:"run_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
