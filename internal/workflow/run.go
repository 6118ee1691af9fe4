// File path: internal/workflow/run.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/common/telemetry"
	"github.com/nicodishanthj/rfpassist/internal/export"
	"github.com/nicodishanthj/rfpassist/internal/kb"
	"github.com/nicodishanthj/rfpassist/internal/sqlite"
	"github.com/nicodishanthj/rfpassist/internal/synthesis"
)

type PreviewKind string

const (
	PreviewNone  PreviewKind = "none"
	PreviewDraft PreviewKind = "draft"
	PreviewPDF   PreviewKind = "pdf"
)

// Preview describes what the export panel can offer. File is the storage
// name of the exported PDF when Kind is PreviewPDF.
type Preview struct {
	Kind PreviewKind `json:"kind"`
	File string      `json:"file,omitempty"`
}

// RunState is a plain-data view of a run for rendering and JSON.
type RunState struct {
	Run        sqlite.Run             `json:"run"`
	Items      []sqlite.ChecklistItem `json:"items"`
	Done       int                    `json:"done"`
	Total      int                    `json:"total"`
	CanExport  bool                   `json:"can_export"`
	DraftHTML  string                 `json:"draft_html,omitempty"`
	DraftError string                 `json:"draft_error,omitempty"`
	Linked     []string               `json:"linked_requirements,omitempty"`
	Preview    Preview                `json:"preview"`
	Audit      []sqlite.AuditRow      `json:"audit,omitempty"`
}

// LinkedCount is the number of checklist requirements the draft references.
func (s *RunState) LinkedCount() int {
	linked := make(map[string]struct{}, len(s.Linked))
	for _, id := range s.Linked {
		linked[id] = struct{}{}
	}
	count := 0
	for _, item := range s.Items {
		if _, ok := linked[item.RequirementID]; ok {
			count++
		}
	}
	return count
}

// ExportAllowed is the export gate: at least one item and all done.
func ExportAllowed(done, total int) bool {
	return total > 0 && done == total
}

// ExportResult describes a written PDF.
type ExportResult struct {
	File  string `json:"file"`
	Pages int    `json:"pages"`
	Lines int    `json:"lines"`
}

// Open returns the run state, generating a draft first when none exists. A
// draft failure is reported in DraftError rather than as an error.
func (m *Manager) Open(ctx context.Context, runID int64) (*RunState, error) {
	state, err := m.Snapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state.DraftHTML == "" {
		html, err := m.EnsureDraft(ctx, runID, false)
		if err != nil {
			if errors.Is(err, ErrRunNotFound) {
				return nil, err
			}
			state.DraftError = "Draft generation failed: " + err.Error()
		} else {
			state.DraftHTML = html
			state.Linked = synthesis.LinkedRequirements(html)
			audit, err := m.store.AuditForRun(ctx, runID)
			if err != nil {
				return nil, err
			}
			state.Audit = audit
		}
		state.Preview = m.preview(ctx, runID)
	}
	return state, nil
}

// Snapshot returns the run state without calling the language model. The
// draft is included only when its file is readable.
func (m *Manager) Snapshot(ctx context.Context, runID int64) (*RunState, error) {
	run, err := m.store.GetRun(ctx, runID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := m.store.ChecklistForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	state := &RunState{Run: *run, Items: items, Total: len(items)}
	for _, item := range items {
		if item.Status == sqlite.StatusDone {
			state.Done++
		}
	}
	state.CanExport = ExportAllowed(state.Done, state.Total)
	if html, ok := m.readDraft(ctx, runID); ok {
		state.DraftHTML = html
		state.Linked = synthesis.LinkedRequirements(html)
	}
	state.Preview = m.preview(ctx, runID)
	if state.Audit, err = m.store.AuditForRun(ctx, runID); err != nil {
		return nil, err
	}
	return state, nil
}

// EnsureDraft returns the stored draft HTML, generating it when force is set,
// when none exists, or when its file has gone missing.
func (m *Manager) EnsureDraft(ctx context.Context, runID int64, force bool) (string, error) {
	unlock := m.lockRun(runID)
	defer unlock()
	logger := common.Logger()
	if _, err := m.store.GetRun(ctx, runID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return "", ErrRunNotFound
		}
		return "", err
	}
	if !force {
		if html, ok := m.readDraft(ctx, runID); ok {
			return html, nil
		}
	}
	items, err := m.store.ChecklistForRun(ctx, runID)
	if err != nil {
		return "", err
	}
	draft, err := m.synth.Synthesize(ctx, requirementsFor(items), m.houseRules)
	if err != nil {
		logger.Error("workflow: draft generation failed", "run", runID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}
	path := m.storagePath(fmt.Sprintf("run%d_draft.html", runID))
	if _, err := writeFile(path, strings.NewReader(draft.HTML)); err != nil {
		return "", err
	}
	hash := kb.FingerprintText(draft.HTML)
	if _, err := m.store.AddArtifact(ctx, runID, sqlite.ArtifactDraft, path, &hash); err != nil {
		return "", err
	}
	detail := fmt.Sprintf("max_tokens=%d kb_sources=%d", draft.MaxTokens, len(draft.KB.Sources))
	if draft.KB.Fingerprint != "" {
		detail += " kb=" + draft.KB.Fingerprint[:12]
	}
	if err := m.store.RecordAudit(ctx, &runID, "draft_generated", detail); err != nil {
		return "", err
	}
	telemetry.RecordDraft()
	logger.Info("workflow: draft generated", "run", runID, "force", force, "chars", len(draft.HTML), "kb_sources", len(draft.KB.Sources))
	return draft.HTML, nil
}

// Export renders the current draft as a PDF. It requires a draft and a
// complete checklist.
func (m *Manager) Export(ctx context.Context, runID int64) (*ExportResult, error) {
	unlock := m.lockRun(runID)
	defer unlock()
	if _, err := m.store.GetRun(ctx, runID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	html, ok := m.readDraft(ctx, runID)
	if !ok {
		return nil, ErrNoDraft
	}
	items, err := m.store.ChecklistForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	done := 0
	for _, item := range items {
		if item.Status == sqlite.StatusDone {
			done++
		}
	}
	if !ExportAllowed(done, len(items)) {
		return nil, fmt.Errorf("%w (%d/%d done)", ErrExportLocked, done, len(items))
	}
	ctx, end := telemetry.StartSpan(ctx, "export_pdf")
	outPath := m.storagePath(fmt.Sprintf("run%d_response.pdf", runID))
	stats, err := export.Export(html, outPath)
	if err != nil {
		end("error", err)
		return nil, err
	}
	if _, err := m.store.AddArtifact(ctx, runID, sqlite.ArtifactPDF, outPath, nil); err != nil {
		end("error", err)
		return nil, err
	}
	if err := m.store.RecordAudit(ctx, &runID, "exported", fmt.Sprintf("pages=%d lines=%d", stats.Pages, stats.Lines)); err != nil {
		end("error", err)
		return nil, err
	}
	if err := m.store.SetRunStatus(ctx, runID, sqlite.RunExported); err != nil {
		end("error", err)
		return nil, err
	}
	end("pages", stats.Pages)
	telemetry.RecordExport(stats.Pages)
	common.Logger().Info("workflow: pdf exported", "run", runID, "pages", stats.Pages, "lines", stats.Lines)
	return &ExportResult{File: filepath.Base(outPath), Pages: stats.Pages, Lines: stats.Lines}, nil
}

func (m *Manager) readDraft(ctx context.Context, runID int64) (string, bool) {
	artifact, err := m.store.LatestArtifact(ctx, runID, sqlite.ArtifactDraft)
	if err != nil {
		if !errors.Is(err, sqlite.ErrNotFound) {
			common.Logger().Warn("workflow: lookup draft failed", "run", runID, "error", err)
		}
		return "", false
	}
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		common.Logger().Warn("workflow: draft file unreadable", "run", runID, "path", artifact.Path, "error", err)
		return "", false
	}
	return string(data), true
}

func (m *Manager) preview(ctx context.Context, runID int64) Preview {
	if pdf, err := m.store.LatestArtifact(ctx, runID, sqlite.ArtifactPDF); err == nil {
		if _, statErr := os.Stat(pdf.Path); statErr == nil {
			return Preview{Kind: PreviewPDF, File: filepath.Base(pdf.Path)}
		}
	}
	if _, err := m.store.LatestArtifact(ctx, runID, sqlite.ArtifactDraft); err == nil {
		return Preview{Kind: PreviewDraft}
	}
	return Preview{Kind: PreviewNone}
}
