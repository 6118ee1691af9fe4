// File path: internal/workflow/manager.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/common/telemetry"
	"github.com/nicodishanthj/rfpassist/internal/kb"
	"github.com/nicodishanthj/rfpassist/internal/llm"
	"github.com/nicodishanthj/rfpassist/internal/normalize"
	"github.com/nicodishanthj/rfpassist/internal/requirements"
	"github.com/nicodishanthj/rfpassist/internal/sharepoint"
	"github.com/nicodishanthj/rfpassist/internal/sqlite"
	"github.com/nicodishanthj/rfpassist/internal/synthesis"
)

// requirementIDLen bounds stored requirement identifiers.
const requirementIDLen = 12

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrItemNotFound     = errors.New("checklist item not found")
	ErrNoDraft          = errors.New("no draft yet")
	ErrExportLocked     = errors.New("complete all checklist items to enable export")
	ErrInvalidStatus    = errors.New("invalid checklist status")
	ErrArtifactNotFound = errors.New("artifact not available")
	ErrArtifactInvalid  = errors.New("artifact invalid")
	ErrGateway          = errors.New("language model call failed")
	ErrInvalidName      = errors.New("run name required")
	ErrNameConflict     = errors.New("a run with that name already exists")
)

// NameConflictError is returned by Rename when another run holds the name.
// Suggested is a free alternative.
type NameConflictError struct {
	Name      string
	Suggested string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("a run named %q already exists; try %q", e.Name, e.Suggested)
}

func (e *NameConflictError) Is(target error) bool {
	return target == ErrNameConflict
}

// Config locates the storage directory and knowledge base used by a Manager.
type Config struct {
	StorageDir       string
	KnowledgeBaseDir string
	MaxKBChars       int
	HouseRules       string
}

// Manager sequences the upload, extraction, drafting and export pipeline for
// runs persisted in the SQLite store.
type Manager struct {
	store     *sqlite.Store
	extractor *requirements.Extractor
	synth     *synthesis.Synthesizer
	remote    *sharepoint.Client

	storageDir string
	houseRules string

	runMu sync.Mutex
	runs  map[int64]*sync.Mutex
}

func NewManager(store *sqlite.Store, provider llm.Provider, remote *sharepoint.Client, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("workflow: store required")
	}
	if provider == nil {
		return nil, errors.New("workflow: provider required")
	}
	storageDir := strings.TrimSpace(cfg.StorageDir)
	if storageDir == "" {
		storageDir = "storage"
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	houseRules := strings.TrimSpace(cfg.HouseRules)
	if houseRules == "" {
		houseRules = llm.DefaultHouseRules
	}
	if remote == nil {
		remote = sharepoint.NewClient(sharepoint.Config{})
	}
	return &Manager{
		store:      store,
		extractor:  requirements.NewExtractor(provider),
		synth:      synthesis.New(provider, synthesis.Config{KnowledgeBaseDir: cfg.KnowledgeBaseDir, MaxKBChars: cfg.MaxKBChars}),
		remote:     remote,
		storageDir: storageDir,
		houseRules: houseRules,
		runs:       make(map[int64]*sync.Mutex),
	}, nil
}

// StorageDir is the directory holding run files.
func (m *Manager) StorageDir() string {
	return m.storageDir
}

// Store exposes the persistence layer backing this manager.
func (m *Manager) Store() *sqlite.Store {
	return m.store
}

func (m *Manager) lockRun(id int64) func() {
	m.runMu.Lock()
	mu, ok := m.runs[id]
	if !ok {
		mu = &sync.Mutex{}
		m.runs[id] = mu
	}
	m.runMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// forgetRun drops the lock entry of a deleted run. Callers hold the run lock.
func (m *Manager) forgetRun(id int64) {
	m.runMu.Lock()
	delete(m.runs, id)
	m.runMu.Unlock()
}

// Upload creates a run from an uploaded document: the original is stored and
// hashed, normalized to text, and its requirements are extracted into the
// checklist. The returned state includes a generated draft.
func (m *Manager) Upload(ctx context.Context, name, filename string, content io.Reader) (*RunState, error) {
	logger := common.Logger()
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(filepath.Base(filename))
	}
	run, err := m.store.CreateRun(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	logger.Info("workflow: run created", "run", run.ID, "name", run.Name, "filename", filename)

	origPath := m.storagePath(fmt.Sprintf("run%d_orig%s", run.ID, strings.ToLower(filepath.Ext(filename))))
	size, err := writeFile(origPath, content)
	if err != nil {
		return nil, err
	}
	hash, err := kb.FingerprintFile(origPath)
	if err != nil {
		return nil, err
	}
	if _, err := m.store.AddArtifact(ctx, run.ID, sqlite.ArtifactOriginal, origPath, &hash); err != nil {
		return nil, err
	}
	telemetry.RecordRunCreated(size)

	normalized, err := normalize.Normalize(ctx, origPath)
	if err != nil {
		return nil, err
	}
	normPath := m.storagePath(fmt.Sprintf("run%d_normalized.txt", run.ID))
	if _, err := writeFile(normPath, strings.NewReader(normalized.Text)); err != nil {
		return nil, err
	}
	if _, err := m.store.AddArtifact(ctx, run.ID, sqlite.ArtifactNormalized, normPath, nil); err != nil {
		return nil, err
	}
	logger.Debug("workflow: document normalized", "run", run.ID, "hint", normalized.Hint, "chars", len(normalized.Text))

	parsed, err := m.extractor.Extract(ctx, normalized.Text)
	if err != nil {
		logger.Error("workflow: requirement extraction failed", "run", run.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if err := m.store.InsertChecklistItems(ctx, run.ID, checklistItems(parsed.Requirements)); err != nil {
		return nil, err
	}
	logger.Info("workflow: checklist created", "run", run.ID, "outcome", parsed.Outcome, "items", len(parsed.Requirements))
	return m.Open(ctx, run.ID)
}

// ImportRemote downloads a document from the remote repository and runs the
// upload pipeline on it.
func (m *Manager) ImportRemote(ctx context.Context, fileID string) (*RunState, error) {
	file, err := m.remote.Lookup(ctx, fileID)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(m.storageDir, "remote-*"+filepath.Ext(file.Name))
	if err != nil {
		return nil, fmt.Errorf("create import file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)
	if err := m.remote.Download(ctx, file.ID, tmpPath); err != nil {
		return nil, err
	}
	src, err := os.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer src.Close()
	return m.Upload(ctx, strings.TrimSuffix(file.Name, filepath.Ext(file.Name)), file.Name, src)
}

// RemoteFiles lists the remote repository.
func (m *Manager) RemoteFiles(ctx context.Context) ([]sharepoint.File, error) {
	return m.remote.List(ctx)
}

// ListRuns returns every run, oldest first.
func (m *Manager) ListRuns(ctx context.Context) ([]sqlite.Run, error) {
	return m.store.ListRuns(ctx)
}

// Toggle flips a checklist item between done and todo.
func (m *Manager) Toggle(ctx context.Context, runID, itemID int64) (*sqlite.ChecklistItem, error) {
	item, err := m.store.ToggleChecklistItem(ctx, runID, itemID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	telemetry.RecordChecklistUpdate()
	common.Logger().Debug("workflow: item toggled", "run", runID, "item", itemID, "status", item.Status)
	return item, nil
}

// UpdateItem sets the status and/or assignee of a checklist item.
func (m *Manager) UpdateItem(ctx context.Context, runID, itemID int64, status, assignee *string) (*sqlite.ChecklistItem, error) {
	if status != nil {
		trimmed := strings.ToLower(strings.TrimSpace(*status))
		if !sqlite.ValidStatus(trimmed) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *status)
		}
		status = &trimmed
	}
	item, err := m.store.UpdateChecklistItem(ctx, runID, itemID, sqlite.ItemUpdate{Status: status, Assignee: assignee})
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	telemetry.RecordChecklistUpdate()
	return item, nil
}

// Ready reports whether the database answers and the storage directory is
// usable.
func (m *Manager) Ready(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	info, err := os.Stat(m.storageDir)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: %s is not a directory", m.storageDir)
	}
	return nil
}

// Rename changes a run's display name. Names are unique per store, ignoring
// case; a clash returns a *NameConflictError carrying a suggested name.
func (m *Manager) Rename(ctx context.Context, runID int64, name string) (*sqlite.Run, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	run, err := m.store.RenameRun(ctx, runID, name)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return nil, ErrRunNotFound
	case errors.Is(err, sqlite.ErrNameTaken):
		suggested, serr := m.suggestName(ctx, runID, name)
		if serr != nil {
			return nil, serr
		}
		return nil, &NameConflictError{Name: name, Suggested: suggested}
	case err != nil:
		return nil, err
	}
	common.Logger().Info("workflow: run renamed", "run", runID, "name", run.Name)
	return run, nil
}

// suggestName appends _2, _3, ... before the extension until the name is free.
func (m *Manager) suggestName(ctx context.Context, runID int64, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; n < 1000; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		taken, err := m.store.NameInUse(ctx, candidate, runID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext), nil
}

// Delete removes a run, its rows and its files. Missing runs and files are
// not errors.
func (m *Manager) Delete(ctx context.Context, runID int64) error {
	unlock := m.lockRun(runID)
	defer unlock()
	logger := common.Logger()
	artifacts, deleted, err := m.store.DeleteRun(ctx, runID)
	if err != nil {
		return err
	}
	m.forgetRun(runID)
	for _, artifact := range artifacts {
		if err := os.Remove(artifact.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("workflow: remove artifact failed", "run", runID, "path", artifact.Path, "error", err)
		}
	}
	if deleted {
		telemetry.RecordRunDeleted()
		logger.Info("workflow: run deleted", "run", runID, "artifacts", len(artifacts))
	}
	return nil
}

// DownloadPath resolves a bare file name inside the storage directory.
func (m *Manager) DownloadPath(fname string) (string, error) {
	fname = strings.TrimSpace(fname)
	if fname == "" || fname == "." || fname == ".." || filepath.Base(fname) != fname || strings.ContainsAny(fname, `/\`) {
		return "", ErrArtifactInvalid
	}
	return m.validateArtifactPath(filepath.Join(m.storageDir, fname))
}

func (m *Manager) validateArtifactPath(path string) (string, error) {
	absPath, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	rootAbs, err := filepath.Abs(m.storageDir)
	if err != nil {
		return "", fmt.Errorf("resolve storage root: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, absPath)
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrArtifactInvalid
	}
	info, err := os.Stat(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrArtifactNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return "", ErrArtifactInvalid
	}
	return absPath, nil
}

// SearchStub answers the file search box until a file share is integrated.
func SearchStub(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		query = "(empty)"
	}
	return "Search requested: " + query
}

func (m *Manager) storagePath(name string) string {
	return filepath.Join(m.storageDir, name)
}

func writeFile(path string, content io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	n, copyErr := io.Copy(file, content)
	closeErr := file.Close()
	if copyErr != nil {
		return 0, fmt.Errorf("write %s: %w", filepath.Base(path), copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close %s: %w", filepath.Base(path), closeErr)
	}
	return n, nil
}

// checklistItems converts extracted requirements into checklist rows. A
// missing id becomes a random UUID prefix; ids are cut to 12 characters.
func checklistItems(reqs []requirements.Requirement) []sqlite.ChecklistItem {
	items := make([]sqlite.ChecklistItem, 0, len(reqs))
	for _, req := range reqs {
		id := strings.TrimSpace(req.ID)
		if id == "" {
			id = uuid.NewString()
		}
		if runes := []rune(id); len(runes) > requirementIDLen {
			id = string(runes[:requirementIDLen])
		}
		item := sqlite.ChecklistItem{
			RequirementID: id,
			Section:       strings.TrimSpace(req.Section),
			Text:          strings.TrimSpace(req.Text),
			Must:          req.Must,
			Due:           req.Due,
			ArtifactType:  req.ArtifactType,
			Status:        sqlite.StatusTodo,
		}
		if pages := req.TargetPages(); pages > 0 {
			item.PageLimit = &pages
		}
		items = append(items, item)
	}
	return items
}

// requirementsFor rebuilds the content fields of the requirements behind a
// checklist.
func requirementsFor(items []sqlite.ChecklistItem) []requirements.Requirement {
	reqs := make([]requirements.Requirement, 0, len(items))
	for _, item := range items {
		reqs = append(reqs, requirements.Requirement{
			ID:           item.RequirementID,
			Section:      item.Section,
			Text:         item.Text,
			Must:         item.Must,
			Due:          item.Due,
			ArtifactType: item.ArtifactType,
			PageLimit:    item.PageLimit,
		})
	}
	return reqs
}
