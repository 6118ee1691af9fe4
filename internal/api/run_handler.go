// File path: internal/api/run_handler.go
package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/workflow"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", nil)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.workflow.ListRuns(r.Context())
	if err != nil {
		writeFragmentError(w, err)
		return
	}
	s.render(w, http.StatusOK, "runs", runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	s.renderRun(w, r, runID)
}

func (s *Server) renderRun(w http.ResponseWriter, r *http.Request, runID int64) {
	state, err := s.workflow.Open(r.Context(), runID)
	if err != nil {
		writeFragmentError(w, err)
		return
	}
	s.render(w, http.StatusOK, "run", state)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "item")
	if !ok {
		return
	}
	if _, err := s.workflow.Toggle(r.Context(), runID, itemID); err != nil {
		writeFragmentError(w, err)
		return
	}
	s.renderRun(w, r, runID)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "item")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "invalid form")
		return
	}
	var status, assignee *string
	if r.Form.Has("status") {
		value := r.Form.Get("status")
		status = &value
	}
	if r.Form.Has("assignee") {
		value := r.Form.Get("assignee")
		assignee = &value
	}
	if status == nil && assignee == nil {
		writeText(w, http.StatusBadRequest, "status or assignee required")
		return
	}
	if _, err := s.workflow.UpdateItem(r.Context(), runID, itemID, status, assignee); err != nil {
		writeFragmentError(w, err)
		return
	}
	s.renderRun(w, r, runID)
}

func (s *Server) handleRenameRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "invalid form")
		return
	}
	if _, err := s.workflow.Rename(r.Context(), runID, r.Form.Get("name")); err != nil {
		writeFragmentError(w, err)
		return
	}
	s.renderRun(w, r, runID)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.workflow.Delete(r.Context(), runID); err != nil {
		writeFragmentError(w, err)
		return
	}
	// Empty 200 lets htmx drop the row with an outerHTML swap.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	html, err := s.workflow.EnsureDraft(r.Context(), runID, true)
	if err != nil {
		if errors.Is(err, workflow.ErrGateway) {
			common.Logger().Warn("api: draft regeneration failed", "run", runID, "error", err)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "<div class=\"text-red-400\">%s</div>", template.HTMLEscapeString("Draft generation failed: "+err.Error()))
			return
		}
		writeFragmentError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := s.workflow.Export(r.Context(), runID)
	if err != nil {
		writeFragmentError(w, err)
		return
	}
	s.render(w, http.StatusOK, "exported", result)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	fname := chi.URLParam(r, "fname")
	path, err := s.workflow.DownloadPath(fname)
	if err != nil {
		writeFragmentError(w, err)
		return
	}
	file, err := os.Open(path)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		writeText(w, status, "Not found")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := filepath.Base(path)
	w.Header().Set("Content-Type", detectContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func detectContentType(name string) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html"
	case ".txt":
		return "text/plain"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", param, raw))
		return 0, false
	}
	return id, true
}
