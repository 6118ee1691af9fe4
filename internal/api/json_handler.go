// File path: internal/api/json_handler.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/workflow"
)

var (
	errInvalidID    = errors.New("invalid run id")
	errInvalidLimit = errors.New("limit must be a non-negative integer")
	errInvalidBody  = errors.New("invalid JSON body")
)

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.workflow.ListRuns(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || runID <= 0 {
		writeError(w, http.StatusBadRequest, errInvalidID)
		return
	}
	state, err := s.workflow.Snapshot(r.Context(), runID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAPIRenameRun(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || runID <= 0 {
		writeError(w, http.StatusBadRequest, errInvalidID)
		return
	}
	var req renameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	run, err := s.workflow.Rename(r.Context(), runID, req.Name)
	if err != nil {
		var conflict *workflow.NameConflictError
		if errors.As(err, &conflict) {
			logFailure(http.StatusConflict, err)
			writeJSON(w, http.StatusConflict, map[string]string{"error": workflow.ErrNameConflict.Error(), "suggested_name": conflict.Suggested})
			return
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Ready(r.Context()); err != nil {
		common.Logger().Warn("api: readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "not ready",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = parsed
	}
	entries := common.FilterLogEntries(common.LogEntries(), query.Get("component"), limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
