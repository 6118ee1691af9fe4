// File path: internal/api/upload_handler.go
package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/workflow"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	const maxMemory = 8 << 20 // in-memory file parts; the rest spills to disk
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		logger.Warn("api: upload form parse failed", "error", err)
		writeText(w, status, fmt.Sprintf("failed to parse upload form: %v", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeText(w, http.StatusBadRequest, "name is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeText(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	logger.Info("api: upload received", "name", name, "filename", header.Filename, "size", header.Size)

	state, err := s.workflow.Upload(r.Context(), name, header.Filename, file)
	if err != nil {
		if errors.Is(err, workflow.ErrGateway) {
			logFailure(http.StatusBadGateway, err)
			writeText(w, http.StatusBadGateway, "Requirement extraction failed: "+err.Error())
			return
		}
		writeFragmentError(w, err)
		return
	}
	s.render(w, http.StatusOK, "run", state)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	message := workflow.SearchStub(r.URL.Query().Get("q"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<div class=\"text-gray-400\">%s</div>", template.HTMLEscapeString(message))
}

func (s *Server) handleRemoteFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.workflow.RemoteFiles(r.Context())
	if err != nil {
		writeFragmentError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
		return
	}
	s.render(w, http.StatusOK, "remote", files)
}

func (s *Server) handleRemoteImport(w http.ResponseWriter, r *http.Request) {
	fileID := strings.TrimSpace(chi.URLParam(r, "fileID"))
	state, err := s.workflow.ImportRemote(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, workflow.ErrGateway) {
			logFailure(http.StatusBadGateway, err)
			writeText(w, http.StatusBadGateway, "Requirement extraction failed: "+err.Error())
			return
		}
		writeFragmentError(w, err)
		return
	}
	s.render(w, http.StatusOK, "run", state)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
