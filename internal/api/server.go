// File path: internal/api/server.go
package api

import (
	"embed"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/data/orchestrator"
	"github.com/nicodishanthj/rfpassist/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	router    chi.Router
	workflow  *workflow.Manager
	templates *template.Template
	maxUpload int64
	started   time.Time

	orchestrator *orchestrator.Orchestrator
}

// Config controls request limits of the API server.
type Config struct {
	MaxUploadBytes int64
}

// DefaultConfig returns the standard configuration used when no overrides are
// provided.
func DefaultConfig() Config {
	return Config{MaxUploadBytes: 32 << 20}
}

// Merge overlays non-zero fields from the override onto the base
// configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if override.MaxUploadBytes > 0 {
		result.MaxUploadBytes = override.MaxUploadBytes
	}
	return result
}

func NewServer(orch *orchestrator.Orchestrator, cfg *Config) (*Server, error) {
	logger := common.Logger()
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	manager := orch.Workflow()
	if manager == nil {
		return nil, fmt.Errorf("workflow manager unavailable")
	}
	configuration := DefaultConfig().Merge(Config{MaxUploadBytes: orch.Config().MaxUploadBytes})
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	srv := &Server{
		router:       chi.NewRouter(),
		workflow:     manager,
		templates:    tmpl,
		maxUpload:    configuration.MaxUploadBytes,
		started:      time.Now(),
		orchestrator: orch,
	}
	srv.routes()
	logger.Info("api: server ready", "provider", orch.Provider().Name(), "max_upload", srv.maxUpload)
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("api: request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/live", s.handleLive)
	s.router.Get("/ready", s.handleReady)
	s.router.Get("/", s.handleIndex)
	s.router.Get("/runs", s.handleRuns)
	s.router.Post("/upload", s.handleUpload)
	s.router.Route("/run/{id}", func(r chi.Router) {
		r.Get("/", s.handleRun)
		r.Delete("/", s.handleDeleteRun)
		r.Patch("/", s.handleRenameRun)
		r.Patch("/item/{item}/toggle", s.handleToggleItem)
		r.Patch("/item/{item}", s.handleUpdateItem)
		r.Get("/draft", s.handleDraft)
		r.Post("/export", s.handleExport)
	})
	s.router.Get("/download/{fname}", s.handleDownload)
	s.router.Get("/files/search", s.handleSearch)
	s.router.Get("/files/remote", s.handleRemoteFiles)
	s.router.Post("/files/remote/{fileID}/import", s.handleRemoteImport)

	s.router.Get("/v1/runs", s.handleAPIRuns)
	s.router.Get("/v1/runs/{id}", s.handleAPIRun)
	s.router.Patch("/v1/runs/{id}", s.handleAPIRenameRun)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Handle("/debug/vars", expvar.Handler())
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		// Draft HTML is produced by the drafting pipeline and embedded as-is.
		"trusted": func(s string) template.HTML { return template.HTML(s) },
		"truncate": func(s string, n int) string {
			runes := []rune(s)
			if len(runes) <= n {
				return s
			}
			return string(runes[:n])
		},
		"deref": func(n *int) int {
			if n == nil {
				return 0
			}
			return *n
		},
		"derefString": func(s *string) string {
			if s == nil {
				return ""
			}
			return strings.TrimSpace(*s)
		},
	}
	return template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		writeText(w, http.StatusInternalServerError, fmt.Sprintf("render %s: %v", name, err))
		common.Logger().Error("api: render failed", "template", name, "error", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// statusFor maps workflow errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrRunNotFound), errors.Is(err, workflow.ErrItemNotFound), errors.Is(err, workflow.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrNoDraft), errors.Is(err, workflow.ErrInvalidStatus), errors.Is(err, workflow.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrExportLocked), errors.Is(err, workflow.ErrNameConflict):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrArtifactInvalid):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func logFailure(status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", "status", status, "error", err)
	} else {
		logger.Warn("api: request failed", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	logFailure(status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeText answers htmx fragment routes with a plain message.
func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

// writeFragmentError writes the plain-text form of err for htmx routes.
func writeFragmentError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	logFailure(status, err)
	message := err.Error()
	switch {
	case errors.Is(err, workflow.ErrRunNotFound), errors.Is(err, workflow.ErrItemNotFound), errors.Is(err, workflow.ErrArtifactNotFound):
		message = "Not found"
	case errors.Is(err, workflow.ErrNoDraft):
		message = "No draft yet"
	case errors.Is(err, workflow.ErrExportLocked):
		message = "Complete all checklist items to enable export"
	}
	writeText(w, status, message)
}
