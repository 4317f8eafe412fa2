// Package server exposes the dashboard and the control API. Engines
// run in the background; every endpoint returns quickly.
package server

import (
	"embed"
	"encoding/json"
	"errors"
	"net/http"

	"gramnerd/internal/accounts"
	"gramnerd/internal/activity"
	"gramnerd/internal/engine"
	"gramnerd/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed dashboard.html
var dashboardFS embed.FS

// Runner is the run-control surface the handlers need. The production
// implementation is engine.Supervisor.
type Runner interface {
	Start(mode engine.Mode, params engine.Params) (string, error)
	Stop()
	Status() engine.Status
	Running() bool
}

// Server handles the dashboard and API routes.
type Server struct {
	runner   Runner
	accounts *accounts.Manager
	feed     *activity.Feed
	router   chi.Router
}

// New wires the routes.
func New(runner Runner, mgr *accounts.Manager, feed *activity.Feed) *Server {
	s := &Server{runner: runner, accounts: mgr, feed: feed}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDashboard)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/logs", s.handleLogs)
	r.Post("/api/start", s.startMode(engine.ModeOutreach))
	r.Post("/api/start-comment-mode", s.startMode(engine.ModeCommentHashtag))
	r.Post("/api/start-saved-mode", s.startMode(engine.ModeCommentSaved))
	r.Post("/api/start-lead-mode", s.startMode(engine.ModeLeadScore))
	r.Post("/api/start-freeform-mode", s.startMode(engine.ModeFreeform))
	r.Post("/api/stop", s.handleStop)
	r.Post("/api/add-account", s.handleAddAccount)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving on addr.
func (s *Server) ListenAndServe(addr string) error {
	logging.API("Dashboard listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := dashboardFS.ReadFile("dashboard.html")
	if err != nil {
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": s.feed.Recent(100),
	})
}

// startMode returns a handler that starts the given mode with the
// posted params. An empty body means default params.
func (s *Server) startMode(mode engine.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params engine.Params
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		runID, err := s.runner.Start(mode, params)
		if err != nil {
			switch {
			case errors.Is(err, engine.ErrAlreadyRunning):
				writeError(w, http.StatusConflict, "Already running")
			case errors.Is(err, engine.ErrAdvisoryRequired),
				errors.Is(err, engine.ErrNoAccounts),
				errors.Is(err, engine.ErrInstructionRequired):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		logging.API("Started %s run %s", mode, runID)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "started",
			"mode":   string(mode),
			"run_id": runID,
		})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.runner.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.accounts.Add(req.Username, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.feed.Success("Account @%s added", req.Username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.APIDebug("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
