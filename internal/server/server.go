// Package server exposes the session lifecycle manager over HTTP. It is a
// thin adapter: every rule lives in the session package, this layer only
// decodes requests and maps the error taxonomy onto status codes.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rumba-live/rumba/pkg/session"
)

// maxLogoBytes caps logo uploads.
const maxLogoBytes = 10 << 20

// pingTimeout bounds the readiness database check.
const pingTimeout = 2 * time.Second

// Server handles the session REST API.
type Server struct {
	sessions *session.Manager
	db       *sql.DB
	log      *slog.Logger
	mux      *http.ServeMux
}

// New creates the HTTP server around the session manager. db is used only
// for the readiness probe and may be nil in tests.
func New(sessions *session.Manager, db *sql.DB, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		sessions: sessions,
		db:       db,
		log:      log,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/sessions", s.handleCreate)
	s.mux.HandleFunc("GET /api/v1/sessions", s.handleList)
	s.mux.HandleFunc("GET /api/v1/sessions/current", s.handleCurrent)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGet)
	s.mux.HandleFunc("PUT /api/v1/sessions/{id}/start", s.handleStart)
	s.mux.HandleFunc("PUT /api/v1/sessions/{id}/stop", s.handleStop)
	s.mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/v1/sessions/{id}/logo", s.handleSetLogo)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}/logo", s.handleGetLogo)
	s.mux.HandleFunc("GET /healthz", s.handleLiveness)
	s.mux.HandleFunc("GET /readyz", s.handleReadiness)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req session.NewSession
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.sessions.Create(r.Context(), req)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.Current(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	if view == nil {
		writeError(w, http.StatusNotFound, "no live session")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Initialize(r.Context(), r.PathValue("id")); err != nil {
		s.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Stop(r.Context(), r.PathValue("id")); err != nil {
		s.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer func() { _ = file.Close() }()

	if err := s.sessions.SetLogo(r.Context(), r.PathValue("id"), file, header.Filename); err != nil {
		s.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetLogo(w http.ResponseWriter, r *http.Request) {
	url, err := s.sessions.LogoURL(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeSessionError maps the session error taxonomy onto HTTP status codes.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrIllegalState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("session operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
