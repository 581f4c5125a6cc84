package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"presswatch/internal/api"
	"presswatch/internal/logging"
	"presswatch/internal/queue"
)

// APIServer serves the HTTP control surface.
type APIServer struct {
	service *api.QueueService
	daemon  *Daemon
	logger  *slog.Logger
	server  *http.Server
	addr    string
}

// NewAPIServer builds the HTTP server around the shared queue service.
func NewAPIServer(service *api.QueueService, d *Daemon, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &APIServer{
		service: service,
		daemon:  d,
		logger:  logging.NewComponentLogger(logger, "http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", s.handleEnqueue)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("DELETE /api/jobs/queue", s.handleClearQueue)
	mux.HandleFunc("DELETE /api/jobs/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/jobs/active", s.handleActiveJobs)
	mux.HandleFunc("GET /api/jobs/active/items", s.handleActiveItems)
	mux.HandleFunc("GET /api/jobs/history", s.handleHistoryJobs)
	mux.HandleFunc("GET /api/jobs/history/items", s.handleHistoryItems)
	mux.HandleFunc("GET /api/jobs/control", s.handleGetControl)
	mux.HandleFunc("POST /api/jobs/control", s.handleSetControl)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start binds the configured address and serves until Shutdown.
func (s *APIServer) Start(bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("bind api address %s: %w", bind, err)
	}
	s.addr = listener.Addr().String()
	s.logger.Info("api listening", logging.String("addr", s.addr))

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", logging.Error(err))
		}
	}()
	return nil
}

// Addr reports the bound address, useful when the port was 0.
func (s *APIServer) Addr() string {
	return s.addr
}

// Shutdown drains in-flight requests.
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *APIServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	job, err := s.service.Enqueue(r.Context(), req)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, job)
}

func (s *APIServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad job id %q", r.PathValue("id")))
		return
	}
	result, err := s.service.Cancel(r.Context(), jobID)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *APIServer) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ClearQueue(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *APIServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ClearHistory(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *APIServer) handleActiveJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.service.ActiveJobs(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *APIServer) handleActiveItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ActiveItems(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *APIServer) handleHistoryJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	jobs, err := s.service.HistoryJobs(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *APIServer) handleHistoryItems(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	items, err := s.service.HistoryItems(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *APIServer) handleGetControl(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.State(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *APIServer) handleSetControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused *bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Paused == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("paused field is required"))
		return
	}
	state, err := s.service.SetPaused(r.Context(), *req.Paused)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response encode failed", logging.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrNoPaperIDs),
		errors.Is(err, queue.ErrUnknownJobType),
		errors.Is(err, queue.ErrInvalidPaperID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
