// Package server exposes the read-only status API over the job monitor's
// queue snapshots.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/jobmon/internal/monitor"
	"github.com/me/jobmon/pkg/model"
)

// Server serves queue state while a run is in progress. Every endpoint reads
// a snapshot; nothing here mutates the monitor.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	monitor   *monitor.Monitor
	scheduler model.SchedulerType
	startTime time.Time
}

// New creates a Server with all routes registered.
func New(m *monitor.Monitor, schedulerType model.SchedulerType, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		monitor:   m,
		scheduler: schedulerType,
		startTime: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/queues", s.handleQueues)
		r.Get("/queues/{queue}", s.handleQueue)
	})
}

type requestIDKey struct{}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// instrument tags each request with an id, echoed in the X-Request-ID header,
// and logs it once served.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID()
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		s.logger.Info("status request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"scheduler", s.scheduler,
			"duration", time.Since(start).String(),
			"request_id", reqID,
		)
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Scheduler string `json:"scheduler"`
	Uptime    string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Scheduler: string(s.scheduler),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.monitor.Snapshot())
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	snap := s.monitor.Snapshot()

	var jobs []model.JobSummary
	switch name := chi.URLParam(r, "queue"); name {
	case "pending":
		jobs = snap.Pending
	case "running":
		jobs = snap.Running
	case "resubmission":
		jobs = snap.Resubmission
	case "completed":
		jobs = snap.Completed
	default:
		respondError(w, reqID, http.StatusNotFound,
			"unknown queue %q; one of pending, running, resubmission, completed", name)
		return
	}
	respondOK(w, reqID, jobs)
}
