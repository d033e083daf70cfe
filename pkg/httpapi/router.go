package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/jobs"
	"github.com/postflowhq/postflow/pkg/publog"
	"github.com/postflowhq/postflow/pkg/ratelimit"
)

// Server exposes the job queue, content queue, and publishing log over
// HTTP. It is a thin layer: every route parses input, resolves the
// organization scope, and delegates to the domain packages.
type Server struct {
	jobs    *jobs.Queue
	content *content.Manager
	publog  publog.Store
	limiter ratelimit.Limiter
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRequestLimiter turns on per-organization request rate limiting.
func WithRequestLimiter(limiter ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// WithServerLogger sets the server's logger.
func WithServerLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates the API server.
func NewServer(queue *jobs.Queue, manager *content.Manager, log publog.Store, opts ...Option) (*Server, error) {
	if queue == nil {
		return nil, errors.New("job queue cannot be nil")
	}
	if manager == nil {
		return nil, errors.New("content manager cannot be nil")
	}
	if log == nil {
		return nil, errors.New("publishing log cannot be nil")
	}

	s := &Server{
		jobs:    queue,
		content: manager,
		publog:  log,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
	})

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter, OrganizationKeyFunc))
		}
		r.Use(requireOrganization)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleEnqueueJob)
			r.Get("/", s.handleListJobs)
			r.Post("/{id}/retry", s.handleRetryJob)
			r.Post("/{id}/cancel", s.handleCancelJob)
		})

		r.Route("/content", func(r chi.Router) {
			r.Post("/", s.handleQueueContent)
			r.Get("/", s.handleListContent)
			r.Get("/{id}", s.handleGetContent)
			r.Post("/{id}/approve", s.handleApproveContent)
			r.Post("/{id}/reject", s.handleRejectContent)
			r.Post("/{id}/schedule", s.handleScheduleContent)
			r.Post("/{id}/unschedule", s.handleUnscheduleContent)
			r.Post("/{id}/publish", s.handlePublishContent)
		})

		r.Get("/publishing-log", s.handleListPublishingLog)
	})

	return r
}
