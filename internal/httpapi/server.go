// Package httpapi exposes the service over HTTP: event intake, the
// patron block query, condition and limit administration, and the
// synchronization job endpoints.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/libcirc/patronblocks/internal/blocks"
	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/shell"
	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/summary"
	"github.com/libcirc/patronblocks/internal/synchronization"
)

// Limit validation errors.
var (
	ErrLimitValueNegative    = errors.New("limit value must not be negative")
	ErrLimitUnknownCondition = errors.New("limit references an unknown condition")
)

var jsonCodec = jsoniter.ConfigFastest

// ContextualLogger is the context-aware logging interface request
// handling reports through.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Server bundles the handlers with their dependencies.
type Server struct {
	events     *summary.EventHandler
	blocks     *blocks.Service
	conditions storage.ConditionStore
	limits     storage.LimitStore
	sync       *synchronization.Orchestrator
	logger     ContextualLogger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger ContextualLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server.
func NewServer(
	events *summary.EventHandler,
	blockService *blocks.Service,
	conditions storage.ConditionStore,
	limits storage.LimitStore,
	sync *synchronization.Orchestrator,
	opts ...Option,
) *Server {

	server := &Server{
		events:     events,
		blocks:     blockService,
		conditions: conditions,
		limits:     limits,
		sync:       sync,
	}

	for _, opt := range opts {
		opt(server)
	}

	return server
}

// Router builds the chi router for the service.
func (s *Server) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)
	router.Post("/events", s.handleEvent)
	router.Get("/patron-blocks/{userID}", s.handlePatronBlocks)

	router.Route("/conditions", func(r chi.Router) {
		r.Get("/", s.handleConditionList)
		r.Get("/{conditionID}", s.handleConditionGet)
		r.Put("/{conditionID}", s.handleConditionUpdate)
	})

	router.Route("/limits", func(r chi.Router) {
		r.Get("/", s.handleLimitList)
		r.Post("/", s.handleLimitCreate)
		r.Get("/{limitID}", s.handleLimitGet)
		r.Put("/{limitID}", s.handleLimitUpdate)
		r.Delete("/{limitID}", s.handleLimitDelete)
	})

	router.Route("/synchronization", func(r chi.Router) {
		r.Post("/jobs", s.handleJobCreate)
		r.Get("/jobs/{jobID}", s.handleJobGet)
		r.Post("/run", s.handleRun)
	})

	return router
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body != nil {
		_ = jsonCodec.NewEncoder(w).Encode(body)
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusForError(err)

	if s.logger != nil && status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed", "error", err.Error())
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForError maps the error taxonomy onto response codes: missing
// records are 404, malformed bodies 400, duplicate limits 409,
// semantically invalid requests 422, everything else 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, summary.ErrFeeFineOwnerNotFound):
		return http.StatusNotFound

	case errors.Is(err, shell.ErrUnmarshalingEventFailed):
		return http.StatusBadRequest

	case errors.Is(err, storage.ErrDuplicateLimit):
		return http.StatusConflict

	case errors.Is(err, shell.ErrUnknownEventType),
		errors.Is(err, shell.ErrMissingUserID),
		errors.Is(err, shell.ErrMissingLoanID),
		errors.Is(err, shell.ErrMissingFeeFineID),
		errors.Is(err, core.ErrConditionMessageRequired),
		errors.Is(err, core.ErrConditionMessageForbidden),
		errors.Is(err, synchronization.ErrUnknownScope),
		errors.Is(err, synchronization.ErrUserIDRequired),
		errors.Is(err, synchronization.ErrUserIDForbidden),
		errors.Is(err, ErrLimitValueNegative),
		errors.Is(err, ErrLimitUnknownCondition):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
