// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/domain/session"
	"github.com/okian/stride/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	SessionDependencies
	SampleDependencies
	EventDependencies
	StatsProvider
}

// Server wires HTTP routes for the tracking API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	sessionHandler *SessionHandler
	samplesHandler *SamplesHandler
	eventsHandler  *EventsHandler
	log            logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	origins []string
	log     logger.Logger
}

// WithAllowedOrigins lists the browser origins allowed to open the event
// stream. Without it only same-host origins are accepted.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(c *serverConfig) { c.origins = append(c.origins, origins...) }
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) ServerOption {
	return func(c *serverConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	cfg := serverConfig{log: logger.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		sessionHandler: NewSessionHandler(deps),
		samplesHandler: NewSamplesHandler(deps),
		eventsHandler:  NewEventsHandler(deps, cfg.log, cfg.origins...),
		log:            cfg.log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /session", MetricsMiddleware(s.sessionHandler.HandleGetSession, "session"))
	mux.HandleFunc("POST /session/{command}", MetricsMiddleware(s.sessionHandler.HandleCommand, "session_command"))
	mux.HandleFunc("POST /samples", MetricsMiddleware(s.samplesHandler.HandlePostSamples, "samples"))
	mux.HandleFunc("POST /steps", MetricsMiddleware(s.samplesHandler.HandlePostStep, "steps"))
	mux.HandleFunc("POST /sensor/unavailable", MetricsMiddleware(s.samplesHandler.HandleSensorUnavailable, "sensor_unavailable"))
	mux.HandleFunc("GET /events", MetricsMiddleware(s.eventsHandler.HandleGetEvents, "events"))
	// Upgraded connections are long lived; they are not timed.
	mux.HandleFunc("GET /events/ws", s.eventsHandler.HandleStream)

	s.log.Info(ctx, "http routes registered")
}

type ackResponse struct {
	Status    string `json:"status"`
	Accepted  int    `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, session.ErrUnknownCommand):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
