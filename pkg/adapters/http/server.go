package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/api"
	"github.com/advancedresearch/agent-safety-layers/internal/logging"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/advancedresearch/agent-safety-layers/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sessions is the session manager served over HTTP: scenario states are models and
// actions are strings.
type Sessions = session.Manager[string, string]

// Server exposes scenario sessions as a JSON API.
type Server struct {
	Scenario *scenario.Scenario
	Sessions *Sessions
	Streams  *StreamManager

	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams sets the StreamManager used for GET /sessions/{id}/events.
// Its Hooks must be registered on the agent behind the session manager.
func WithStreams(streams *StreamManager) Option {
	return func(s *Server) {
		s.Streams = streams
	}
}

// WithMetrics serves the gatherer's metrics on GET /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// NewServer creates a Server for sc backed by sessions.
func NewServer(sc *scenario.Scenario, sessions *Sessions, opts ...Option) *Server {
	s := &Server{
		Scenario: sc,
		Sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// NewHandler creates the HTTP handler for the server.
// Requests to documented routes are validated against api.Spec first.
func NewHandler(s *Server) http.Handler {
	spec, err := loadRouter()
	if err != nil {
		panic(err) // api.Spec is embedded, so only a bad build gets here
	}

	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/scenario", s.GetScenario)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/decide", s.Decide)
			r.Post("/step", s.Step)
			r.Post("/act", s.Act)
			r.Put("/model", s.UpdateModel)
			r.Put("/layers", s.SetLayers)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return enableCORS(s.validateRequests(spec, r))
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSessionRequest is the body of POST /sessions. Missing fields fall back to
// the scenario's start state and layer count.
type CreateSessionRequest struct {
	ID     string  `json:"id,omitempty"`
	State  *string `json:"state,omitempty"`
	Layers *int    `json:"layers,omitempty"`
}

// ActRequest is the body of POST /sessions/{id}/act.
type ActRequest struct {
	Action string `json:"action"`
}

// ModelRequest is the body of PUT /sessions/{id}/model.
type ModelRequest struct {
	State string `json:"state"`
}

// LayersRequest is the body of PUT /sessions/{id}/layers.
type LayersRequest struct {
	Layers int `json:"layers"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":      "safetylayers-http",
		"version":  strings.TrimSpace(safetylayers.Version),
		"scenario": s.Scenario.Name,
	})
}

// GetScenario handles GET /scenario.
func (s *Server) GetScenario(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Scenario)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if !s.decode(w, r, &body) {
		return
	}

	state := s.Scenario.Start
	if body.State != nil {
		state = *body.State
	}
	if !s.Scenario.Knows(state) {
		s.writeError(w, fmt.Errorf("state %q: %w", state, domain.ErrUnknownState))
		return
	}
	layers := s.Scenario.Layers
	if body.Layers != nil {
		layers = *body.Layers
	}

	var (
		snapshot *domain.Snapshot[string]
		err      error
	)
	if body.ID != "" {
		snapshot, err = s.Sessions.StartWithID(r.Context(), body.ID, state, layers)
	} else {
		snapshot, err = s.Sessions.Start(r.Context(), state, layers)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+snapshot.ID)
	s.writeJSON(w, http.StatusCreated, snapshot)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Decide handles POST /sessions/{id}/decide.
func (s *Server) Decide(w http.ResponseWriter, r *http.Request) {
	decision, err := s.Sessions.Decide(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

// Step handles POST /sessions/{id}/step: decide, and act only on a confirmed decision.
func (s *Server) Step(w http.ResponseWriter, r *http.Request) {
	decision, err := s.Sessions.Step(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

// Act handles POST /sessions/{id}/act.
func (s *Server) Act(w http.ResponseWriter, r *http.Request) {
	var body ActRequest
	if !s.decode(w, r, &body) {
		return
	}
	snapshot, err := s.Sessions.Act(r.Context(), chi.URLParam(r, "id"), body.Action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// UpdateModel handles PUT /sessions/{id}/model.
func (s *Server) UpdateModel(w http.ResponseWriter, r *http.Request) {
	var body ModelRequest
	if !s.decode(w, r, &body) {
		return
	}
	if !s.Scenario.Knows(body.State) {
		s.writeError(w, fmt.Errorf("state %q: %w", body.State, domain.ErrUnknownState))
		return
	}
	snapshot, err := s.Sessions.UpdateModel(r.Context(), chi.URLParam(r, "id"), body.State)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// SetLayers handles PUT /sessions/{id}/layers.
func (s *Server) SetLayers(w http.ResponseWriter, r *http.Request) {
	var body LayersRequest
	if !s.decode(w, r, &body) {
		return
	}
	snapshot, err := s.Sessions.SetLayers(r.Context(), chi.URLParam(r, "id"), body.Layers)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	if _, err := s.Sessions.Load(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	s.logger.Info("sse client subscribed", "session_id", sessionID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("sse client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: decision\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNegativeDepth), errors.Is(err, domain.ErrTooManyLayers),
		errors.Is(err, domain.ErrUnknownState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoActor):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
