// Package server exposes the routing agent and the video idea generator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/influencer"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/routing"
	"github.com/run-bigpig/observable-agent/pkg/session"
	"github.com/run-bigpig/observable-agent/pkg/tracing"
)

const (
	// ServiceName is reported by the index and health endpoints
	ServiceName = "observable-agent-starter"
	// Version is the API version reported by the index endpoint
	Version = "0.1.0"

	// SessionHeader carries the client's session id; traces sharing it are grouped
	SessionHeader = "X-Session-ID"
	// UserHeader carries an optional user id
	UserHeader = "X-User-ID"
	// RequestHeader carries the request id, generated when absent and
	// echoed on every response
	RequestHeader = "X-Request-ID"

	// DefaultFixture is used when an ideas request names no snapshot
	DefaultFixture = "creator_snapshot.json"
	// MinIdeaCount and MaxIdeaCount bound target_count
	MinIdeaCount = 2
	MaxIdeaCount = 5
)

// Server serves the agent API
type Server struct {
	router      *routing.Router
	ideaAgent   *agent.BaseAgent
	ideaOptions []influencer.IdeaOption
	logger      logging.Logger
	otel        *tracing.OTelTracer
	metrics     *metrics
	mux         *http.ServeMux
}

// Option configures a Server
type Option func(*Server)

// WithRouter sets the agent behind POST /route. Without it the endpoint
// answers 500.
func WithRouter(r *routing.Router) Option {
	return func(s *Server) {
		s.router = r
	}
}

// WithIdeaAgent sets the agent behind POST /influencer/ideas. A generator is
// built per request so that target_count can vary.
func WithIdeaAgent(base *agent.BaseAgent, options ...influencer.IdeaOption) Option {
	return func(s *Server) {
		s.ideaAgent = base
		s.ideaOptions = options
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithOTel records a span per request
func WithOTel(tracer *tracing.OTelTracer) Option {
	return func(s *Server) {
		s.otel = tracer
	}
}

// New creates a server and registers its routes
func New(options ...Option) *Server {
	s := &Server{metrics: newMetrics(), mux: http.NewServeMux()}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	s.handle("GET /{$}", "/", s.handleIndex)
	s.handle("GET /health", "/health", s.handleHealth)
	s.handle("POST /route", "/route", s.handleRoute)
	s.handle("GET /influencer/profiles", "/influencer/profiles", s.handleProfiles)
	s.handle("POST /influencer/ideas", "/influencer/ideas", s.handleIdeas)
	s.mux.Handle("GET /metrics", s.metrics.handler())
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info(ctx, "Shutting down HTTP server", nil)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

func (s *Server) handle(pattern, path string, fn http.HandlerFunc) {
	s.mux.Handle(pattern, s.metrics.instrument(path, s.withContext(path, fn)))
}

// withContext moves the session headers into the request context and wraps
// the handler in a span
func (s *Server) withContext(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := strings.TrimSpace(r.Header.Get(RequestHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestHeader, requestID)
		ctx = session.WithTraceID(ctx, requestID)
		if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
			ctx = session.WithSessionID(ctx, id)
		}
		if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
			ctx = session.WithUserID(ctx, id)
		}
		if s.otel != nil {
			spanCtx, span := s.otel.StartSpan(ctx, "http "+path, map[string]string{"http.method": r.Method})
			ctx = spanCtx
			defer s.otel.EndSpan(span, nil)
		}
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": ServiceName,
		"status":  "ok",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent_ready": s.router != nil,
		"service":     ServiceName,
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	body, problems := decodeBody(r)
	if len(problems) == 0 {
		problems = requireString(body, "request", true)
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationError{Detail: problems})
		return
	}
	if s.router == nil {
		writeJSON(w, http.StatusInternalServerError, errorDetail{Detail: "Agent not initialized"})
		return
	}

	var text string
	_ = json.Unmarshal(body["request"], &text)

	ctx := r.Context()
	result, err := s.router.Route(ctx, text)
	if err != nil {
		s.logger.Warn(ctx, "Route request rejected", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusBadRequest, errorDetail{Detail: err.Error()})
		return
	}
	s.metrics.decisions.WithLabelValues(result.Route, fallbackLabel(result.FallbackReason)).Inc()
	s.logger.Info(ctx, "Routed request", map[string]interface{}{
		"route":           result.Route,
		"fallback_reason": result.FallbackReason,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	fixtures, err := influencer.ListFixtures()
	if err != nil {
		s.logger.Error(r.Context(), "Failed to list fixtures", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorDetail{Detail: "failed to list profiles"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": fixtures})
}

type ideasRequest struct {
	Fixture        string `json:"fixture"`
	Request        string `json:"request"`
	TargetCount    int    `json:"target_count"`
	VariationToken string `json:"variation_token"`
}

type ideasResponse struct {
	Fixture        string                 `json:"fixture"`
	Handle         string                 `json:"handle"`
	Request        string                 `json:"request"`
	Ideas          []influencer.VideoIdea `json:"ideas"`
	FallbackReason string                 `json:"fallback_reason,omitempty"`
}

func (s *Server) handleIdeas(w http.ResponseWriter, r *http.Request) {
	body, problems := decodeBody(r)
	for _, field := range []string{"fixture", "request", "variation_token"} {
		if len(problems) == 0 {
			problems = requireString(body, field, false)
		}
	}
	req := ideasRequest{Fixture: DefaultFixture, Request: influencer.DashboardRequest, TargetCount: influencer.DefaultTargetCount}
	if len(problems) == 0 {
		problems = decodeFields(body, &req)
	}
	if len(problems) == 0 && (req.TargetCount < MinIdeaCount || req.TargetCount > MaxIdeaCount) {
		problems = []fieldError{{
			Type: "value_error",
			Loc:  []interface{}{"body", "target_count"},
			Msg:  fmt.Sprintf("Input should be between %d and %d", MinIdeaCount, MaxIdeaCount),
		}}
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationError{Detail: problems})
		return
	}
	if s.ideaAgent == nil {
		writeJSON(w, http.StatusInternalServerError, errorDetail{Detail: "Agent not initialized"})
		return
	}

	ctx := r.Context()
	profile, err := influencer.LoadProfile(req.Fixture)
	if err != nil {
		if errors.Is(err, influencer.ErrUnknownFixture) {
			writeJSON(w, http.StatusNotFound, errorDetail{Detail: err.Error()})
			return
		}
		s.logger.Error(ctx, "Failed to load profile", map[string]interface{}{"fixture": req.Fixture, "error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorDetail{Detail: "failed to load profile"})
		return
	}

	options := append(append([]influencer.IdeaOption(nil), s.ideaOptions...), influencer.WithTargetCount(req.TargetCount))
	result := influencer.NewIdeaGenerator(s.ideaAgent, options...).Generate(ctx, profile, req.Request, req.VariationToken)
	s.metrics.ideas.WithLabelValues(fallbackLabel(result.FallbackReason)).Inc()

	request := req.Request
	if strings.TrimSpace(request) == "" {
		request = influencer.DefaultRequest
	}
	writeJSON(w, http.StatusOK, ideasResponse{
		Fixture:        req.Fixture,
		Handle:         profile.Handle,
		Request:        request,
		Ideas:          result.Ideas,
		FallbackReason: result.FallbackReason,
	})
}
