package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/action"
	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
	"github.com/kailas-cloud/deepresearch/internal/logger"
	"github.com/kailas-cloud/deepresearch/internal/metrics"
	healthuc "github.com/kailas-cloud/deepresearch/internal/usecase/health"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Researcher runs research.
type Researcher interface {
	Run(ctx context.Context, req domres.Request) (domres.Aggregate, error)
	Handle(ctx context.Context, env domres.Envelope) domres.Reply
}

// ToolHandler answers tool calls.
type ToolHandler interface {
	Handle(ctx context.Context, name tool.Name, in action.Input) (action.Output, error)
}

// Server serves the research, tool, health and metrics endpoints.
type Server struct {
	research      Researcher
	tools         ToolHandler
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(research Researcher, tools ToolHandler, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		research: research,
		tools:    tools,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidToolInput, http.StatusBadRequest, ErrorCodeInvalidToolInput),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrToolNotConfigured, http.StatusServiceUnavailable, ErrorCodeToolNotConfigured),
		sentinelHandler(domain.ErrStreamTimeout, http.StatusGatewayTimeout, ErrorCodeAgentTimeout),
		sentinelHandler(domain.ErrRemoteInvocation, http.StatusBadGateway, ErrorCodeAgentError),
		sentinelHandler(domain.ErrDecode, http.StatusBadGateway, ErrorCodeAgentError),
		sentinelHandler(domain.ErrUpstreamTool, http.StatusBadGateway, ErrorCodeUpstreamError),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/research", s.Research)
		r.Post("/invoke", s.Invoke)
		r.Post("/tools/{tool}", s.Tool)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// Research handles POST /v1/research.
func (s *Server) Research(w http.ResponseWriter, r *http.Request) {
	var req domres.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "query is required")
		return
	}

	agg, err := s.research.Run(r.Context(), req)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, agg)
}

// Invoke handles POST /v1/invoke. The run's outcome travels inside the envelope.
func (s *Server) Invoke(w http.ResponseWriter, r *http.Request) {
	var env domres.Envelope
	if err := decodeBody(w, r, &env); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.research.Handle(r.Context(), env))
}

// Tool handles POST /v1/tools/{tool}.
func (s *Server) Tool(w http.ResponseWriter, r *http.Request) {
	name := tool.Name(chi.URLParam(r, "tool"))
	if !name.Valid() {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "unknown tool "+string(name))
		return
	}

	var in action.Input
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	out, err := s.tools.Handle(r.Context(), name, in)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v) //nolint:wrapcheck // shown to the client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrInvalidToolInput,
		domain.ErrNotFound,
		domain.ErrToolNotConfigured,
		domain.ErrStreamTimeout,
		domain.ErrRemoteInvocation,
		domain.ErrDecode,
		domain.ErrUpstreamTool,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	_, log := logger.With(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
