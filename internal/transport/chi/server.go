package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docquery/internal/domain"
	"github.com/kailas-cloud/docquery/internal/domain/document"
	"github.com/kailas-cloud/docquery/internal/domain/query/result"
	logpkg "github.com/kailas-cloud/docquery/internal/logger"
	"github.com/kailas-cloud/docquery/internal/metrics"
	healthuc "github.com/kailas-cloud/docquery/internal/usecase/health"
	queryuc "github.com/kailas-cloud/docquery/internal/usecase/query"
	"github.com/kailas-cloud/docquery/internal/version"
)

const defaultMaxDocuments = 1000

// QueryService runs a query over caller-supplied documents.
type QueryService interface {
	Query(
		ctx context.Context, prompt string, docs []document.Document, opts queryuc.Options,
	) ([]result.Result[json.RawMessage], error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the docquery HTTP API.
type Server struct {
	query         QueryService
	health        *healthuc.Service
	logger        *zap.Logger
	maxDocuments  int
	maxBodyBytes  int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(query QueryService, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		query:        query,
		health:       health,
		logger:       logger,
		maxDocuments: defaultMaxDocuments,
	}
	// Order matters: rate limiting is reported before the generic query failure.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, ErrorCodeInvalidFilter),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrQueryFailed, http.StatusBadGateway, ErrorCodeQueryFailed),
	}
	return s
}

// WithLimits sets the per-request document limit and maximum body size. Zero keeps the default.
func (s *Server) WithLimits(maxDocuments int, maxBodyBytes int64) *Server {
	if maxDocuments > 0 {
		s.maxDocuments = maxDocuments
	}
	if maxBodyBytes > 0 {
		s.maxBodyBytes = maxBodyBytes
	}
	return s
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/v1/query", s.Query)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.QueriesTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.validate(&req); err != nil {
		metrics.QueriesTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.query.Query(ctx, req.Prompt, req.Documents, queryuc.Options{Filters: req.Filter})
	setGenerationHeaders(w, usage)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		s.handleDomainError(w, r, err)
		return
	}

	metrics.QueriesTotal.WithLabelValues("success").Inc()
	metrics.QueryDocuments.WithLabelValues("received").Observe(float64(len(req.Documents)))
	metrics.QueryDocuments.WithLabelValues("dispatched").Observe(float64(len(results)))

	items := make([]QueryResultItem, len(results))
	for i, res := range results {
		items[i] = QueryResultItem{Payload: res.Payload, Document: res.Document}
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Results: items,
		Usage: UsageResponse{
			Calls:            usage.Calls(),
			PromptTokens:     usage.PromptTokens(),
			CompletionTokens: usage.CompletionTokens(),
			TotalTokens:      usage.TotalTokens(),
		},
	})
}

func (s *Server) validate(req *QueryRequest) error {
	if req.Prompt == "" {
		return errors.New("prompt is required")
	}
	if len(req.Documents) > s.maxDocuments {
		return fmt.Errorf("too many documents: %d (max %d)", len(req.Documents), s.maxDocuments)
	}
	for i := range req.Documents {
		if req.Documents[i].Name == "" {
			return fmt.Errorf("documents[%d]: name is required", i)
		}
	}
	for i, f := range req.Filter {
		if f.Key == "" {
			return fmt.Errorf("filter[%d]: key is required", i)
		}
	}
	return nil
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
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setGenerationHeaders(w http.ResponseWriter, usage *domain.GenerationUsage) {
	if usage == nil || usage.Calls() == 0 {
		return
	}
	w.Header().Set("X-Generation-Calls", strconv.Itoa(usage.Calls()))
	w.Header().Set("X-Generation-Tokens", strconv.Itoa(usage.TotalTokens()))
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

// safeDomainMessage returns a client-safe message. Filter and validation
// errors carry caller input and are returned verbatim; everything else is
// reduced to its sentinel so provider internals are not exposed.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidFilter) || errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrInvalidSchema,
		domain.ErrRateLimited,
		domain.ErrGenerationProviderError,
		context.DeadlineExceeded,
		context.Canceled,
	}
	prefix := ""
	if errors.Is(err, domain.ErrQueryFailed) {
		prefix = domain.ErrQueryFailed.Error() + ": "
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return prefix + s.Error()
		}
	}
	if prefix != "" {
		return domain.ErrQueryFailed.Error()
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

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
