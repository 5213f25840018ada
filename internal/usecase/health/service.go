package health

import (
	"context"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/docquery/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentCache      = "cache"
	ComponentGeneration = "generation"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	cache      CachePinger
	generation GenerationChecker
}

// New creates a Service. Both checkers are optional; a nil checker is skipped.
func New(cache CachePinger, generation GenerationChecker) *Service {
	return &Service{cache: cache, generation: generation}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	logger := logpkg.FromContext(ctx)
	checks := make(map[string]CheckResult)

	if s.cache != nil {
		checks[ComponentCache] = result(logger, ComponentCache, s.cache.Ping(ctx))
	}
	if s.generation != nil {
		checks[ComponentGeneration] = result(logger, ComponentGeneration, s.generation.HealthCheck(ctx))
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == 0:
	case failed == len(checks):
		status = Unhealthy
	default:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func result(logger *zap.Logger, component string, err error) CheckResult {
	if err != nil {
		logger.Warn("Health check failed", zap.String("component", component), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
