package docquery

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	queries   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	documents *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docquery",
			Subsystem: "sdk",
			Name:      "queries_total",
			Help:      "Total SDK queries by status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docquery",
			Subsystem: "sdk",
			Name:      "query_duration_seconds",
			Help:      "SDK query duration in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
		documents: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docquery",
			Subsystem: "sdk",
			Name:      "query_documents",
			Help:      "Documents per SDK query before and after filtering.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"stage"}),
	}
	if err := registerOrReuse(reg, &m.queries); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.documents); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("docquery: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("docquery: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK queries.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(start time.Time, received, dispatched int, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if o.metrics != nil {
		o.metrics.queries.WithLabelValues(status).Inc()
		o.metrics.duration.WithLabelValues(status).Observe(dur.Seconds())
		o.metrics.documents.WithLabelValues("received").Observe(float64(received))
		if err == nil {
			o.metrics.documents.WithLabelValues("dispatched").Observe(float64(dispatched))
		}
	}

	if o.logger != nil {
		if err != nil {
			o.logger.Warn("query failed",
				"documents", received,
				"duration", dur,
				"error", err,
			)
		} else {
			o.logger.Debug("query completed",
				"documents", received,
				"results", dispatched,
				"duration", dur,
			)
		}
	}
}
