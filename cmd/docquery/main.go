package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docquery/internal/config"
	"github.com/kailas-cloud/docquery/internal/db"
	dbRedis "github.com/kailas-cloud/docquery/internal/db/redis"
	"github.com/kailas-cloud/docquery/internal/domain"
	"github.com/kailas-cloud/docquery/internal/domain/schema"
	logpkg "github.com/kailas-cloud/docquery/internal/logger"
	"github.com/kailas-cloud/docquery/internal/metrics"
	"github.com/kailas-cloud/docquery/internal/repository/gencache"
	chiTransport "github.com/kailas-cloud/docquery/internal/transport/chi"
	openaiGen "github.com/kailas-cloud/docquery/internal/transport/openai"
	healthuc "github.com/kailas-cloud/docquery/internal/usecase/health"
	queryuc "github.com/kailas-cloud/docquery/internal/usecase/query"
	"github.com/kailas-cloud/docquery/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docquery API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("provider", cfg.Generation.Provider),
		zap.String("model", cfg.Generation.Model),
		zap.Bool("cache", cfg.Cache.Enabled()),
	)

	// Register generation metrics explicitly (no init())
	metrics.RegisterGenerationMetrics()

	// Optional cache store
	var store db.Store
	if cfg.Cache.Enabled() {
		store, err = newStore(cfg.Cache)
		if err != nil {
			logger.Fatal("Failed to connect to cache store", zap.Error(err))
		}
		defer store.Close()
		logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	generator := buildGenerator(cfg, store, logger)

	querySvc, err := queryuc.New[json.RawMessage](generator, queryuc.Config{
		System:         cfg.Query.System,
		BatchSize:      cfg.Query.BatchSize,
		MaxConcurrency: cfg.Query.MaxConcurrency,
		Schema:         schema.Default(),
		StrictFilters:  cfg.Query.StrictFilters,
	})
	if err != nil {
		logger.Fatal("Failed to create query service", zap.Error(err))
	}
	logger.Info("Query service created",
		zap.Int("batch_size", querySvc.BatchSize()),
		zap.Int("max_concurrency", querySvc.MaxConcurrency()),
		zap.Bool("strict_filters", cfg.Query.StrictFilters),
	)

	// Pass nil interface (not typed nil pointer!) when the cache is disabled.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(cachePinger, generator)

	server := chiTransport.NewServer(querySvc, healthSvc, logger).
		WithLimits(cfg.Query.MaxDocuments, cfg.HTTP.MaxBodyBytes)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	apiKeys := cfg.Auth.Keys()
	if len(apiKeys) == 0 {
		logger.Warn("API key authentication is disabled: auth.api_keys is empty")
	}
	r.Use(chiTransport.BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func newStore(cfg config.CacheConfig) (db.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("store not ready: %w", err)
	}
	return store, nil
}

// generator is the composed generation chain: a domain.Generator that also reports health.
type generator interface {
	domain.Generator
	domain.HealthChecker
}

// buildGenerator assembles the decorator chain: OpenAI -> Cached.
func buildGenerator(cfg config.Config, store db.Store, logger *zap.Logger) generator {
	base := openaiGen.NewGenerator(&openaiGen.Config{
		APIKey:            cfg.Generation.APIKey,
		BaseURL:           cfg.Generation.BaseURL,
		Model:             cfg.Generation.Model,
		Temperature:       cfg.Generation.Temperature,
		MaxTokens:         cfg.Generation.MaxTokens,
		Provider:          cfg.Generation.Provider,
		Timeout:           time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		RequestsPerSecond: cfg.Generation.RequestsPerSecond,
		Burst:             cfg.Generation.Burst,
		MaxAttempts:       cfg.Generation.MaxAttempts,
		RetryDelay:        time.Duration(cfg.Generation.RetryDelayMs) * time.Millisecond,
		Logger:            logger,
	})

	if store == nil {
		return base
	}
	return gencache.New(base, store, cfg.Cache.TTL(), metrics.GenerationCacheTotal, logger)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
				zap.String("generation_calls", ww.Header().Get("X-Generation-Calls")),
				zap.String("generation_tokens", ww.Header().Get("X-Generation-Tokens")),
			)
		})
	}
}
