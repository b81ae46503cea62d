package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/orbiterhq/deepresearch/internal/activities"
	"github.com/orbiterhq/deepresearch/internal/config"
	"github.com/orbiterhq/deepresearch/internal/db"
	"github.com/orbiterhq/deepresearch/internal/httpapi"
	"github.com/orbiterhq/deepresearch/internal/llm"
	"github.com/orbiterhq/deepresearch/internal/research"
	"github.com/orbiterhq/deepresearch/internal/search"
	"github.com/orbiterhq/deepresearch/internal/streaming"
	"github.com/orbiterhq/deepresearch/internal/temporal"
	"github.com/orbiterhq/deepresearch/internal/tracing"
	"github.com/orbiterhq/deepresearch/internal/workflows"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	if cfg.Research.KeywordsFile != "" {
		if err := research.LoadKeywordConfig(cfg.Research.KeywordsFile); err != nil {
			logger.Warn("keyword config not loaded, using built-in keywords",
				zap.String("path", cfg.Research.KeywordsFile),
				zap.Error(err),
			)
		}
	}

	// Optional Redis mirror for external event consumers.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, event mirror disabled",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
			rdb = nil
		}
	}
	events := streaming.NewManager(rdb, logger)
	if cfg.Streaming.RingCapacity > 0 {
		events.SetRingCapacity(cfg.Streaming.RingCapacity)
	}

	var provider search.Provider
	if cfg.Search.BaseURL != "" {
		provider = search.NewHTTPProvider(search.HTTPProviderConfig{
			BaseURL:           cfg.Search.BaseURL,
			APIKey:            cfg.Search.APIKey,
			Timeout:           cfg.Search.Timeout,
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
		}, logger)
	} else {
		logger.Warn("no search service configured, runs will stall to empty reports")
		provider = search.NoopProvider{}
	}

	var llmClient llm.Client
	if cfg.LLM.BaseURL != "" {
		llmClient = llm.NewServiceClient(llm.ServiceConfig{
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout,
		}, logger)
	} else {
		logger.Warn("no LLM service configured, using deterministic fallbacks")
	}

	var reports db.ReportStore
	if cfg.Database.Host != "" {
		store, err := db.NewPostgresStore(db.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			logger.Warn("report store unavailable, persistence disabled", zap.Error(err))
		} else {
			if err := store.EnsureSchema(ctx); err != nil {
				logger.Warn("report schema setup failed", zap.Error(err))
			}
			reports = store
			defer store.Close()
		}
	}

	tc, err := temporal.Dial(cfg.Temporal, logger)
	if err != nil {
		logger.Fatal("connect temporal", zap.Error(err))
	}
	defer tc.Close()

	acts := activities.NewActivities(activities.Deps{
		Search:  provider,
		LLM:     llmClient,
		Events:  events,
		Reports: reports,
		Logger:  logger,
	})

	wk := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{})
	wk.RegisterWorkflow(workflows.ResearchWorkflow)
	wk.RegisterActivity(acts)
	if err := wk.Start(); err != nil {
		logger.Fatal("start worker", zap.Error(err))
	}
	defer wk.Stop()
	logger.Info("worker started", zap.String("task_queue", cfg.Temporal.TaskQueue))

	// Tuning hot-reload: newly submitted runs pick up changed thresholds;
	// in-flight runs keep the limits they started with.
	tuning := func() config.ResearchConfig { return cfg.Research }
	if cfg.SourcePath() != "" {
		if watcher, err := config.NewWatcher(cfg, logger); err == nil {
			watcher.Start(ctx)
			tuning = watcher.Tuning
		} else {
			logger.Warn("config hot-reload disabled", zap.Error(err))
		}
	}

	api := httpapi.NewServer(httpapi.ServerDeps{
		Temporal:  tc,
		Events:    events,
		Reports:   reports,
		TaskQueue: cfg.Temporal.TaskQueue,
		Tuning:    tuning,
		Auth:      buildAuth(cfg.Auth, logger),
		Logger:    logger,
	})
	mux := api.Routes()
	if cfg.Service.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
	}
	go func() {
		logger.Info("http api listening", zap.Int("port", cfg.Service.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(cfg.Format, "console") || os.Getenv("ENV") == "development" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

func buildAuth(cfg config.AuthConfig, logger *zap.Logger) *httpapi.Authenticator {
	if !cfg.Enabled {
		return nil
	}
	if cfg.JWTSecret == "" {
		logger.Warn("auth enabled but no JWT secret configured, API runs open")
		return nil
	}
	return httpapi.NewAuthenticator(cfg.JWTSecret, logger)
}
