package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/marklens/marklens/internal/batch"
	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/export"
	"github.com/marklens/marklens/internal/llm/openai"
	"github.com/marklens/marklens/internal/server"
	"github.com/marklens/marklens/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session backend: Redis when configured, otherwise in-process.
	var store session.Store
	if cfg.Redis.Addr != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisStore.Close(); err != nil {
				logger.Warn("redis close error", "error", err)
			}
		}()
		store = redisStore
	} else {
		store = session.NewMemoryStore(cfg.Redis.SessionTTL)
		logger.Info("using in-memory session store", "ttl", cfg.Redis.SessionTTL)
	}

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	logger.Info("extraction client initialized", "model", cfg.LLM.Model)

	orchestrator := batch.NewOrchestrator(extractor,
		batch.WithConcurrency(cfg.Batch.Concurrency),
		batch.WithExtractTimeout(cfg.Batch.ExtractTimeout),
		batch.WithLogger(logger),
	)
	exporter := export.NewService(logger)

	handler := server.NewHandler(orchestrator, store, exporter, cfg.Server, logger)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}
