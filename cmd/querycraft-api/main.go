package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querycraft/querycraft/internal/api"
	"github.com/querycraft/querycraft/internal/config"
	"github.com/querycraft/querycraft/internal/inference"
	"github.com/querycraft/querycraft/internal/nl2sql"
	"github.com/querycraft/querycraft/internal/observability"
	"github.com/querycraft/querycraft/internal/pipeline"
	"github.com/querycraft/querycraft/internal/schema"
	"github.com/querycraft/querycraft/internal/sqlguard"
	"github.com/querycraft/querycraft/internal/store"
	"github.com/querycraft/querycraft/internal/store/duckdb"
	"github.com/querycraft/querycraft/internal/store/mysql"
	"github.com/querycraft/querycraft/internal/store/postgres"
	"github.com/querycraft/querycraft/internal/store/sqlite"
)

func main() {
	cfg, err := config.LoadFromEnv("querycraft-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	dataStore, err := openStore(cfg.Store)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = dataStore.Close() }()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	provider := schema.NewProvider(startupCtx, dataStore, logger)
	engine := loadEngine(startupCtx, cfg.Engine, logger)
	cancelStartup()

	mode, err := sqlguard.ParseMode(cfg.Guard.Mode)
	if err != nil {
		logger.Error("invalid guard mode", slog.Any("error", err))
		os.Exit(1)
	}
	gate := sqlguard.New(mode, sqlguard.WithRejectHook(func(mode sqlguard.Mode, reason string) {
		observability.IncrementRejectedQuery(string(mode))
		logger.Info("generated query rejected", slog.String("mode", string(mode)), slog.String("reason", reason))
	}))

	synthesizer := nl2sql.NewSynthesizer(engine, provider, gate, nl2sql.Config{
		MaxTokens:   cfg.Engine.MaxTokens,
		Temperature: cfg.Engine.Temperature,
	}, logger)
	service := pipeline.NewService(synthesizer, dataStore, logger)

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:  logger,
		Queries: service,
		Schema:  provider,
		Readiness: api.CombineReadinessChecks(
			api.CheckStore(dataStore),
			api.CheckEngine(synthesizer.Available),
		),
		DependencyTimeout: 2 * time.Second,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dialect", dataStore.Dialect()),
			slog.Bool("model_loaded", synthesizer.Available()),
			slog.Bool("schema_loaded", provider.Loaded()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openStore(cfg config.StoreConfig) (*store.SQLStore, error) {
	pool := store.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
	opts := store.Options{MaxRows: cfg.MaxRows}

	switch cfg.Dialect {
	case "sqlite":
		return sqlite.NewStore(sqlite.Config{Path: cfg.DSN, Pool: pool}, opts)
	case "duckdb":
		return duckdb.NewStore(duckdb.Config{Path: cfg.DSN, Pool: pool}, opts)
	case "postgres":
		return postgres.NewStore(postgres.Config{DSN: cfg.DSN, Schema: cfg.Schema, Pool: pool}, opts)
	case "mysql":
		return mysql.NewStore(mysql.Config{DSN: cfg.DSN, Pool: pool}, opts)
	default:
		return nil, fmt.Errorf("unsupported store dialect %q", cfg.Dialect)
	}
}

// loadEngine returns nil when the model cannot be used. The service still
// starts and answers every question with a model-unavailable envelope.
func loadEngine(ctx context.Context, cfg config.EngineConfig, logger *slog.Logger) inference.Engine {
	if !cfg.Enabled {
		logger.Warn("sql generation engine disabled")
		return nil
	}
	engineAPI, err := inference.ParseAPI(cfg.API)
	if err != nil {
		logger.Error("failed to load sql generation engine", slog.Any("error", err))
		return nil
	}
	client, err := inference.NewOpenAIClient(inference.OpenAIConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		API:     engineAPI,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		logger.Error("failed to load sql generation engine", slog.Any("error", err))
		return nil
	}
	if cfg.Probe {
		if err := client.Probe(ctx); err != nil {
			logger.Error("sql generation engine probe failed", slog.String("base_url", cfg.BaseURL), slog.Any("error", err))
			return nil
		}
	}
	logger.Info("sql generation engine loaded", slog.String("model", client.Model()), slog.String("api", string(engineAPI)))
	return inference.NewPool(client, cfg.Concurrency, cfg.Timeout)
}
