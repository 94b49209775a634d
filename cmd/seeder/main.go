// The seeder command runs the dictionary seeding pipeline. By default it
// executes one seeding batch and exits, which suits cron-style
// scheduling. With -recover it runs a recovery pass instead, and with
// -serve it stays up and exposes the HTTP trigger surface for an
// external scheduler. -migrate applies or inspects schema migrations.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/solfege-app/glossary/internal/api"
	apimiddleware "github.com/solfege-app/glossary/internal/api/middleware"
	"github.com/solfege-app/glossary/internal/budget"
	"github.com/solfege-app/glossary/internal/config"
	"github.com/solfege-app/glossary/internal/generation"
	"github.com/solfege-app/glossary/internal/platform/gemini"
	"github.com/solfege-app/glossary/internal/platform/logger"
	"github.com/solfege-app/glossary/internal/platform/postgres"
	"github.com/solfege-app/glossary/internal/platform/rediscache"
	"github.com/solfege-app/glossary/internal/recovery"
	"github.com/solfege-app/glossary/internal/seeder"
	"github.com/solfege-app/glossary/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seeder: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serve := flag.Bool("serve", false, "serve the HTTP trigger surface instead of running once")
	runRecovery := flag.Bool("recover", false, "run one recovery pass instead of a seeding batch")
	migrateCmd := flag.String("migrate", "", "run schema migrations: up, down or status")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(logger.Options{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogPretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	if *migrateCmd != "" {
		return runMigrations(db, *migrateCmd, log)
	}

	app, err := buildApp(ctx, db, cfg, log)
	if err != nil {
		return err
	}
	defer app.close(log)

	switch {
	case *serve:
		return serveHTTP(ctx, db, cfg, app, log)
	case *runRecovery:
		summary, err := app.recoveryService.RecoverFailedItems(logger.WithLogger(ctx, log), cfg.Recovery.ScanLimit)
		if err != nil {
			return fmt.Errorf("recovery pass failed: %w", err)
		}
		log.Info("recovery pass complete",
			slog.Int("scanned", summary.Scanned),
			slog.Int("requeued", summary.Requeued),
			slog.Int("demoted", summary.Demoted))
		return nil
	default:
		summary, err := app.processor.RunBatch(logger.WithLogger(ctx, log))
		if err != nil {
			return fmt.Errorf("seeding batch failed: %w", err)
		}
		log.Info("seeding batch complete",
			slog.String("outcome", summary.Outcome),
			slog.Int("claimed", summary.Claimed),
			slog.Int("completed", summary.Completed),
			slog.Int("tokens_used", summary.TokensUsed))
		return nil
	}
}

// app bundles the wired pipeline components.
type app struct {
	processor       *seeder.Processor
	recoveryService *recovery.Service
	cache           store.EntryCache
}

// buildApp wires stores, the generative backend, the budget ledger and
// the pipeline services.
func buildApp(ctx context.Context, db *sql.DB, cfg *config.Config, log *slog.Logger) (*app, error) {
	backlogStore := postgres.NewPostgresBacklogStore(db, log)
	entryStore := postgres.NewPostgresEntryStore(db, log)
	reviewStore := postgres.NewPostgresReviewStore(db, log)
	usageStore := postgres.NewPostgresUsageStore(db, log)
	deadLetterStore := postgres.NewPostgresDeadLetterStore(db, log)

	var cache store.EntryCache = rediscache.NoOp{}
	if cfg.Redis.URL != "" {
		redisCache, err := rediscache.New(cfg.Redis.URL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to set up entry cache: %w", err)
		}
		cache = redisCache
	}

	client, err := gemini.NewClient(ctx, log, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create generative backend client: %w", err)
	}

	engine, err := generation.NewEngine(client, generation.Config{
		MinQualityScore: cfg.Seed.MinQualityScore,
		UseValidator:    true,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation engine: %w", err)
	}

	// Usage rows carry a -seed suffix so the ledger's daily aggregation can
	// tell seeding spend apart from other consumers of the same model.
	seedModel := cfg.LLM.ModelName + "-seed"

	ledger, err := budget.NewLedger(usageStore, cfg.Budget, seedModel, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create budget ledger: %w", err)
	}

	processor, err := seeder.NewProcessor(
		backlogStore, entryStore, reviewStore, cache, engine, ledger,
		cfg.Seed, cfg.Budget.HighWaterMarkPercent, seedModel, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch processor: %w", err)
	}

	recoveryService, err := recovery.NewService(db, backlogStore, deadLetterStore, ledger, cfg.Recovery, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create recovery service: %w", err)
	}

	return &app{
		processor:       processor,
		recoveryService: recoveryService,
		cache:           cache,
	}, nil
}

func (a *app) close(log *slog.Logger) {
	if closer, ok := a.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error("failed to close entry cache", slog.String("error", err.Error()))
		}
	}
}

// serveHTTP runs the trigger surface until the process is signalled.
func serveHTTP(ctx context.Context, db *sql.DB, cfg *config.Config, a *app, log *slog.Logger) error {
	router := api.NewRouter(
		api.NewSeedHandler(a.processor),
		api.NewRecoveryHandler(a.recoveryService, cfg.Recovery.ScanLimit),
		apimiddleware.NewAuthMiddleware(cfg.Server.TriggerSecret),
		db,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("trigger surface listening", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
