package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/bank-reconciliation/internal/api"
	"github.com/eshaffer321/bank-reconciliation/internal/application/reconcile"
	"github.com/eshaffer321/bank-reconciliation/internal/infrastructure/config"
	"github.com/eshaffer321/bank-reconciliation/internal/infrastructure/logging"
	"github.com/eshaffer321/bank-reconciliation/internal/infrastructure/storage"
)

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port      int
	Scheduler bool
}

// App bundles the storage and service every command needs.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *storage.Storage
	Service *reconcile.Service

	logCfg config.LoggingConfig
}

// OpenApp opens the database and builds the reconciliation service.
func OpenApp(cfg *config.Config, component string, verbose bool) (*App, error) {
	loggingCfg := cfg.Observability.Logging
	if verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewComponentLogger(loggingCfg, component)

	engineCfg, err := cfg.Matching.ToEngineConfig()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Service: reconcile.NewService(store, engineCfg, logger),
		logCfg:  loggingCfg,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}

// NewScheduler builds the auto-match scheduler from the scheduler config.
func (a *App) NewScheduler() (*reconcile.Scheduler, error) {
	sc := a.Config.Scheduler
	return reconcile.NewScheduler(a.Service, reconcile.SchedulerConfig{
		Schedule: sc.Schedule,
		TimeZone: sc.TimeZone,
		Options: reconcile.AutoApplyOptions{
			IncludeMedium: sc.IncludeMedium,
			IncludeMulti:  sc.IncludeMulti,
			Actor:         sc.Actor,
		},
	}, logging.NewComponentLogger(a.logCfg, "scheduler"))
}

// RunServe runs the API server, and the auto-match scheduler when enabled,
// until ctx is cancelled.
func RunServe(ctx context.Context, app *App, flags *ServeFlags) error {
	cfg := app.Config
	logger := app.Logger

	apiCfg := api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if flags.Port != 0 {
		apiCfg.Port = flags.Port
	}
	if len(apiCfg.AllowedOrigins) == 0 {
		apiCfg.AllowedOrigins = api.DefaultConfig().AllowedOrigins
	}

	server := api.NewServer(apiCfg, app.Store, app.Service, logger)

	var sched *reconcile.Scheduler
	if flags.Scheduler || cfg.Scheduler.Enabled {
		s, err := app.NewScheduler()
		if err != nil {
			return err
		}
		sched = s
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	if sched != nil {
		sched.Start()
	}

	// Handle graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if sched != nil {
			sched.Stop(shutdownCtx)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
