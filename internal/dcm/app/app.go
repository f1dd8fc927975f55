package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/dcm/internal/dcm/http"
	"github.com/aussiebroadwan/dcm/internal/dcm/ipc"
	"github.com/aussiebroadwan/dcm/internal/dcm/metrics"
	"github.com/aussiebroadwan/dcm/internal/dcm/service"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
	"github.com/aussiebroadwan/dcm/internal/dcm/store/drivers/jsonfile"
	"github.com/aussiebroadwan/dcm/internal/dcm/store/drivers/sqlite"
	"github.com/aussiebroadwan/dcm/internal/dcm/supervisor"
	"github.com/aussiebroadwan/dcm/pkg/cryptox"
	"github.com/aussiebroadwan/dcm/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the DCM service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	metrics *metrics.Metrics

	// Services
	accountService      *service.AccountService
	housekeepingService *service.HousekeepingService
	boundary            *ipc.Boundary
	aux                 *supervisor.Process

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "dcm",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// A missing aux process is not fatal; the accounts keep working.
	if err := app.aux.Start(context.Background()); err != nil {
		app.logger.Warn("continuing in degraded mode", "error", err)
	}

	app.housekeepingService.Start()

	app.logger.Info("dcm service starting", "addr", app.server.Addr, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down dcm service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.aux.Stop(ctx); err != nil {
		app.logger.Error("aux process did not stop cleanly", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("dcm service stopped")
	return nil
}

// initStore opens the configured driver and prepares its storage
func (app *Application) initStore() error {
	switch app.cfg.StoreDriver {
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		app.db = db
		app.logger.Info("using sqlite store", "file", app.cfg.DatabaseFile)
	default:
		db := jsonfile.NewStore(app.cfg.UsersFile, app.cfg.HistoryFile)
		app.db = db
		app.logger.Info("using json file store", "users", db.UsersPath(), "history", db.HistoryPath())
	}

	if err := app.db.ApplyMigrations(); err != nil {
		_ = app.db.Close()
		return fmt.Errorf("failed to prepare store: %w", err)
	}

	app.logger.Info("store ready")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadPepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.accountService = &service.AccountService{
		Store:     app.db,
		Hasher:    cryptox.NewPasswordHasher(pepper),
		ExportDir: app.cfg.ExportDir,
	}

	app.boundary = &ipc.Boundary{
		Accounts: app.accountService,
		Metrics:  app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.accountService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.aux = &supervisor.Process{
		Command: app.cfg.AuxCommand,
		Args:    app.cfg.AuxArgs,
		Logger:  app.logger.With("component", "aux"),
		Metrics: app.metrics,
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.boundary,
		app.logger,
	)
	router.Aux = app.aux
	router.Metrics = app.metrics
	router.RateLimits = app.cfg.RateLimits
	router.TrustProxy = app.cfg.TrustProxyHeaders
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              net.JoinHostPort(app.cfg.Host, strconv.Itoa(app.cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
