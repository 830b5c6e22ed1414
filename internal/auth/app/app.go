package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/audit"
	"github.com/aussiebroadwan/siteadmin/internal/auth/authz"
	httpapi "github.com/aussiebroadwan/siteadmin/internal/auth/http"
	"github.com/aussiebroadwan/siteadmin/internal/auth/service"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
	"github.com/aussiebroadwan/siteadmin/pkg/jwtx"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the admin service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	authorizer *authz.Authorizer
	recorder   *audit.Recorder
	mirror     io.Closer // AMQP audit mirror, nil when disabled
	keyManager *jwtx.KeyManager

	// Services
	core                *service.Core
	sessions            *service.SessionService
	housekeepingService *HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "siteadmin",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCore(); err != nil {
		_ = app.close()
		return nil, err
	}

	keyManager, err := initKeys(cfg)
	if err != nil {
		_ = app.close()
		return nil, fmt.Errorf("failed to initialize session keys: %w", err)
	}
	app.keyManager = keyManager

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Core returns the trust core facade.
func (app *Application) Core() *service.Core { return app.core }

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Handler returns the admin HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("siteadmin starting", "port", app.cfg.Port, "version", BuildVersion)

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
			app.housekeepingService.Stop()
			_ = app.close()
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
	app.logger.Info("shutting down siteadmin...")

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

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.close(); err != nil {
		return err
	}

	app.logger.Info("siteadmin stopped")
	return nil
}

// Close releases the database and the audit mirror without touching the
// HTTP server. Used by one-shot commands.
func (app *Application) Close() error {
	return app.close()
}

func (app *Application) close() error {
	if app.mirror != nil {
		if err := app.mirror.Close(); err != nil {
			app.logger.Error("error closing audit mirror", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase() error {
	db, err := openStore(app.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database ready", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initKeys loads the persistent signing key when configured. Without one,
// sessions end when the process restarts.
func initKeys(cfg Config) (*jwtx.KeyManager, error) {
	if cfg.KeyFile == "" {
		return jwtx.NewEphemeralKeyManager(cfg.Issuer)
	}
	pemKey, err := cryptox.LoadOrGenerateSigningKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return jwtx.NewKeyManager(cfg.Issuer, pemKey)
}

func openStore(cfg Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case DriverMemory:
		return memory.NewStore(memory.WithAuditCapacity(cfg.AuditMemoryCapacity)), nil
	case DriverPostgres:
		return postgres.NewStore(cfg.DatabaseURL)
	default:
		host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.DatabaseFile)
		return sqlite.NewStore(host)
	}
}

// initCore loads the role hierarchy, the audit pipeline and the pepper, and
// assembles the trust core.
func (app *Application) initCore() error {
	az, err := authz.Load(app.cfg.RolesFile)
	if err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}
	app.authorizer = az

	var sink audit.Sink = store.NewAuditSink(app.db)
	if app.cfg.AuditAMQPURL != "" {
		pub, err := audit.DialAMQP(app.cfg.AuditAMQPURL, app.cfg.AuditAMQPExchange, app.cfg.AuditAMQPRoutingKey)
		if err != nil {
			return fmt.Errorf("failed to connect audit mirror: %w", err)
		}
		app.mirror = pub
		sink = audit.Tee(sink, pub)
		app.logger.Info("audit mirror enabled", "exchange", app.cfg.AuditAMQPExchange)
	}

	app.recorder = audit.NewRecorder(sink,
		audit.WithTimeout(app.cfg.AuditWriteTimeout),
		audit.WithFallback(slogx.NewFallback(slogx.Config{
			Service: "siteadmin",
			Version: BuildVersion,
			Env:     app.cfg.Env,
			Level:   app.cfg.LogLevel,
			Format:  app.cfg.LogFormat,
		})),
	)

	pepper, err := cryptox.LoadOrGeneratePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.core = service.NewCore(app.db, az, app.recorder, service.CoreConfig{
		Hasher:        cryptox.NewHasher(app.cfg.KDF(), pepper),
		MFAIssuer:     app.cfg.MFAIssuer,
		InvitationTTL: app.cfg.InvitationTTL,
	})
	return nil
}

// initServices initializes the session and background services
func (app *Application) initServices() {
	app.sessions = &service.SessionService{
		Credentials: app.core.Credentials,
		Audit:       app.recorder,
		Signer:      app.keyManager.Signer,
		Issuer:      app.cfg.Issuer,
		TTL:         app.cfg.SessionTTL,
	}

	app.housekeepingService = NewHousekeepingService(
		app.recorder,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.core,
		app.sessions,
		app.logger,
	)
	router.Limits = httpx.RateLimitsFromEnv()
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
