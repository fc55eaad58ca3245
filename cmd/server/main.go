// Parking Admin - operator dashboard for parking and EV-charging facilities
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parkadmin/internal/action"
	"parkadmin/internal/config"
	"parkadmin/internal/gateway"
	"parkadmin/internal/realtime"
	"parkadmin/internal/repository"
	"parkadmin/internal/repository/sqlite"
	"parkadmin/internal/server"
	"parkadmin/internal/session"
	"parkadmin/internal/telemetry"
	"parkadmin/internal/templates"
)

// sweepInterval is how often expired sessions are purged
const sweepInterval = 15 * time.Minute

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Initialize database
	db, err := sqlite.New(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		return err
	}
	logger.Info("database initialized", "path", cfg.GetDatabasePath())

	repos := &repository.Repositories{
		Sessions: sqlite.NewSessionRepo(db),
		Settings: sqlite.NewSettingsRepo(db),
	}

	sessions, err := session.NewStore(repos.Sessions, session.Config{
		Secret: cfg.Session.Secret,
		TTL:    cfg.SessionTTL(),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	// Initialize template manager
	tmpl, err := templates.NewManager(templates.FS(), cfg.Debug)
	if err != nil {
		return err
	}

	backend, err := gateway.NewClient(gateway.ClientConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.BackendTimeout(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	deps := server.Deps{
		Repos:     repos,
		Sessions:  sessions,
		Templates: tmpl,
		Backend:   backend,
		Gate:      action.NewGate(action.Config{Logger: logger}),
		Logger:    logger,
	}

	if cfg.Realtime.Enabled {
		hub := realtime.NewHub(logger)
		deps.Hub = hub
		deps.Realtime = realtime.NewManager(realtime.ManagerConfig{
			Channel: realtime.ChannelConfig{
				BaseURL:        cfg.Backend.BaseURL,
				Path:           cfg.Backend.RealtimePath,
				ReconnectDelay: cfg.ReconnectDelay(),
				Heartbeat:      cfg.Heartbeat(),
			},
			FeedSize: cfg.Realtime.FeedSize,
			Hub:      hub,
			Logger:   logger,
		})
	}

	srv := server.New(cfg, deps)
	defer srv.Close()

	go sweepSessions(ctx, srv, logger)

	logger.Info("dashboard ready",
		"addr", cfg.Address(),
		"backend", backend.BaseURL(),
		"realtime", cfg.Realtime.Enabled,
	)
	return srv.Run(ctx)
}

// sweepSessions purges expired sessions and their server state until ctx is done
func sweepSessions(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := srv.Sweep(ctx); err != nil {
				logger.Warn("session sweep failed", "error", err)
			}
		}
	}
}
