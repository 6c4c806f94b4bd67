/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (viper) and build the logger (zap)
  3. Initialize SQLite store
  4. Start the async event dispatcher
  5. Wire domain services and the API handler
  6. Start the reminder scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config file (optional; defaults apply without one)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reminder scheduler
  4. Drain the event dispatcher
  5. Close database connection
  6. Exit

EXAMPLES:
  # Run with defaults (data/leave.db, port 8080)
  ./server

  # Run with a config file
  ./server -config=./config.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration layout and defaults
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.Default()
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	if err := seedCatalogue(store, cfg.Seed.Office, logger); err != nil {
		logger.Fatal("failed to seed leave type catalogue", zap.Error(err))
	}

	// Events: log-based notifier, durable audit trail in sqlite, async fan-out.
	notifier := &leave.LogNotifier{Log: logger}
	dispatcher := leave.NewDispatcher(notifier, store, logger, cfg.Dispatcher.BufferSize)
	defer dispatcher.Close()

	// Domain services
	admins := make([]leave.ActorID, len(cfg.Access.Admins))
	for i, a := range cfg.Access.Admins {
		admins[i] = leave.ActorID(a)
	}
	access := leave.NewDefaultAccessPolicy(admins...)
	service := leave.NewService(store, access, dispatcher)
	engine := leave.NewEngine(store, access, dispatcher, store)

	// HTTP
	handler := api.NewHandler(store, service, engine, access, logger)
	router := api.NewRouter(handler)

	// Reminder scan
	var reminders *api.ReminderScheduler
	if cfg.Reminder.Enabled {
		reminders = api.NewReminderScheduler(store, notifier, logger, cfg.Reminder.StaleAge)
		if err := reminders.Start(cfg.Reminder.Schedule); err != nil {
			logger.Fatal("failed to start reminder scheduler", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Addr()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	if reminders != nil {
		reminders.Stop()
	}

	logger.Info("server stopped")
}

// seedCatalogue provisions the preset leave types for the configured office
// on first run. An already-populated catalogue is left untouched.
func seedCatalogue(store *sqlite.Store, office string, logger *zap.Logger) error {
	if office == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := store.ListLeaveTypes(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, lt := range leave.DefaultLeaveTypes(leave.OfficeID(office)) {
		if err := store.SaveLeaveType(ctx, lt); err != nil {
			return err
		}
		logger.Info("seeded leave type", zap.String("code", lt.Code), zap.String("office", office))
	}
	return nil
}
