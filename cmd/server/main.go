/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the inventory engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (file, .env, INVENTORY_* variables)
  3. Build the logger
  4. Initialize SQLite store (runs migrations)
  5. Create services, seed the first administrator
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (default: config.yaml, optional)
  -env     dotenv file (default: .env, optional)
  -db      overrides database.path; ":memory:" for an in-memory database
  -addr    overrides http.addr

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/inventory.db"
  INVENTORY_LOG_ENCODING=console ./server -db=":memory:"
  INVENTORY_APP_ADMIN_PASSWORD=changeme ./server

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/inventory-engine/accounts"
	"github.com/warp/inventory-engine/api"
	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/logging"
	"github.com/warp/inventory-engine/metrics"
	"github.com/warp/inventory-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	cfgPath := flag.String("config", "config.yaml", "YAML config file")
	envFile := flag.String("env", ".env", "dotenv file")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envFile)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.App.Timezone, err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	opts := []inventory.Option{
		inventory.WithLogger(log.Named("inventory")),
		inventory.WithLimits(cfg.InventoryLimits()),
		inventory.WithLocation(loc),
	}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		col := metrics.New()
		opts = append(opts, inventory.WithObserver(col))
		metricsHandler = col.Handler()
	}
	inv := inventory.NewService(store, opts...)
	acc := accounts.NewService(inv)

	if cfg.App.AdminPassword != "" {
		created, err := acc.EnsureAdmin(context.Background(), cfg.App.AdminUsername, cfg.App.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed administrator: %w", err)
		}
		if created {
			log.Info("created administrator", zap.String("username", cfg.App.AdminUsername))
		}
	}

	handler := api.NewHandler(inv, acc, log.Named("http"))
	router := api.NewRouter(handler, api.Options{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Metrics:     metricsHandler,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("database", cfg.Database.Path),
			zap.Bool("metrics", cfg.Metrics.Enabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
