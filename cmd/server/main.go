/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shop ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (file + SHOPLEDGER_* environment)
  3. Build the zap logger
  4. Open the configured store (sqlite or postgres)
  5. Seed the bootstrap admin when configured
  6. Configure HTTP router and start the server

COMMAND-LINE FLAGS:
  -config  Path to a config file (default: search ./config.yaml)
  -port    Overrides http.port
  -db      Overrides db.path (sqlite only). Use ":memory:" for a
           throwaway database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  SHOPLEDGER_AUTH_JWT_SECRET=dev ./server -db=":memory:"
  SHOPLEDGER_DB_DRIVER=postgres SHOPLEDGER_DB_DSN=postgres://... ./server

SEE ALSO:
  - config/config.go: All settings and their defaults
  - api/server.go: Router configuration
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

	"github.com/warp/shopledger/api"
	"github.com/warp/shopledger/auth"
	"github.com/warp/shopledger/config"
	"github.com/warp/shopledger/logging"
	"github.com/warp/shopledger/store"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	// Initialize store
	backend, err := store.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DB.Driver, err)
	}
	defer backend.Close()

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authSvc := auth.NewService(backend, tokens,
		auth.WithBcryptCost(cfg.Auth.BcryptCost),
		auth.WithLogger(log),
	)

	if cfg.Seed.AdminEmail != "" {
		created, err := authSvc.EnsureAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminUsername, cfg.Seed.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if created {
			log.Info("bootstrap admin created", zap.String("email", cfg.Seed.AdminEmail))
		}
	}

	handler := api.NewHandler(api.Deps{
		Backend: backend,
		Auth:    authSvc,
		Tokens:  tokens,
		Log:     log,
	})
	router := api.NewRouter(handler, cfg.HTTP.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.HTTP.Port),
			zap.String("db_driver", cfg.DB.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
