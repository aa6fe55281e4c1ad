// main is the entry point of the Student CRUD API.
//
// STARTUP SEQUENCE:
//  1. Load configuration (.env, YAML file, environment)
//  2. Initialise the logger
//  3. Connect to storage (MongoDB by default, SQLite optionally)
//  4. Build the router
//  5. Start the HTTP server in a separate goroutine
//  6. Block the main goroutine until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, close storage, exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/students-api --config=config/local.yaml
//
// or with the environment alone:
//
//	MONGODB_URI=mongodb://localhost:27017 PORT=5000 go run ./cmd/students-api
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

	"github.com/aanand-mishra/student-crud-api/internal/config"
	"github.com/aanand-mishra/student-crud-api/internal/http/router"
	"github.com/aanand-mishra/student-crud-api/internal/storage"
	"github.com/aanand-mishra/student-crud-api/internal/storage/mongo"
	"github.com/aanand-mishra/student-crud-api/internal/storage/sqlite"
)

const version = "1.0.0"

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Installed as the default so package-level slog calls use it too.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting students-api",
		slog.String("env", cfg.Env),
		slog.String("version", version),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	// The handle is created here and passed down explicitly; nothing else
	// in the program opens a connection. Failure is fatal.
	store, err := openStorage(context.Background(), cfg)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("driver", cfg.Storage.Driver),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("storage initialised", slog.String("driver", cfg.Storage.Driver))

	// ── 4. Build the Router ───────────────────────────────────────────────
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router.New(store, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// ── 5. Start Server in a Goroutine ────────────────────────────────────
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("address", cfg.Addr))

		// ListenAndServe returns http.ErrServerClosed after Shutdown().
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-done:
		log.Info("shutdown signal received, stopping server...",
			slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server encountered an error", slog.String("error", err.Error()))
		exitCode = 1
	}

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	// Stop taking requests first, then close storage so in-flight
	// requests can still finish their queries.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		exitCode = 1
	}

	if err := store.Close(ctx); err != nil {
		log.Error("failed to close storage", slog.String("error", err.Error()))
		exitCode = 1
	}
	cancel()

	log.Info("server stopped", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}

// openStorage connects the backend selected by cfg.Storage.Driver.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		return mongo.New(ctx, cfg)
	case config.DriverSQLite:
		s, err := sqlite.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("sqlite ping: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Staging: JSON output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default: // "dev" and anything unrecognised
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
