// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/geocam/internal/api"
	"github.com/starford/geocam/internal/inbox"
	"github.com/starford/geocam/internal/maintenance"
	"github.com/starford/geocam/internal/mcpserver"
)

// Run starts the HTTP server and background workers with the given options.
func Run(ctx context.Context, opts ...Option) error {
	a, err := Open(ctx, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config
	logger := a.Logger

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: a.Router(),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Inbox.Enabled {
		w, err := inbox.New(cfg.Inbox.Path, a.Workflow,
			inbox.WithSettle(cfg.Inbox.Settle),
			inbox.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	if cfg.Maintenance.Enabled {
		sweeper := maintenance.NewSweeper(a.Gateway, a.Store,
			maintenance.WithGrace(cfg.Maintenance.Grace),
			maintenance.WithLogger(logger),
		)
		g.Go(func() error {
			return sweeper.Run(gCtx, cfg.Maintenance.Schedule)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Unblocks the inbox and scheduler goroutines after a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// Router builds the HTTP handler tree.
func (a *App) Router() http.Handler {
	cfg := a.Config

	apiRouter := api.NewRouter(api.Deps{
		Store:           a.Store,
		Workflow:        a.Workflow,
		Gateway:         a.Gateway,
		Probe:           a.Probe,
		Enricher:        a.Enricher,
		Layout:          a.Layout(),
		LocationTimeout: cfg.Location.FixTimeout,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token, a.Broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)
	return r
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	a, err := Open(ctx, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	d := mcpserver.Deps{
		Store:    a.Store,
		Workflow: a.Workflow,
		Layout:   a.Layout(),
	}
	if a.Resolver != nil {
		d.Resolver = a.Resolver
	}
	a.Logger.Info("MCP server starting on stdio")
	return mcpserver.New(d).ServeStdio()
}
