// Command novasight-headless runs the NovaSight engine without the desktop
// shell and serves the JSON control API.
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
	"time"

	"golang.org/x/sync/errgroup"

	"novasight/internal/bootstrap"
	"novasight/internal/domain"
	"novasight/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "novasight:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Events arrive during Build, before the real logger exists.
	events := httpapi.NewEventLog(512, slog.Default())
	services, err := bootstrap.Build(events)
	if err != nil {
		return err
	}
	logger := services.Logger
	events.SetLogger(logger)

	engine := services.Engine
	engine.Bind(ctx)
	defer engine.Close()

	server := &http.Server{
		Addr:              services.Config.HTTP.Addr,
		Handler:           httpapi.NewServer(engine, events, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("control api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control api: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if _, err := engine.Welcome(groupCtx); err != nil {
			logger.Warn("welcome announcement failed", "error", err)
		}
		return engine.Focus(domain.ModeDocument)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
