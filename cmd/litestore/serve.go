package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lines-of-codes/litestore/auth"
	"github.com/lines-of-codes/litestore/config"
	litestorehttp "github.com/lines-of-codes/litestore/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the litestore HTTP server.

The server refuses to start when the database schema is missing; run
'litestore migrate' first or pass --migrate.`,
	RunE: runServe,
}

var serveMigrate bool

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default: 5708, env: LITESTORE_SERVER_PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "create missing tables before starting")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, serveMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	secret, err := jwtSecret(cfg)
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	handler := litestorehttp.NewHandler(&litestorehttp.HandlerConfig{
		CORS:         cfg.CORS,
		Content:      a.content,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, litestorehttp.Services{
		Files:    a.files,
		Links:    a.links,
		Accounts: a.accounts,
		Tokens:   issuer,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "backend", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}

	// Let queued content cleanup finish before the stores close.
	if err := a.queue.Wait(shutdownCtx); err != nil {
		slog.Warn("cleanup tasks still running at shutdown", "pending", a.queue.Len(), "err", err)
	}

	slog.Info("server stopped")
	return nil
}
