// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/auth"
	authpg "github.com/keygate/keygate/internal/auth/postgres"
	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/httpapi"
	"github.com/keygate/keygate/internal/logging"
	"github.com/keygate/keygate/internal/mail"
	"github.com/keygate/keygate/internal/observability"
	"github.com/keygate/keygate/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Keygate HTTP server",
		Long: `Start the HTTP server exposing registration, login, password
reset, email verification, and external identity endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg config.Config, cmd *cobra.Command) error {
	logging.SetDefault("keygate", version, cfg.LogFormat)
	logger := slog.Default()

	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.Token.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("KEYGATE_TOKEN_SECRET environment variable is required")
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("connected to database")

	svc, tokens, err := buildService(cfg, pool, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server is optional; readiness tracks the database.
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		auth.RegisterMetrics(obsServer.Registry())

		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return oops.Code("SERVER_START_FAILED").With("server", "observability").Wrap(obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	handler := httpapi.NewHandler(svc, tokens, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Keygate server started")
	logger.Info("server ready", "http_addr", cfg.HTTPAddr)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		return oops.Code("SERVER_FAILED").With("server", "http").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// buildService assembles the account service from configuration.
func buildService(cfg config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*auth.Service, *auth.TokenService, error) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.Token.Secret),
		SessionTTL: cfg.Token.SessionTTL,
		ResetTTL:   cfg.Token.ResetTTL,
		VerifyTTL:  cfg.Token.VerifyTTL,
	})
	if err != nil {
		return nil, nil, err
	}

	params := auth.DefaultArgon2Params()
	params.Time = cfg.Argon2.Time
	params.Memory = cfg.Argon2.MemoryKiB
	params.Threads = cfg.Argon2.Threads
	hasher := auth.NewArgon2idHasher(params)

	var mailer auth.Mailer
	switch cfg.Mailer {
	case "smtp":
		mailer, err = mail.NewSMTPMailer(mail.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
		if err != nil {
			return nil, nil, err
		}
	default:
		mailer = mail.NewLogMailer(logger)
	}

	svc, err := auth.NewServiceWithLogger(
		authpg.NewAccountRepository(pool),
		tokens,
		hasher,
		mailer,
		auth.ServiceConfig{PublicURL: cfg.PublicURL},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	return svc, tokens, nil
}

// monitorServerErrors cancels the run context when a background server
// fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errChan <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errChan:
		if ok && err != nil {
			logger.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
