// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package server

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

	"github.com/learn2grow/server/internal/config"
	"github.com/learn2grow/server/internal/database"
	"github.com/learn2grow/server/internal/handlers"
	"github.com/learn2grow/server/internal/i18n"
	"github.com/learn2grow/server/internal/mailer"
	"github.com/learn2grow/server/internal/registration"
	"github.com/learn2grow/server/internal/repository"
	"github.com/learn2grow/server/internal/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	if cfg.Token.Secret == "" {
		return fmt.Errorf("token secret is required")
	}

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Collaborators
	repo := repository.New(db)
	issuer := token.NewIssuer(cfg.Token.Secret, nil)
	sender, err := mailer.New(&cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to create mail sender: %w", err)
	}

	workflow := registration.New(repo, sender, issuer, registration.Options{
		BaseURL:         cfg.Server.BaseURL,
		AdminEmail:      cfg.Admin.NotifyEmail,
		VerificationTTL: time.Duration(cfg.Token.VerificationTTLHours) * time.Hour,
		ResetTTL:        time.Duration(cfg.Token.ResetTTLHours) * time.Hour,
		AccessTTL:       time.Duration(cfg.Token.AccessTTLHours) * time.Hour,
	})

	// Bootstrap admin account
	if err := workflow.EnsureAdmin(ctx, cfg.Admin.BootstrapEmail, cfg.Admin.BootstrapPassword); err != nil {
		return fmt.Errorf("failed to ensure admin account: %w", err)
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, workflow, issuer, cfg)

	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, workflow *registration.Workflow, issuer *token.Issuer, cfg *config.Config) {
	h := handlers.New(workflow, cfg.Server.BaseURL)

	e.GET("/health", h.Health)

	users := e.Group("/api/users")
	users.POST("/register", h.Register)
	users.POST("/login", h.Login)
	users.POST("/request-recipient", h.RequestRecipient)
	users.GET("/verify-email", h.VerifyEmail)
	users.POST("/forgot-password", h.ForgotPassword)
	users.POST("/reset-password", h.ResetPassword)

	admin := users.Group("/recipient-requests", handlers.RequireAdmin(issuer))
	admin.GET("", h.ListRecipientRequests)
	admin.PUT("/:id", h.DecideRecipientRequest)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
