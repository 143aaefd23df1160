package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callgreet/callgreet/internal/ai"
	"github.com/callgreet/callgreet/internal/api"
	"github.com/callgreet/callgreet/internal/config"
	"github.com/callgreet/callgreet/internal/database"
	"github.com/callgreet/callgreet/internal/email"
	"github.com/callgreet/callgreet/internal/intake"
	"github.com/callgreet/callgreet/internal/ivr"
	"github.com/callgreet/callgreet/internal/metrics"
	"github.com/callgreet/callgreet/internal/postcall"
	"github.com/callgreet/callgreet/internal/webhook"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load .env if present; real env vars win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting callgreet",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
		"public_base_url", cfg.PublicBaseURL,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	sessions := database.NewCallSessionRepository(db)
	consents := database.NewConsentRepository(db)
	notifications := database.NewNotificationRepository(db)
	users := database.NewAdminUserRepository(db)

	// Load system configuration from database.
	sysConfig, err := database.NewSystemConfigRepository(context.Background(), db)
	if err != nil {
		slog.Error("failed to load system config", "error", err)
		os.Exit(1)
	}

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		slog.Error("failed to derive jwt secret", "error", err)
		os.Exit(1)
	}

	// AI clients. The intake engine degrades gracefully when either is
	// unconfigured, so empty URLs are allowed here.
	var completion ai.CompletionClient
	if cfg.CompletionURL != "" {
		completion = ai.NewCompletionClient(cfg.CompletionURL, cfg.CompletionAPIKey, cfg.CompletionModel, cfg.TurnTimeout())
	} else {
		slog.Warn("no completion service configured, intake will escalate every turn")
	}
	var knowledge ai.KnowledgeClient
	if cfg.KnowledgeURL != "" {
		knowledge = ai.NewKnowledgeClient(cfg.KnowledgeURL, cfg.KnowledgeAPIKey, cfg.TurnTimeout())
	}

	intakeEngine := intake.NewEngine(completion, knowledge, intake.Profile{
		BusinessName: cfg.BusinessName,
		Greeting:     cfg.BusinessGreeting,
		Facts:        cfg.Facts(),
	}, cfg.MaxEmptyTurns, cfg.TurnTimeout(), logger)

	// Post-call notification pipeline.
	smtp := email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		TLS:      cfg.SMTPTLS,
	}
	sender := email.NewSender(logger)
	processor := postcall.NewProcessor(sessions, notifications, sysConfig, sender, smtp, cfg.BusinessName, logger)

	// Retention purge loop.
	postcall.StartPurgeTicker(appCtx, sessions, sysConfig, cfg.PurgeInterval())

	// Carrier webhook handler.
	verifier := webhook.NewVerifier(cfg.CarrierAuthToken)
	webhookHandler := webhook.NewHandler(verifier, cfg.PublicBaseURL, sessions, consents, sysConfig, ivr.NewEngine(), intakeEngine, processor, logger)

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(metrics.NewCollector(sessions, consents, notifications, time.Now()))

	// HTTP server using the api package.
	handler := api.NewServer(db, sessions, consents, notifications, sysConfig, users, webhookHandler.Routes(), registry, jwtSecret)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("callgreet stopped")
}
