package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"wallet/internal/amqp"
	"wallet/internal/config"
	"wallet/internal/notify"
	"wallet/pkg/logging"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logging.Setup()

	slog.Info("Starting notifier-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		slog.Error("AMQP_URL is required for the notifier worker")
		os.Exit(1)
	}

	users := notify.StaticDirectory{}
	if cfg.UsersFile != "" {
		loaded, err := notify.LoadDirectory(cfg.UsersFile)
		if err != nil {
			slog.Error("Failed to load users file", "error", err, "path", cfg.UsersFile)
			os.Exit(1)
		}
		users = loaded
		slog.Info("User directory loaded", "users", len(loaded))
	} else {
		slog.Warn("No users file configured - notifications will carry user ids only")
	}

	// LogSender writes every rendered notification to the log. Real email,
	// SMS and push providers satisfy the same interfaces.
	sender := notify.LogSender{}
	dispatcher := notify.NewDispatcher(notify.Config{
		FrontendURL: cfg.FrontendURL,
		SenderEmail: cfg.SenderEmail,
		SMSFrom:     cfg.SMSFrom,
	}, users, sender, sender, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqp.ConsumeForever(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, dispatcher.Dispatch)
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			slog.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Notifier-worker exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Notifier-worker shutdown complete")
}
