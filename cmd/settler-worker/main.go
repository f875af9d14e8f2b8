package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"wallet/internal/amqp"
	"wallet/internal/config"
	"wallet/internal/services"
	"wallet/internal/storage"
	"wallet/pkg/logging"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logging.Setup()

	slog.Info("Starting settler-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
		slog.Error("Failed to run migrations", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
		}
	}

	ledger := services.NewLedgerService(repo)
	processor := services.NewScheduledProcessor(repo, ledger, events)
	reporter := services.NewDailyReporter(repo, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("Scheduled transaction settler configured",
		"interval", cfg.SettleInterval,
		"daily_report_hour", cfg.DailyReportHour,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.SettleInterval)
	defer ticker.Stop()

	// Run initial sweep on startup
	slog.Info("Running initial scheduled transaction sweep...")
	if count, err := processor.ProcessDue(ctx, time.Now()); err != nil {
		slog.Error("Initial sweep failed", "error", err)
	} else {
		slog.Info("Initial sweep complete", "transactions_posted", count)
	}

	// Periodic sweep: post every due scheduled transaction whose account
	// can cover it. Transactions that cannot be covered stay scheduled and
	// are retried on the next tick.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				count, err := processor.ProcessDue(ctx, now)
				if err != nil {
					slog.Error("Scheduled sweep failed", "error", err)
				} else if count > 0 {
					slog.Info("Scheduled sweep complete",
						"transactions_posted", count,
						"next_check", now.Add(cfg.SettleInterval).Format("15:04:05"))
				}
			}
		}
	}()

	// Daily report loop: once per day at the configured hour, tell each
	// user what scheduled transactions are due before midnight.
	go func() {
		for {
			next := nextReportTime(time.Now(), cfg.DailyReportHour)
			select {
			case <-ctx.Done():
				return
			case now := <-time.After(time.Until(next)):
				count, err := reporter.SendReports(ctx, now)
				if err != nil {
					slog.Error("Daily report run failed", "error", err)
				} else {
					slog.Info("Daily report run complete", "reports_sent", count)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("Shutdown signal received", "signal", sig.String())
	cancel()
	slog.Info("Settler-worker shutdown complete")
}

// nextReportTime returns the next occurrence of the report hour strictly
// after now.
func nextReportTime(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
