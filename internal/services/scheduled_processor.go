package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wallet/internal/core"
	"wallet/internal/notify"
	"wallet/internal/storage"
)

// ScheduledProcessor is the settler sweep: it posts due scheduled
// transactions. An expense that cannot be covered stays scheduled and is
// retried on every following sweep, with no backoff and no retry cap; a
// failure on one transaction never blocks the rest of the sweep.
type ScheduledProcessor struct {
	storage *storage.SQLiteRepository
	ledger  *LedgerService
	events  EventPublisher
}

func NewScheduledProcessor(storage *storage.SQLiteRepository, ledger *LedgerService, events EventPublisher) *ScheduledProcessor {
	return &ScheduledProcessor{storage: storage, ledger: ledger, events: events}
}

// ProcessDue posts every scheduled transaction whose time has passed and
// returns how many were posted.
func (p *ScheduledProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.storage.DueScheduled(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("get due scheduled transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing scheduled transactions",
		"due", len(due),
		"sweep_time", now.Format(time.RFC3339))

	posted := 0
	for _, t := range due {
		account, err := p.ledger.PostScheduled(ctx, t)
		if errors.Is(err, core.ErrInsufficientBalance) {
			slog.WarnContext(ctx, "Scheduled transaction not covered, will retry",
				"id", t.ID,
				"account_id", t.AccountID,
				"amount", t.Amount,
				"balance", account.Balance)
			p.publish(ctx, scheduledEvent(t, account, notify.StatusFailed))
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to post scheduled transaction",
				"id", t.ID, "error", err)
			continue
		}

		posted++
		slog.InfoContext(ctx, "Scheduled transaction posted",
			"id", t.ID,
			"account_id", t.AccountID,
			"amount", t.Amount,
			"balance", account.Balance)
		p.publish(ctx, scheduledEvent(t, account, notify.StatusSucceeded))
	}

	slog.InfoContext(ctx, "Scheduled transaction sweep complete",
		"posted", posted,
		"total_due", len(due))

	return posted, nil
}

func (p *ScheduledProcessor) publish(ctx context.Context, event notify.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish notification event",
			"type", event.EventType(), "error", err)
	}
}

func scheduledEvent(t core.Transaction, account core.CashAccount, status notify.Status) notify.ScheduledTransactionEvent {
	return notify.ScheduledTransactionEvent{
		Transaction: transactionInfo(t, account.Balance),
		Status:      status,
	}
}

func transactionInfo(t core.Transaction, balance int64) notify.TransactionInfo {
	return notify.TransactionInfo{
		ID:             t.ID,
		Title:          t.Title,
		Category:       t.Category.String(),
		Amount:         t.Amount,
		UserID:         t.UserID,
		Time:           t.Time,
		AccountBalance: balance,
	}
}
