package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wallet/internal/notify"
	"wallet/internal/storage"
)

// reportBatchSize caps how many due transactions one digest lists.
const reportBatchSize = 10

// DailyReporter emits one digest event per user listing their scheduled
// transactions due by the end of the day.
type DailyReporter struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
}

func NewDailyReporter(storage *storage.SQLiteRepository, events EventPublisher) *DailyReporter {
	return &DailyReporter{storage: storage, events: events}
}

// SendReports publishes a DailyReportEvent for every user with scheduled
// transactions due today and returns the number of reports sent.
func (r *DailyReporter) SendReports(ctx context.Context, now time.Time) (int, error) {
	year, month, day := now.Date()
	endOfDay := time.Date(year, month, day, 23, 59, 59, 0, now.Location())

	userIDs, err := r.storage.UsersWithDueScheduled(ctx, endOfDay)
	if err != nil {
		return 0, fmt.Errorf("users with due scheduled: %w", err)
	}

	sent := 0
	for _, userID := range userIDs {
		scheduled := true
		txs, err := r.storage.ListTransactions(ctx, storage.TransactionFilter{
			UserID:    userID,
			Scheduled: &scheduled,
			To:        endOfDay,
			Limit:     reportBatchSize,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list due transactions for report",
				"user_id", userID, "error", err)
			continue
		}
		if len(txs) == 0 {
			continue
		}

		event := notify.DailyReportEvent{
			UserID: userID,
			Date:   now.Format("2006-01-02"),
		}
		for _, t := range txs {
			event.Transactions = append(event.Transactions, transactionInfo(t, 0))
		}

		if r.events != nil {
			if err := r.events.PublishEvent(ctx, event); err != nil {
				slog.ErrorContext(ctx, "Failed to publish daily report",
					"user_id", userID, "error", err)
				continue
			}
		}
		sent++
	}

	slog.InfoContext(ctx, "Daily scheduled reports sent",
		"reports", sent,
		"date", now.Format("2006-01-02"))

	return sent, nil
}
