package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"wallet/internal/core"
	"wallet/internal/notify"
	"wallet/internal/storage"
)

// SplitService handles shared-expense settlement: fair-share computation,
// payment application and split lifecycle.
type SplitService struct {
	storage *storage.SQLiteRepository
	ledger  *LedgerService
	events  EventPublisher
}

func NewSplitService(storage *storage.SQLiteRepository, ledger *LedgerService, events EventPublisher) *SplitService {
	return &SplitService{storage: storage, ledger: ledger, events: events}
}

// Create persists a split and records the paying friend's fronting
// transaction for the full total on their Cash account. The fronting
// transaction goes through the regular create path, so it is subject to the
// payer's budget and balance checks; if it fails, the split is rolled back
// with a compensating delete and the error surfaces to the caller.
func (s *SplitService) Create(ctx context.Context, split core.SplitTransaction) (core.SplitTransaction, error) {
	if err := split.Validate(); err != nil {
		return core.SplitTransaction{}, err
	}

	payerAccount, err := s.storage.GetAccountByTitle(ctx, split.PayingFriendID, core.DefaultAccountTitle)
	if err != nil {
		return core.SplitTransaction{}, err
	}

	if err := s.storage.CreateSplit(ctx, &split); err != nil {
		return core.SplitTransaction{}, fmt.Errorf("create split: %w", err)
	}

	fronting := core.Transaction{
		UserID:    split.PayingFriendID,
		AccountID: payerAccount.ID,
		Title:     split.Title,
		Category:  split.Category,
		Amount:    split.TotalAmount,
		SplitID:   split.ID,
	}
	if _, err := s.ledger.RecordTransaction(ctx, fronting); err != nil {
		if delErr := s.storage.DeleteSplit(ctx, split.ID); delErr != nil {
			slog.ErrorContext(ctx, "Compensating split delete failed",
				"split_id", split.ID, "error", delErr)
		}
		return core.SplitTransaction{}, err
	}

	s.publish(ctx, notify.SplitIncludeEvent{Split: splitInfo(split)})

	return split, nil
}

func (s *SplitService) Get(ctx context.Context, id int64) (core.SplitTransaction, error) {
	return s.storage.GetSplit(ctx, id)
}

func (s *SplitService) Delete(ctx context.Context, id int64) error {
	return s.storage.DeleteSplit(ctx, id)
}

func (s *SplitService) ListForUser(ctx context.Context, userID int64) ([]core.SplitTransaction, error) {
	return s.storage.ListSplitsForUser(ctx, userID)
}

// PayableAmount computes a user's standing on a split. Payments already
// recorded toward the split count against the floor-divided required share.
func (s *SplitService) PayableAmount(ctx context.Context, userID int64, split core.SplitTransaction) (core.ShareStatus, error) {
	paid, err := s.storage.PaidTowardSplit(ctx, userID, split.ID)
	if err != nil {
		return core.ShareStatus{}, err
	}
	return core.Share(split.TotalAmount, len(split.Friends), paid), nil
}

// Pay records a participant's payment toward a split as a debit on their
// Cash account paired with an income credit on the paying friend's Cash
// account. The pair is all-or-nothing: if either leg fails validation,
// neither is committed.
func (s *SplitService) Pay(ctx context.Context, userID, splitID, amount int64) error {
	if amount < 0 {
		return core.ErrNegativeAmount
	}

	split, err := s.storage.GetSplit(ctx, splitID)
	if err != nil {
		return err
	}

	status, err := s.PayableAmount(ctx, userID, split)
	if err != nil {
		return err
	}
	if amount > status.Payable {
		return core.ErrOverpayment
	}

	payerAccount, err := s.storage.GetAccountByTitle(ctx, userID, core.DefaultAccountTitle)
	if err != nil {
		return err
	}
	recipientAccount, err := s.storage.GetAccountByTitle(ctx, split.PayingFriendID, core.DefaultAccountTitle)
	if err != nil {
		return err
	}

	debit := core.Transaction{
		UserID:    userID,
		AccountID: payerAccount.ID,
		Title:     fmt.Sprintf("Payment for %s", split.Title),
		Category:  split.Category,
		Amount:    amount,
		SplitID:   split.ID,
	}
	credit := core.Transaction{
		UserID:    split.PayingFriendID,
		AccountID: recipientAccount.ID,
		Title:     fmt.Sprintf("Received payment for %s", split.Title),
		Category:  core.Income,
		Amount:    amount,
		SplitID:   split.ID,
	}
	if err := s.ledger.applyPair(ctx, debit, credit); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Split payment recorded",
		"split_id", split.ID,
		"payer_id", userID,
		"amount", amount,
		"remaining", status.Payable-amount)

	s.publish(ctx, notify.SplitPaymentEvent{
		Split:      splitInfo(split),
		PayerID:    userID,
		Payment:    amount,
		PaidBefore: status.Paid,
		Required:   status.Required,
	})

	return nil
}

// SplitDue pairs a split with one user's outstanding share.
type SplitDue struct {
	Split  core.SplitTransaction
	Status core.ShareStatus
}

// MaxPayableSplits returns the user's splits with the largest outstanding
// payable amounts, descending; ties break on ascending split id so the
// ordering is deterministic.
func (s *SplitService) MaxPayableSplits(ctx context.Context, userID int64, limit int) ([]SplitDue, error) {
	if limit <= 0 {
		limit = 5
	}

	splits, err := s.storage.ListSplitsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	due := make([]SplitDue, 0, len(splits))
	for _, split := range splits {
		status, err := s.PayableAmount(ctx, userID, split)
		if err != nil {
			return nil, err
		}
		due = append(due, SplitDue{Split: split, Status: status})
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Status.Payable != due[j].Status.Payable {
			return due[i].Status.Payable > due[j].Status.Payable
		}
		return due[i].Split.ID < due[j].Split.ID
	})

	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *SplitService) publish(ctx context.Context, event notify.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish notification event",
			"type", event.EventType(), "error", err)
	}
}

func splitInfo(s core.SplitTransaction) notify.SplitInfo {
	return notify.SplitInfo{
		ID:             s.ID,
		Title:          s.Title,
		Category:       s.Category.String(),
		TotalAmount:    s.TotalAmount,
		CreatorID:      s.CreatorID,
		PayingFriendID: s.PayingFriendID,
		Friends:        s.Friends,
	}
}
