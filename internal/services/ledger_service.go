// Package services orchestrates the ledger: balance-consistent transaction
// writes, split-expense settlement and the scheduled-transaction sweep.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wallet/internal/core"
	"wallet/internal/notify"
	"wallet/internal/storage"
)

// EventPublisher hands notification events to the message bus. Publishing
// is fire-and-forget: a bus failure never fails a ledger operation.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event notify.Event) error
}

// LedgerService keeps cash account balances consistent with the set of
// posted transactions under create, update and delete.
type LedgerService struct {
	storage *storage.SQLiteRepository
	locks   *accountLocks
}

func NewLedgerService(storage *storage.SQLiteRepository) *LedgerService {
	return &LedgerService{
		storage: storage,
		locks:   newAccountLocks(),
	}
}

// CreateAccount opens a cash account with a starting balance of zero.
func (s *LedgerService) CreateAccount(ctx context.Context, userID int64, title string, limit int64) (core.CashAccount, error) {
	account := core.CashAccount{UserID: userID, Title: title, Limit: limit}
	if err := account.Validate(); err != nil {
		return core.CashAccount{}, err
	}
	if err := s.storage.CreateAccount(ctx, &account); err != nil {
		return core.CashAccount{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// CreateDefaultCashAccount opens the "Cash" account a user starts with.
// The user-registration workflow calls this explicitly; account creation is
// not a hidden side effect of anything else.
func (s *LedgerService) CreateDefaultCashAccount(ctx context.Context, userID int64) (core.CashAccount, error) {
	return s.CreateAccount(ctx, userID, core.DefaultAccountTitle, 0)
}

func (s *LedgerService) GetAccount(ctx context.Context, id int64) (core.CashAccount, error) {
	return s.storage.GetAccount(ctx, id)
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID int64) ([]core.CashAccount, error) {
	return s.storage.ListAccounts(ctx, userID)
}

// UpdateAccount changes title and budget limit. The balance is owned by the
// transaction paths and cannot be set directly.
func (s *LedgerService) UpdateAccount(ctx context.Context, account core.CashAccount) error {
	if err := account.Validate(); err != nil {
		return err
	}
	return s.storage.UpdateAccount(ctx, account)
}

func (s *LedgerService) DeleteAccount(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.storage.DeleteAccount(ctx, id)
}

// AccountExpenses is the running total of posted non-income amounts, the
// figure budget limits are enforced against.
func (s *LedgerService) AccountExpenses(ctx context.Context, accountID int64) (int64, error) {
	return s.storage.AccountExpenses(ctx, accountID)
}

// RecordTransaction validates and persists a transaction. Posted
// transactions move the account balance atomically; scheduled ones are
// stored untouched until the settler sweep posts them.
func (s *LedgerService) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.Time.IsZero() {
		t.Time = time.Now().UTC()
	}

	if t.Scheduled {
		if !t.Time.After(time.Now()) {
			return core.Transaction{}, core.ErrInvalidSchedule
		}
		if err := s.storage.CreateTransaction(ctx, &t); err != nil {
			return core.Transaction{}, fmt.Errorf("create scheduled transaction: %w", err)
		}
		slog.InfoContext(ctx, "Transaction scheduled",
			"id", t.ID,
			"account_id", t.AccountID,
			"amount", t.Amount,
			"due", t.Time)
		return t, nil
	}

	unlock := s.locks.Lock(t.AccountID)
	defer unlock()

	account, err := s.storage.GetAccount(ctx, t.AccountID)
	if err != nil {
		return core.Transaction{}, err
	}
	expenses, err := s.storage.AccountExpenses(ctx, t.AccountID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := core.ValidateCreate(account, expenses, t.Amount, t.Category); err != nil {
		return core.Transaction{}, err
	}

	newBalance := core.NewAccountBalance(account.Balance, t.Amount, t.Category)
	if err := s.storage.ApplyTransaction(ctx, &t, newBalance); err != nil {
		return core.Transaction{}, fmt.Errorf("apply transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction posted",
		"id", t.ID,
		"account_id", t.AccountID,
		"category", t.Category.String(),
		"amount", t.Amount,
		"balance", newBalance)

	return t, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, f)
}

// UpdateTransaction replaces amount, category, title and time of an
// existing transaction. For posted transactions the old effect is reversed
// and the new one validated against the re-credited balance, so an edit is
// never rejected just because the old amount already left the account.
// Transactions cannot move between accounts.
func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	old, err := s.storage.GetTransaction(ctx, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	t.UserID = old.UserID
	t.AccountID = old.AccountID
	t.Scheduled = old.Scheduled
	t.SplitID = old.SplitID
	if t.Time.IsZero() {
		t.Time = old.Time
	}

	unlock := s.locks.Lock(t.AccountID)
	defer unlock()

	account, err := s.storage.GetAccount(ctx, t.AccountID)
	if err != nil {
		return core.Transaction{}, err
	}

	if old.Scheduled {
		if !t.Time.After(time.Now()) {
			return core.Transaction{}, core.ErrInvalidSchedule
		}
		// Not posted yet, so the balance stays where it is.
		if err := s.storage.ReplaceTransaction(ctx, t, account.Balance); err != nil {
			return core.Transaction{}, fmt.Errorf("update scheduled transaction: %w", err)
		}
		return t, nil
	}

	expenses, err := s.storage.AccountExpenses(ctx, t.AccountID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := core.ValidateUpdate(account, expenses, old.Amount, old.Category, t.Amount, t.Category); err != nil {
		return core.Transaction{}, err
	}

	reversed := core.ReverseEffect(account.Balance, old.Amount, old.Category)
	newBalance := core.NewAccountBalance(reversed, t.Amount, t.Category)
	if err := s.storage.ReplaceTransaction(ctx, t, newBalance); err != nil {
		return core.Transaction{}, fmt.Errorf("replace transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", t.ID,
		"account_id", t.AccountID,
		"old_amount", old.Amount,
		"new_amount", t.Amount,
		"balance", newBalance)

	return t, nil
}

// DeleteTransaction removes a transaction. Posted effects are reversed
// unconditionally; there is no validation on the way out.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	t, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	if t.Scheduled {
		return s.storage.DeleteTransaction(ctx, id)
	}

	unlock := s.locks.Lock(t.AccountID)
	defer unlock()

	account, err := s.storage.GetAccount(ctx, t.AccountID)
	if err != nil {
		return err
	}
	newBalance := core.ReverseEffect(account.Balance, t.Amount, t.Category)
	if err := s.storage.RemoveTransaction(ctx, id, t.AccountID, newBalance); err != nil {
		return fmt.Errorf("remove transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"id", id,
		"account_id", t.AccountID,
		"balance", newBalance)

	return nil
}

// PostScheduled attempts to post one due scheduled transaction. Income
// always posts; an expense larger than the current balance fails with
// ErrInsufficientBalance and the transaction stays scheduled for the next
// sweep. Returns the account after posting.
func (s *LedgerService) PostScheduled(ctx context.Context, t core.Transaction) (core.CashAccount, error) {
	unlock := s.locks.Lock(t.AccountID)
	defer unlock()

	account, err := s.storage.GetAccount(ctx, t.AccountID)
	if err != nil {
		return core.CashAccount{}, err
	}
	if t.Category != core.Income && t.Amount > account.Balance {
		return account, core.ErrInsufficientBalance
	}

	newBalance := core.NewAccountBalance(account.Balance, t.Amount, t.Category)
	if err := s.storage.PostScheduled(ctx, t.ID, t.AccountID, newBalance); err != nil {
		return core.CashAccount{}, fmt.Errorf("post scheduled transaction: %w", err)
	}
	account.Balance = newBalance
	return account, nil
}

// applyPair validates and commits a debit/credit transaction pair
// atomically under both account locks. Used by split payments.
func (s *LedgerService) applyPair(ctx context.Context, debit, credit core.Transaction) error {
	if err := debit.Validate(); err != nil {
		return err
	}
	if err := credit.Validate(); err != nil {
		return err
	}

	unlock := s.locks.LockPair(debit.AccountID, credit.AccountID)
	defer unlock()

	debitAccount, err := s.storage.GetAccount(ctx, debit.AccountID)
	if err != nil {
		return err
	}
	creditAccount, err := s.storage.GetAccount(ctx, credit.AccountID)
	if err != nil {
		return err
	}

	expenses, err := s.storage.AccountExpenses(ctx, debit.AccountID)
	if err != nil {
		return err
	}
	if err := core.ValidateCreate(debitAccount, expenses, debit.Amount, debit.Category); err != nil {
		return err
	}
	if err := core.ValidateCreate(creditAccount, 0, credit.Amount, credit.Category); err != nil {
		return err
	}

	debitBalance := core.NewAccountBalance(debitAccount.Balance, debit.Amount, debit.Category)
	if credit.AccountID == debit.AccountID {
		// Both legs land on one account; the credit starts from the
		// balance the debit leaves behind.
		creditAccount.Balance = debitBalance
	}
	creditBalance := core.NewAccountBalance(creditAccount.Balance, credit.Amount, credit.Category)
	if err := s.storage.ApplyTransactionPair(ctx, &debit, &credit, debitBalance, creditBalance); err != nil {
		return fmt.Errorf("apply transaction pair: %w", err)
	}
	return nil
}

// CategoryTotals reports posted expense totals per category for one account
// and month.
func (s *LedgerService) CategoryTotals(ctx context.Context, userID, accountID int64, year int, month time.Month) (map[core.Category]int64, error) {
	return s.storage.CategoryTotals(ctx, userID, accountID, year, month)
}
