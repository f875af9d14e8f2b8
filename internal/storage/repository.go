// Package storage persists the ledger to SQLite. Balance mutations that
// pair a transaction write with an account update run inside a single
// database transaction so a failed leg never leaves a partial write.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wallet/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- cash accounts ---

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *core.CashAccount) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cash_accounts (user_id, title, balance, spend_limit, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.UserID, a.Title, a.Balance, a.Limit, a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert cash account: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("cash account id: %w", err)
	}

	slog.InfoContext(ctx, "Cash account created",
		"id", a.ID,
		"user_id", a.UserID,
		"title", a.Title)

	return nil
}

const accountColumns = "id, user_id, title, balance, spend_limit, created_at"

func scanAccount(row interface{ Scan(...any) error }) (core.CashAccount, error) {
	var a core.CashAccount
	var createdAt int64
	if err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Balance, &a.Limit, &createdAt); err != nil {
		return core.CashAccount{}, err
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.CashAccount, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM cash_accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashAccount{}, fmt.Errorf("cash account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.CashAccount{}, fmt.Errorf("get cash account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) GetAccountByTitle(ctx context.Context, userID int64, title string) (core.CashAccount, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM cash_accounts WHERE user_id = ? AND title = ?",
		userID, title)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashAccount{}, fmt.Errorf("cash account %q of user %d: %w", title, userID, ErrNotFound)
	}
	if err != nil {
		return core.CashAccount{}, fmt.Errorf("get cash account by title: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID int64) ([]core.CashAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM cash_accounts WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("list cash accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.CashAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cash account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cash accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount persists title and budget limit. Balances only move through
// the atomic transaction writes below.
func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.CashAccount) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cash_accounts SET title = ?, spend_limit = ? WHERE id = ?",
		a.Title, a.Limit, a.ID)
	if err != nil {
		return fmt.Errorf("update cash account: %w", err)
	}
	return requireRow(res, "cash account", a.ID)
}

// DeleteAccount removes the account; dependent transactions go with it
// through the schema's cascade.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cash_accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete cash account: %w", err)
	}
	return requireRow(res, "cash account", id)
}

// AccountExpenses returns the aggregate of posted non-income amounts on the
// account. Budget-limit checks run against this figure, not the balance.
func (r *SQLiteRepository) AccountExpenses(ctx context.Context, accountID int64) (int64, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM transactions
		 WHERE account_id = ? AND scheduled = 0 AND category != ?`,
		accountID, core.Income).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum account expenses: %w", err)
	}
	return total.Int64, nil
}

// --- transactions ---

const transactionColumns = "id, user_id, account_id, title, category, amount, transaction_time, scheduled, split_id"

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	var ts int64
	var splitID sql.NullInt64
	if err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Title, &t.Category,
		&t.Amount, &ts, &t.Scheduled, &splitID); err != nil {
		return core.Transaction{}, err
	}
	t.Time = time.Unix(ts, 0).UTC()
	t.SplitID = splitID.Int64
	return t, nil
}

func splitIDValue(t core.Transaction) any {
	if t.SplitID == 0 {
		return nil
	}
	return t.SplitID
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, t *core.Transaction) error {
	if t.Time.IsZero() {
		t.Time = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, account_id, title, category, amount, transaction_time, scheduled, split_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.AccountID, t.Title, t.Category, t.Amount, t.Time.Unix(), t.Scheduled, splitIDValue(*t),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	return nil
}

// CreateTransaction inserts a transaction without touching any balance.
// This is the scheduled-transaction path; posted transactions go through
// ApplyTransaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransactionTx(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	UserID    int64
	AccountID int64
	SplitID   int64
	Category  *core.Category
	Scheduled *bool
	From      time.Time
	To        time.Time
	Limit     int
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.AccountID != 0 {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.SplitID != 0 {
		where = append(where, "split_id = ?")
		args = append(args, f.SplitID)
	}
	if f.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *f.Category)
	}
	if f.Scheduled != nil {
		where = append(where, "scheduled = ?")
		args = append(args, *f.Scheduled)
	}
	if !f.From.IsZero() {
		where = append(where, "transaction_time >= ?")
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		where = append(where, "transaction_time <= ?")
		args = append(args, f.To.Unix())
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY transaction_time DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// DeleteTransaction removes a transaction row without balance bookkeeping.
// Deleting a posted transaction goes through RemoveTransaction instead.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, "transaction", id)
}

// DueScheduled returns every scheduled transaction whose time has passed,
// oldest first.
func (r *SQLiteRepository) DueScheduled(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	scheduled := true
	return r.ListTransactionsAscending(ctx, TransactionFilter{Scheduled: &scheduled, To: now})
}

// ListTransactionsAscending is ListTransactions in sweep order: the settler
// posts the longest-overdue transactions first.
func (r *SQLiteRepository) ListTransactionsAscending(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	txs, err := r.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	return txs, nil
}

// UsersWithDueScheduled returns the distinct owners of scheduled
// transactions due by the given time, for the daily report sweep.
func (r *SQLiteRepository) UsersWithDueScheduled(ctx context.Context, until time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM transactions
		 WHERE scheduled = 1 AND transaction_time <= ? ORDER BY user_id`,
		until.Unix())
	if err != nil {
		return nil, fmt.Errorf("users with due scheduled: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return ids, nil
}

// PaidTowardSplit sums the non-income transactions a user has recorded
// against a split: their payments, excluding anything they received.
func (r *SQLiteRepository) PaidTowardSplit(ctx context.Context, userID, splitID int64) (int64, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM transactions
		 WHERE user_id = ? AND split_id = ? AND category != ?`,
		userID, splitID, core.Income).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum split payments: %w", err)
	}
	return total.Int64, nil
}

// CategoryTotals returns per-category posted expense totals for a user's
// account within a month.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID, accountID int64, year int, month time.Month) (map[core.Category]int64, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount) FROM transactions
		 WHERE user_id = ? AND account_id = ? AND scheduled = 0 AND category != ?
		   AND transaction_time >= ? AND transaction_time < ?
		 GROUP BY category`,
		userID, accountID, core.Income, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[core.Category]int64)
	for rows.Next() {
		var c core.Category
		var sum int64
		if err := rows.Scan(&c, &sum); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals[c] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}

// --- atomic ledger writes ---

func setBalanceTx(ctx context.Context, tx *sql.Tx, accountID, balance int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE cash_accounts SET balance = ? WHERE id = ?", balance, accountID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return requireRow(res, "cash account", accountID)
}

// ApplyTransaction inserts a posted transaction and moves the account to
// newBalance in one database transaction.
func (r *SQLiteRepository) ApplyTransaction(ctx context.Context, t *core.Transaction, newBalance int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransactionTx(ctx, tx, t); err != nil {
		return err
	}
	if err := setBalanceTx(ctx, tx, t.AccountID, newBalance); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyTransactionPair commits two posted transactions and both balance
// updates atomically. Split payments use this so the debit and the credit
// are all-or-nothing.
func (r *SQLiteRepository) ApplyTransactionPair(ctx context.Context, a, b *core.Transaction, balanceA, balanceB int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransactionTx(ctx, tx, a); err != nil {
		return err
	}
	if err := insertTransactionTx(ctx, tx, b); err != nil {
		return err
	}
	if err := setBalanceTx(ctx, tx, a.AccountID, balanceA); err != nil {
		return err
	}
	if err := setBalanceTx(ctx, tx, b.AccountID, balanceB); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceTransaction rewrites a transaction row and moves its account to
// newBalance atomically.
func (r *SQLiteRepository) ReplaceTransaction(ctx context.Context, t core.Transaction, newBalance int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions
		 SET title = ?, category = ?, amount = ?, transaction_time = ?, split_id = ?
		 WHERE id = ?`,
		t.Title, t.Category, t.Amount, t.Time.Unix(), splitIDValue(t), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if err := requireRow(res, "transaction", t.ID); err != nil {
		return err
	}
	if err := setBalanceTx(ctx, tx, t.AccountID, newBalance); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveTransaction deletes a posted transaction and reverses its balance
// effect atomically.
func (r *SQLiteRepository) RemoveTransaction(ctx context.Context, id, accountID, newBalance int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := requireRow(res, "transaction", id); err != nil {
		return err
	}
	if err := setBalanceTx(ctx, tx, accountID, newBalance); err != nil {
		return err
	}
	return tx.Commit()
}

// PostScheduled flips a scheduled transaction to posted and applies the new
// balance atomically. The WHERE scheduled = 1 guard makes posting exactly
// once: a concurrent sweep that lost the race sees ErrNotFound.
func (r *SQLiteRepository) PostScheduled(ctx context.Context, id, accountID, newBalance int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE transactions SET scheduled = 0 WHERE id = ? AND scheduled = 1", id)
	if err != nil {
		return fmt.Errorf("post scheduled transaction: %w", err)
	}
	if err := requireRow(res, "scheduled transaction", id); err != nil {
		return err
	}
	if err := setBalanceTx(ctx, tx, accountID, newBalance); err != nil {
		return err
	}
	return tx.Commit()
}

// --- split transactions ---

func (r *SQLiteRepository) CreateSplit(ctx context.Context, s *core.SplitTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO split_transactions (title, category, total_amount, creator_id, paying_friend_id)
		 VALUES (?, ?, ?, ?, ?)`,
		s.Title, s.Category, s.TotalAmount, s.CreatorID, s.PayingFriendID)
	if err != nil {
		return fmt.Errorf("insert split: %w", err)
	}
	s.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("split id: %w", err)
	}

	for _, userID := range s.Friends {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO split_participants (split_id, user_id) VALUES (?, ?)",
			s.ID, userID); err != nil {
			return fmt.Errorf("insert split participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit split: %w", err)
	}

	slog.InfoContext(ctx, "Split transaction created",
		"id", s.ID,
		"title", s.Title,
		"total_amount", s.TotalAmount,
		"friends", len(s.Friends))

	return nil
}

func (r *SQLiteRepository) GetSplit(ctx context.Context, id int64) (core.SplitTransaction, error) {
	var s core.SplitTransaction
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, category, total_amount, creator_id, paying_friend_id
		 FROM split_transactions WHERE id = ?`, id).
		Scan(&s.ID, &s.Title, &s.Category, &s.TotalAmount, &s.CreatorID, &s.PayingFriendID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SplitTransaction{}, fmt.Errorf("split %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.SplitTransaction{}, fmt.Errorf("get split: %w", err)
	}

	s.Friends, err = r.splitParticipants(ctx, id)
	if err != nil {
		return core.SplitTransaction{}, err
	}
	return s, nil
}

func (r *SQLiteRepository) splitParticipants(ctx context.Context, splitID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM split_participants WHERE split_id = ? ORDER BY user_id", splitID)
	if err != nil {
		return nil, fmt.Errorf("get split participants: %w", err)
	}
	defer rows.Close()

	var friends []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan split participant: %w", err)
		}
		friends = append(friends, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate split participants: %w", err)
	}
	return friends, nil
}

// DeleteSplit removes a split; its participant rows and linked transactions
// cascade away with it.
func (r *SQLiteRepository) DeleteSplit(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM split_transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete split: %w", err)
	}
	return requireRow(res, "split", id)
}

// ListSplitsForUser returns every split the user participates in as
// creator, paying friend or involved friend, in id order.
func (r *SQLiteRepository) ListSplitsForUser(ctx context.Context, userID int64) ([]core.SplitTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT s.id FROM split_transactions s
		 LEFT JOIN split_participants p ON p.split_id = s.id
		 WHERE s.creator_id = ? OR s.paying_friend_id = ? OR p.user_id = ?
		 ORDER BY s.id`,
		userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list splits: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan split id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate split ids: %w", err)
	}

	splits := make([]core.SplitTransaction, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetSplit(ctx, id)
		if err != nil {
			return nil, err
		}
		splits = append(splits, s)
	}
	return splits, nil
}

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
