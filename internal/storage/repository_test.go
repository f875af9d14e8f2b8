package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"wallet/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreateAccount(t *testing.T, repo *SQLiteRepository, userID int64, title string, balance, limit int64) core.CashAccount {
	t.Helper()
	a := core.CashAccount{UserID: userID, Title: title, Balance: balance, Limit: limit}
	if err := repo.CreateAccount(context.Background(), &a); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return a
}

func TestSQLiteRepository_Accounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("CreateAccount generates ID", func(t *testing.T) {
		a := mustCreateAccount(t, repo, 1, "Cash", 100, 0)
		if a.ID == 0 {
			t.Error("Expected account ID to be generated")
		}
		if a.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("GetAccount retrieves fields", func(t *testing.T) {
		created := mustCreateAccount(t, repo, 2, "Savings", 500, 1000)

		got, err := repo.GetAccount(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetAccount failed: %v", err)
		}
		if got.UserID != 2 || got.Title != "Savings" || got.Balance != 500 || got.Limit != 1000 {
			t.Errorf("GetAccount returned %+v", got)
		}
	})

	t.Run("GetAccount missing returns ErrNotFound", func(t *testing.T) {
		_, err := repo.GetAccount(ctx, 99999)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetAccount error = %v, want ErrNotFound", err)
		}
	})

	t.Run("GetAccountByTitle", func(t *testing.T) {
		created := mustCreateAccount(t, repo, 3, "Cash", 50, 0)

		got, err := repo.GetAccountByTitle(ctx, 3, "Cash")
		if err != nil {
			t.Fatalf("GetAccountByTitle failed: %v", err)
		}
		if got.ID != created.ID {
			t.Errorf("GetAccountByTitle ID = %d, want %d", got.ID, created.ID)
		}

		if _, err := repo.GetAccountByTitle(ctx, 3, "Missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetAccountByTitle error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListAccounts scoped to user", func(t *testing.T) {
		mustCreateAccount(t, repo, 4, "Cash", 0, 0)
		mustCreateAccount(t, repo, 4, "Savings", 0, 0)
		mustCreateAccount(t, repo, 5, "Cash", 0, 0)

		accounts, err := repo.ListAccounts(ctx, 4)
		if err != nil {
			t.Fatalf("ListAccounts failed: %v", err)
		}
		if len(accounts) != 2 {
			t.Errorf("ListAccounts returned %d accounts, want 2", len(accounts))
		}
	})

	t.Run("UpdateAccount changes title and limit only", func(t *testing.T) {
		a := mustCreateAccount(t, repo, 6, "Cash", 100, 0)

		a.Title = "Wallet"
		a.Limit = 300
		a.Balance = 9999 // must not be persisted through UpdateAccount
		if err := repo.UpdateAccount(ctx, a); err != nil {
			t.Fatalf("UpdateAccount failed: %v", err)
		}

		got, err := repo.GetAccount(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAccount failed: %v", err)
		}
		if got.Title != "Wallet" || got.Limit != 300 {
			t.Errorf("UpdateAccount result %+v", got)
		}
		if got.Balance != 100 {
			t.Errorf("UpdateAccount moved balance to %d, want 100", got.Balance)
		}
	})

	t.Run("DeleteAccount cascades to transactions", func(t *testing.T) {
		a := mustCreateAccount(t, repo, 7, "Cash", 100, 0)
		tx := core.Transaction{UserID: 7, AccountID: a.ID, Title: "coffee", Category: core.Drink, Amount: 5, Time: time.Now()}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}

		if err := repo.DeleteAccount(ctx, a.ID); err != nil {
			t.Fatalf("DeleteAccount failed: %v", err)
		}
		if _, err := repo.GetTransaction(ctx, tx.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetTransaction after cascade error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteRepository_AccountExpenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := mustCreateAccount(t, repo, 1, "Cash", 1000, 0)

	insert := func(category core.Category, amount int64, scheduled bool) {
		t.Helper()
		tx := core.Transaction{UserID: 1, AccountID: a.ID, Title: "t", Category: category, Amount: amount, Time: time.Now(), Scheduled: scheduled}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}

	insert(core.Food, 30, false)
	insert(core.Drink, 20, false)
	insert(core.Income, 500, false)  // income never counts as expense
	insert(core.Travel, 100, true)   // scheduled not posted yet

	total, err := repo.AccountExpenses(ctx, a.ID)
	if err != nil {
		t.Fatalf("AccountExpenses failed: %v", err)
	}
	if total != 50 {
		t.Errorf("AccountExpenses = %d, want 50", total)
	}
}

func TestSQLiteRepository_ListTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := mustCreateAccount(t, repo, 1, "Cash", 1000, 0)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tx := core.Transaction{
			UserID:    1,
			AccountID: a.ID,
			Title:     "t",
			Category:  core.Food,
			Amount:    int64(10 * (i + 1)),
			Time:      base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}
	scheduled := core.Transaction{UserID: 1, AccountID: a.ID, Title: "later", Category: core.Travel, Amount: 70, Time: base.Add(48 * time.Hour), Scheduled: true}
	if err := repo.CreateTransaction(ctx, &scheduled); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	t.Run("newest first", func(t *testing.T) {
		txs, err := repo.ListTransactions(ctx, TransactionFilter{UserID: 1})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txs) != 6 {
			t.Fatalf("ListTransactions returned %d, want 6", len(txs))
		}
		for i := 1; i < len(txs); i++ {
			if txs[i].Time.After(txs[i-1].Time) {
				t.Errorf("transactions not ordered newest first at index %d", i)
			}
		}
	})

	t.Run("scheduled filter", func(t *testing.T) {
		isScheduled := true
		txs, err := repo.ListTransactions(ctx, TransactionFilter{UserID: 1, Scheduled: &isScheduled})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txs) != 1 || txs[0].Title != "later" {
			t.Errorf("scheduled filter returned %+v", txs)
		}
	})

	t.Run("time window and limit", func(t *testing.T) {
		txs, err := repo.ListTransactions(ctx, TransactionFilter{
			UserID: 1,
			From:   base.Add(time.Hour),
			To:     base.Add(3 * time.Hour),
			Limit:  2,
		})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txs) != 2 {
			t.Errorf("windowed list returned %d, want 2", len(txs))
		}
	})

	t.Run("category filter", func(t *testing.T) {
		travel := core.Travel
		txs, err := repo.ListTransactions(ctx, TransactionFilter{UserID: 1, Category: &travel})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("category filter returned %d, want 1", len(txs))
		}
	})

	t.Run("DueScheduled oldest first", func(t *testing.T) {
		due, err := repo.DueScheduled(ctx, base.Add(72*time.Hour))
		if err != nil {
			t.Fatalf("DueScheduled failed: %v", err)
		}
		if len(due) != 1 || due[0].ID != scheduled.ID {
			t.Errorf("DueScheduled returned %+v", due)
		}

		none, err := repo.DueScheduled(ctx, base)
		if err != nil {
			t.Fatalf("DueScheduled failed: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("DueScheduled before due time returned %d, want 0", len(none))
		}
	})
}

func TestSQLiteRepository_AtomicWrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("ApplyTransaction writes row and balance together", func(t *testing.T) {
		a := mustCreateAccount(t, repo, 1, "Cash", 100, 0)
		tx := core.Transaction{UserID: 1, AccountID: a.ID, Title: "groceries", Category: core.Grocery, Amount: 40, Time: time.Now()}

		if err := repo.ApplyTransaction(ctx, &tx, 60); err != nil {
			t.Fatalf("ApplyTransaction failed: %v", err)
		}

		got, err := repo.GetAccount(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAccount failed: %v", err)
		}
		if got.Balance != 60 {
			t.Errorf("balance = %d, want 60", got.Balance)
		}
		if _, err := repo.GetTransaction(ctx, tx.ID); err != nil {
			t.Errorf("GetTransaction failed: %v", err)
		}
	})

	t.Run("ApplyTransaction against missing account rolls back the insert", func(t *testing.T) {
		a := mustCreateAccount(t, repo, 2, "Cash", 100, 0)
		tx := core.Transaction{UserID: 2, AccountID: a.ID, Title: "x", Category: core.Food, Amount: 10, Time: time.Now()}

		if err := repo.DeleteAccount(ctx, a.ID); err != nil {
			t.Fatalf("DeleteAccount failed: %v", err)
		}
		err := repo.ApplyTransaction(ctx, &tx, 90)
		if err == nil {
			t.Fatal("ApplyTransaction against deleted account succeeded")
		}
		txs, err := repo.ListTransactions(ctx, TransactionFilter{UserID: 2})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txs) != 0 {
			t.Errorf("rolled-back insert left %d transactions", len(txs))
		}
	})

	t.Run("ApplyTransactionPair is all-or-nothing", func(t *testing.T) {
		payer := mustCreateAccount(t, repo, 3, "Cash", 100, 0)
		payee := mustCreateAccount(t, repo, 4, "Cash", 10, 0)

		debit := core.Transaction{UserID: 3, AccountID: payer.ID, Title: "split", Category: core.Food, Amount: 25, Time: time.Now()}
		credit := core.Transaction{UserID: 4, AccountID: payee.ID, Title: "split", Category: core.Income, Amount: 25, Time: time.Now()}

		if err := repo.ApplyTransactionPair(ctx, &debit, &credit, 75, 35); err != nil {
			t.Fatalf("ApplyTransactionPair failed: %v", err)
		}

		gotPayer, _ := repo.GetAccount(ctx, payer.ID)
		gotPayee, _ := repo.GetAccount(ctx, payee.ID)
		if gotPayer.Balance != 75 || gotPayee.Balance != 35 {
			t.Errorf("pair balances = %d/%d, want 75/35", gotPayer.Balance, gotPayee.Balance)
		}

		// Now break the second leg: the first leg must not survive.
		badCredit := core.Transaction{UserID: 4, AccountID: 99999, Title: "split", Category: core.Income, Amount: 25, Time: time.Now()}
		debit2 := core.Transaction{UserID: 3, AccountID: payer.ID, Title: "split2", Category: core.Food, Amount: 25, Time: time.Now()}
		if err := repo.ApplyTransactionPair(ctx, &debit2, &badCredit, 50, 60); err == nil {
			t.Fatal("ApplyTransactionPair with missing account succeeded")
		}
		gotPayer, _ = repo.GetAccount(ctx, payer.ID)
		if gotPayer.Balance != 75 {
			t.Errorf("failed pair moved payer balance to %d, want 75", gotPayer.Balance)
		}
	})

	t.Run("ReplaceTransaction rewrites row and balance", func(t *testing.T) {
		a := mustCreateAccount(t, repo, 5, "Cash", 100, 0)
		tx := core.Transaction{UserID: 5, AccountID: a.ID, Title: "old", Category: core.Food, Amount: 10, Time: time.Now()}
		if err := repo.ApplyTransaction(ctx, &tx, 90); err != nil {
			t.Fatalf("ApplyTransaction failed: %v", err)
		}

		tx.Title = "new"
		tx.Amount = 30
		if err := repo.ReplaceTransaction(ctx, tx, 70); err != nil {
			t.Fatalf("ReplaceTransaction failed: %v", err)
		}

		got, err := repo.GetTransaction(ctx, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if got.Title != "new" || got.Amount != 30 {
			t.Errorf("ReplaceTransaction result %+v", got)
		}
		acc, _ := repo.GetAccount(ctx, a.ID)
		if acc.Balance != 70 {
			t.Errorf("balance = %d, want 70", acc.Balance)
		}
	})

	t.Run("RemoveTransaction deletes and restores balance", func(t *testing.T) {
		a := mustCreateAccount(t, repo, 6, "Cash", 100, 0)
		tx := core.Transaction{UserID: 6, AccountID: a.ID, Title: "t", Category: core.Food, Amount: 40, Time: time.Now()}
		if err := repo.ApplyTransaction(ctx, &tx, 60); err != nil {
			t.Fatalf("ApplyTransaction failed: %v", err)
		}

		if err := repo.RemoveTransaction(ctx, tx.ID, a.ID, 100); err != nil {
			t.Fatalf("RemoveTransaction failed: %v", err)
		}
		if _, err := repo.GetTransaction(ctx, tx.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetTransaction after remove error = %v, want ErrNotFound", err)
		}
		acc, _ := repo.GetAccount(ctx, a.ID)
		if acc.Balance != 100 {
			t.Errorf("balance = %d, want 100", acc.Balance)
		}
	})

	t.Run("PostScheduled posts exactly once", func(t *testing.T) {
		a := mustCreateAccount(t, repo, 7, "Cash", 100, 0)
		tx := core.Transaction{UserID: 7, AccountID: a.ID, Title: "rent", Category: core.Other, Amount: 50, Time: time.Now(), Scheduled: true}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}

		if err := repo.PostScheduled(ctx, tx.ID, a.ID, 50); err != nil {
			t.Fatalf("PostScheduled failed: %v", err)
		}
		got, err := repo.GetTransaction(ctx, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if got.Scheduled {
			t.Error("transaction still scheduled after posting")
		}

		// Second post must fail the scheduled guard and leave the balance
		// untouched.
		if err := repo.PostScheduled(ctx, tx.ID, a.ID, 0); !errors.Is(err, ErrNotFound) {
			t.Errorf("second PostScheduled error = %v, want ErrNotFound", err)
		}
		acc, _ := repo.GetAccount(ctx, a.ID)
		if acc.Balance != 50 {
			t.Errorf("balance = %d, want 50", acc.Balance)
		}
	})
}

func TestSQLiteRepository_Splits(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("CreateSplit and GetSplit roundtrip", func(t *testing.T) {
		s := core.SplitTransaction{
			Title:          "Dinner",
			Category:       core.Food,
			TotalAmount:    100,
			CreatorID:      1,
			PayingFriendID: 2,
			Friends:        []int64{1, 3, 4},
		}
		if err := repo.CreateSplit(ctx, &s); err != nil {
			t.Fatalf("CreateSplit failed: %v", err)
		}
		if s.ID == 0 {
			t.Error("Expected split ID to be generated")
		}

		got, err := repo.GetSplit(ctx, s.ID)
		if err != nil {
			t.Fatalf("GetSplit failed: %v", err)
		}
		if got.Title != "Dinner" || got.TotalAmount != 100 || got.PayingFriendID != 2 {
			t.Errorf("GetSplit returned %+v", got)
		}
		if len(got.Friends) != 3 {
			t.Errorf("GetSplit friends = %v, want 3 entries", got.Friends)
		}
	})

	t.Run("ListSplitsForUser covers all roles", func(t *testing.T) {
		asCreator := core.SplitTransaction{Title: "a", Category: core.Food, TotalAmount: 10, CreatorID: 10, PayingFriendID: 11, Friends: []int64{12}}
		asPayer := core.SplitTransaction{Title: "b", Category: core.Food, TotalAmount: 10, CreatorID: 11, PayingFriendID: 10, Friends: []int64{12}}
		asFriend := core.SplitTransaction{Title: "c", Category: core.Food, TotalAmount: 10, CreatorID: 11, PayingFriendID: 12, Friends: []int64{10}}
		unrelated := core.SplitTransaction{Title: "d", Category: core.Food, TotalAmount: 10, CreatorID: 20, PayingFriendID: 21, Friends: []int64{22}}
		for _, s := range []*core.SplitTransaction{&asCreator, &asPayer, &asFriend, &unrelated} {
			if err := repo.CreateSplit(ctx, s); err != nil {
				t.Fatalf("CreateSplit failed: %v", err)
			}
		}

		splits, err := repo.ListSplitsForUser(ctx, 10)
		if err != nil {
			t.Fatalf("ListSplitsForUser failed: %v", err)
		}
		if len(splits) != 3 {
			t.Errorf("ListSplitsForUser returned %d splits, want 3", len(splits))
		}
	})

	t.Run("PaidTowardSplit sums payments not receipts", func(t *testing.T) {
		s := core.SplitTransaction{Title: "Trip", Category: core.Travel, TotalAmount: 90, CreatorID: 1, PayingFriendID: 2, Friends: []int64{1, 3}}
		if err := repo.CreateSplit(ctx, &s); err != nil {
			t.Fatalf("CreateSplit failed: %v", err)
		}
		payerAcct := mustCreateAccount(t, repo, 1, "Cash", 100, 0)
		payeeAcct := mustCreateAccount(t, repo, 2, "Cash", 0, 0)

		debit := core.Transaction{UserID: 1, AccountID: payerAcct.ID, Title: "Trip", Category: core.Travel, Amount: 30, Time: time.Now(), SplitID: s.ID}
		credit := core.Transaction{UserID: 2, AccountID: payeeAcct.ID, Title: "Trip", Category: core.Income, Amount: 30, Time: time.Now(), SplitID: s.ID}
		if err := repo.ApplyTransactionPair(ctx, &debit, &credit, 70, 30); err != nil {
			t.Fatalf("ApplyTransactionPair failed: %v", err)
		}

		paid, err := repo.PaidTowardSplit(ctx, 1, s.ID)
		if err != nil {
			t.Fatalf("PaidTowardSplit failed: %v", err)
		}
		if paid != 30 {
			t.Errorf("PaidTowardSplit = %d, want 30", paid)
		}

		// The receiving side recorded Income: nothing paid toward the split.
		received, err := repo.PaidTowardSplit(ctx, 2, s.ID)
		if err != nil {
			t.Fatalf("PaidTowardSplit failed: %v", err)
		}
		if received != 0 {
			t.Errorf("PaidTowardSplit for payee = %d, want 0", received)
		}
	})

	t.Run("DeleteSplit cascades to linked transactions", func(t *testing.T) {
		s := core.SplitTransaction{Title: "Gone", Category: core.Other, TotalAmount: 60, CreatorID: 5, PayingFriendID: 6, Friends: []int64{5}}
		if err := repo.CreateSplit(ctx, &s); err != nil {
			t.Fatalf("CreateSplit failed: %v", err)
		}
		a := mustCreateAccount(t, repo, 6, "Cash", 100, 0)
		tx := core.Transaction{UserID: 6, AccountID: a.ID, Title: "Gone", Category: core.Other, Amount: 60, Time: time.Now(), SplitID: s.ID}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}

		if err := repo.DeleteSplit(ctx, s.ID); err != nil {
			t.Fatalf("DeleteSplit failed: %v", err)
		}
		if _, err := repo.GetTransaction(ctx, tx.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("linked transaction survived split delete: %v", err)
		}
	})
}

func TestSQLiteRepository_CategoryTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := mustCreateAccount(t, repo, 1, "Cash", 1000, 0)
	may := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	june := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	insert := func(category core.Category, amount int64, when time.Time) {
		t.Helper()
		tx := core.Transaction{UserID: 1, AccountID: a.ID, Title: "t", Category: category, Amount: amount, Time: when}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}

	insert(core.Food, 30, may)
	insert(core.Food, 20, may)
	insert(core.Fuel, 15, may)
	insert(core.Income, 500, may) // excluded
	insert(core.Food, 99, june)   // outside the month

	totals, err := repo.CategoryTotals(ctx, 1, a.ID, 2026, time.May)
	if err != nil {
		t.Fatalf("CategoryTotals failed: %v", err)
	}
	if totals[core.Food] != 50 {
		t.Errorf("Food total = %d, want 50", totals[core.Food])
	}
	if totals[core.Fuel] != 15 {
		t.Errorf("Fuel total = %d, want 15", totals[core.Fuel])
	}
	if _, ok := totals[core.Income]; ok {
		t.Error("Income present in expense totals")
	}
}
