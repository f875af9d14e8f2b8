// Package core defines the ledger domain model and the pure bookkeeping
// rules: balance effects, budget-limit enforcement and split-expense
// fair-share math. Nothing in this package touches storage.
package core

// Effect returns the signed delta a transaction applies to an account
// balance: income credits, every other category debits.
func Effect(amount int64, category Category) int64 {
	if category == Income {
		return amount
	}
	return -amount
}

// NewAccountBalance returns the balance after applying a transaction effect.
func NewAccountBalance(prevBalance, amount int64, category Category) int64 {
	return prevBalance + Effect(amount, category)
}

// ValidateCreate checks whether a new posted transaction may be applied to
// the account. expenses is the running aggregate of previously posted
// non-income amounts on the account; the budget limit compares against that
// aggregate, not against the live balance.
func ValidateCreate(account CashAccount, expenses, amount int64, category Category) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if category != Income && account.Limit != 0 && expenses+amount > account.Limit {
		return ErrBudgetExceeded
	}
	if category != Income && amount > account.Balance {
		return ErrInsufficientBalance
	}
	return nil
}

// ValidateUpdate checks whether an existing posted transaction may be
// replaced with a new amount and category. The balance window re-credits the
// old effect first, so an update is never rejected merely because the old
// amount had already reduced the balance.
func ValidateUpdate(account CashAccount, expenses, oldAmount int64, oldCategory Category, newAmount int64, newCategory Category) error {
	if newAmount < 0 {
		return ErrNegativeAmount
	}
	if oldCategory != Income {
		expenses -= oldAmount
	}
	if newCategory != Income && account.Limit != 0 && expenses+newAmount > account.Limit {
		return ErrBudgetExceeded
	}
	reversed := account.Balance - Effect(oldAmount, oldCategory)
	if newCategory != Income && newAmount > reversed {
		return ErrInsufficientBalance
	}
	return nil
}

// ReverseEffect returns the balance after undoing a previously applied
// transaction. Deletes reverse unconditionally; there is no validation on
// the way out.
func ReverseEffect(balance, amount int64, category Category) int64 {
	return balance - Effect(amount, category)
}
