package core

import (
	"errors"
	"strings"
	"time"
)

// Transaction categories. Integer codes are part of the stored format and
// the API contract, so the order here must not change.
const (
	Income Category = iota
	Drink
	Fuel
	HealthCare
	Travel
	Food
	Grocery
	Other
)

// DefaultAccountTitle is the cash account every user starts with. Split
// payments are settled against this account.
const DefaultAccountTitle = "Cash"

type (
	Category int

	// CashAccount is a named balance bucket owned by a user. Limit is a
	// ceiling on cumulative non-income spending; zero means unlimited.
	CashAccount struct {
		ID        int64
		UserID    int64
		Title     string
		Balance   int64
		Limit     int64
		CreatedAt time.Time
	}

	// Transaction is a single ledger mutation. Amount is always a
	// non-negative magnitude; the signed effect on the account balance is
	// derived from the category. A transaction with Scheduled set has a
	// future Time and has not touched any balance yet.
	Transaction struct {
		ID        int64
		UserID    int64
		AccountID int64
		Title     string
		Category  Category
		Amount    int64
		Time      time.Time
		Scheduled bool
		SplitID   int64 // zero when not linked to a split expense
	}

	// SplitTransaction is a shared expense fronted by one participant.
	// Friends holds the user IDs that each owe a share of TotalAmount.
	SplitTransaction struct {
		ID             int64
		Title          string
		Category       Category
		TotalAmount    int64
		CreatorID      int64
		PayingFriendID int64
		Friends        []int64
	}
)

var (
	ErrInsufficientBalance = errors.New("cash account does not have enough balance")
	ErrBudgetExceeded      = errors.New("transaction exceeds the account budget limit")
	ErrOverpayment         = errors.New("payment exceeds the outstanding payable amount")
	ErrInvalidSchedule     = errors.New("scheduled time cannot be in the past")
	ErrNegativeAmount      = errors.New("amount cannot be negative")
	ErrInvalidCategory     = errors.New("invalid transaction category")
	ErrEmptyTitle          = errors.New("empty title")
	ErrNoFriendsInvolved   = errors.New("split needs at least one involved friend")
)

// IsValidationError reports whether err is one of the synchronous ledger
// validation failures that callers translate to a client error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrNoFriendsInvolved)
}

var categoryNames = [...]string{
	Income:     "Income",
	Drink:      "Drink",
	Fuel:       "Fuel",
	HealthCare: "HealthCare",
	Travel:     "Travel",
	Food:       "Food",
	Grocery:    "Grocery",
	Other:      "Other",
}

func (c Category) Valid() bool {
	return c >= Income && c <= Other
}

func (c Category) String() string {
	if !c.Valid() {
		return "Unknown"
	}
	return categoryNames[c]
}

// Categories returns all categories in code order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryNames))
	for c := range categoryNames {
		out = append(out, Category(c))
	}
	return out
}

func (a CashAccount) Validate() error {
	if len(strings.TrimSpace(a.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(a.Title) > 120 {
		return errors.New("title too long (max 120 characters)")
	}
	if a.Limit < 0 {
		return errors.New("budget limit cannot be negative")
	}
	return nil
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 120 {
		return errors.New("title too long (max 120 characters)")
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if t.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (s SplitTransaction) Validate() error {
	if len(strings.TrimSpace(s.Title)) == 0 {
		return ErrEmptyTitle
	}
	if !s.Category.Valid() {
		return ErrInvalidCategory
	}
	if s.TotalAmount < 0 {
		return ErrNegativeAmount
	}
	if len(s.Friends) == 0 {
		return ErrNoFriendsInvolved
	}
	return nil
}

// Involves reports whether the user participates in the split as creator,
// paying friend or involved friend.
func (s SplitTransaction) Involves(userID int64) bool {
	if s.CreatorID == userID || s.PayingFriendID == userID {
		return true
	}
	for _, id := range s.Friends {
		if id == userID {
			return true
		}
	}
	return false
}
