// Package notify defines the notification events the ledger emits and the
// dispatcher that renders them into email, SMS and push messages. Each event
// kind carries its own payload type; consumers switch over the closed Event
// set instead of decoding integer type codes.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags an event on the wire.
type Type string

const (
	TypeSplitInclude         Type = "split_include"
	TypeSplitPayment         Type = "split_payment"
	TypeScheduledTransaction Type = "scheduled_transaction_completion"
	TypeDailyReport          Type = "daily_scheduled_report"
)

// Status of a settled scheduled transaction.
type Status string

const (
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
)

// Event is the closed set of notifications the ledger core emits. Events
// are denormalized snapshots so the notifier worker never reads the ledger.
type Event interface {
	EventType() Type
}

// SplitInfo is a snapshot of a split embedded in events about it.
type SplitInfo struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Category       string  `json:"category"`
	TotalAmount    int64   `json:"total_amount"`
	CreatorID      int64   `json:"creator_id"`
	PayingFriendID int64   `json:"paying_friend_id"`
	Friends        []int64 `json:"friends"`
}

// TransactionInfo is a snapshot of a transaction embedded in events.
type TransactionInfo struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	Amount         int64     `json:"amount"`
	UserID         int64     `json:"user_id"`
	Time           time.Time `json:"time"`
	AccountBalance int64     `json:"account_balance"`
}

// SplitIncludeEvent tells involved friends they were added to a split.
type SplitIncludeEvent struct {
	Split SplitInfo `json:"split"`
}

// SplitPaymentEvent tells the paying friend a participant settled a share.
type SplitPaymentEvent struct {
	Split      SplitInfo `json:"split"`
	PayerID    int64     `json:"payer_id"`
	Payment    int64     `json:"payment"`
	PaidBefore int64     `json:"paid_before"`
	Required   int64     `json:"required"`
}

// ScheduledTransactionEvent reports the outcome of one settler attempt.
type ScheduledTransactionEvent struct {
	Transaction TransactionInfo `json:"transaction"`
	Status      Status          `json:"status"`
}

// DailyReportEvent is the per-user digest of transactions due today.
type DailyReportEvent struct {
	UserID       int64             `json:"user_id"`
	Date         string            `json:"date"`
	Transactions []TransactionInfo `json:"transactions"`
}

func (SplitIncludeEvent) EventType() Type         { return TypeSplitInclude }
func (SplitPaymentEvent) EventType() Type         { return TypeSplitPayment }
func (ScheduledTransactionEvent) EventType() Type { return TypeScheduledTransaction }
func (DailyReportEvent) EventType() Type          { return TypeDailyReport }

// Envelope is the wire framing around an event payload.
type Envelope struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Encode wraps an event in an envelope with a fresh message id.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{
		ID:        uuid.New().String(),
		Type:      e.EventType(),
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// Decode unwraps an envelope into its concrete event.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var (
		event Event
		err   error
	)
	switch env.Type {
	case TypeSplitInclude:
		var e SplitIncludeEvent
		err = json.Unmarshal(env.Payload, &e)
		event = e
	case TypeSplitPayment:
		var e SplitPaymentEvent
		err = json.Unmarshal(env.Payload, &e)
		event = e
	case TypeScheduledTransaction:
		var e ScheduledTransactionEvent
		err = json.Unmarshal(env.Payload, &e)
		event = e
	case TypeDailyReport:
		var e DailyReportEvent
		err = json.Unmarshal(env.Payload, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return event, nil
}
