package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// UserRef is the contact information needed to notify a user. User records
// live in the external accounts service; the dispatcher only needs this
// projection.
type UserRef struct {
	ID       int64
	Username string
	Email    string
	Phone    string
}

// Directory resolves user ids to contact information.
type Directory interface {
	User(ctx context.Context, id int64) (UserRef, error)
}

// StaticDirectory is a fixed id-to-contact map, loaded from configuration.
type StaticDirectory map[int64]UserRef

func (d StaticDirectory) User(_ context.Context, id int64) (UserRef, error) {
	if ref, ok := d[id]; ok {
		return ref, nil
	}
	return UserRef{}, fmt.Errorf("user %d not in directory", id)
}

// EmailSender delivers a rendered email notification.
type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// SMSSender delivers a rendered SMS notification.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// PushSender delivers a push notification to a user's channel group.
type PushSender interface {
	SendPush(ctx context.Context, userID int64, message string) error
}

// Config carries the sender settings the dispatcher renders with.
type Config struct {
	FrontendURL string
	SenderEmail string
	SMSFrom     string
	AppName     string
}

// Dispatcher renders events into channel messages and hands them to the
// injected transports. Transport failures are logged and swallowed: a
// notification never rolls back a committed ledger mutation.
type Dispatcher struct {
	cfg   Config
	users Directory
	email EmailSender
	sms   SMSSender
	push  PushSender
}

func NewDispatcher(cfg Config, users Directory, email EmailSender, sms SMSSender, push PushSender) *Dispatcher {
	if cfg.AppName == "" {
		cfg.AppName = "BudgetTracker"
	}
	return &Dispatcher{cfg: cfg, users: users, email: email, sms: sms, push: push}
}

// Dispatch fans an event out to every channel. The switch is exhaustive
// over the Event set; an unknown dynamic type is a programming error.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case SplitIncludeEvent:
		d.dispatchSplitInclude(ctx, e)
	case SplitPaymentEvent:
		d.dispatchSplitPayment(ctx, e)
	case ScheduledTransactionEvent:
		d.dispatchScheduledTransaction(ctx, e)
	case DailyReportEvent:
		d.dispatchDailyReport(ctx, e)
	default:
		return fmt.Errorf("unhandled event type %T", event)
	}
	return nil
}

func (d *Dispatcher) dispatchSplitInclude(ctx context.Context, e SplitIncludeEvent) {
	payer := d.lookup(ctx, e.Split.PayingFriendID)
	creator := d.lookup(ctx, e.Split.CreatorID)

	subject := fmt.Sprintf("%s paid by %s", e.Split.Title, payer.Username)
	body := fmt.Sprintf(
		"You have been added to a split expense for %s by %s.\nCategory: %s\nAmount Paid by %s: %d\n%s",
		e.Split.Title, creator.Username, e.Split.Category, payer.Username, e.Split.TotalAmount, d.cfg.FrontendURL)
	sms := fmt.Sprintf(
		"You have been added to a split expense for %s by %s.\nAmount Paid by %s: %d",
		e.Split.Title, creator.Username, payer.Username, e.Split.TotalAmount)
	push := fmt.Sprintf("You have been added to a split expense for %s by %s.",
		e.Split.Title, creator.Username)

	for _, friendID := range e.Split.Friends {
		friend := d.lookup(ctx, friendID)
		d.sendEmail(ctx, []string{friend.Email}, subject, body)
		d.sendSMS(ctx, friend.Phone, sms)
		d.sendPush(ctx, friendID, push)
	}
}

func (d *Dispatcher) dispatchSplitPayment(ctx context.Context, e SplitPaymentEvent) {
	payer := d.lookup(ctx, e.PayerID)
	recipient := d.lookup(ctx, e.Split.PayingFriendID)

	subject := fmt.Sprintf("Payment for %s paid by %s", e.Split.Title, payer.Username)
	remaining := e.Required - e.PaidBefore - e.Payment
	body := fmt.Sprintf(
		"Payment of %d received for %s.\nCategory: %s\nRemaining share: %d\n%s",
		e.Payment, e.Split.Title, e.Split.Category, remaining, d.cfg.FrontendURL)
	message := fmt.Sprintf(
		"Payment amount %d for %s made by %s, added to your cash account",
		e.Payment, e.Split.Title, payer.Username)

	d.sendEmail(ctx, []string{recipient.Email}, subject, body)
	d.sendSMS(ctx, recipient.Phone, message)
	d.sendPush(ctx, e.Split.PayingFriendID, message)
}

func (d *Dispatcher) dispatchScheduledTransaction(ctx context.Context, e ScheduledTransactionEvent) {
	owner := d.lookup(ctx, e.Transaction.UserID)

	subject := fmt.Sprintf("Scheduled Transaction has %s", e.Status)
	body := fmt.Sprintf(
		"Scheduled Transaction for %s has %s.\nCategory: %s\nTransaction Amount: %d\nRemaining Balance: %d\n%s",
		e.Transaction.Title, e.Status, e.Transaction.Category, e.Transaction.Amount,
		e.Transaction.AccountBalance, d.cfg.FrontendURL)
	message := fmt.Sprintf(
		"Scheduled Transaction for %s has %s.\nTransaction Amount: %d",
		e.Transaction.Title, e.Status, e.Transaction.Amount)

	d.sendEmail(ctx, []string{owner.Email}, subject, body)
	d.sendSMS(ctx, owner.Phone, message)
	d.sendPush(ctx, e.Transaction.UserID, message)
}

func (d *Dispatcher) dispatchDailyReport(ctx context.Context, e DailyReportEvent) {
	owner := d.lookup(ctx, e.UserID)

	subject := fmt.Sprintf("Transactions Scheduled for Today %s", e.Date)
	var b strings.Builder
	fmt.Fprintf(&b, "Transactions scheduled for %s:\n", e.Date)
	for _, t := range e.Transactions {
		fmt.Fprintf(&b, "- %s (%s): %d\n", t.Title, t.Category, t.Amount)
	}
	fmt.Fprint(&b, d.cfg.FrontendURL)

	// The daily report is email-only, like the rest of the reporting path.
	d.sendEmail(ctx, []string{owner.Email}, subject, b.String())
}

func (d *Dispatcher) lookup(ctx context.Context, id int64) UserRef {
	if d.users == nil {
		return UserRef{ID: id}
	}
	ref, err := d.users.User(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "User not resolvable, notification degraded",
			"user_id", id, "error", err)
		return UserRef{ID: id}
	}
	return ref
}

func (d *Dispatcher) sendEmail(ctx context.Context, to []string, subject, body string) {
	if d.email == nil || len(to) == 0 || to[0] == "" {
		return
	}
	if err := d.email.SendEmail(ctx, to, subject, body); err != nil {
		slog.ErrorContext(ctx, "Email notification failed",
			"recipients", to, "subject", subject, "error", err)
	}
}

func (d *Dispatcher) sendSMS(ctx context.Context, phone, message string) {
	if d.sms == nil || phone == "" {
		return
	}
	message += "\nFrom " + d.cfg.AppName
	if err := d.sms.SendSMS(ctx, phone, message); err != nil {
		slog.ErrorContext(ctx, "SMS notification failed",
			"phone", phone, "error", err)
	}
}

func (d *Dispatcher) sendPush(ctx context.Context, userID int64, message string) {
	if d.push == nil {
		return
	}
	if err := d.push.SendPush(ctx, userID, message); err != nil {
		slog.ErrorContext(ctx, "Push notification failed",
			"user_id", userID, "error", err)
	}
}
