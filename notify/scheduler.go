package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brunogmenezes/financeiro/ledger"
	"github.com/brunogmenezes/financeiro/metrics"
)

// PendingReminder is one unpaid expense waiting for a nudge.
type PendingReminder struct {
	EntryID     string
	Description string
	Amount      decimal.Decimal
	Due         ledger.Date
	OwnerName   string
	AccountName string // "" when the entry has no account name to show
	WhatsApp    string
}

// ReminderSource lists the unpaid expenses due on a date, joined with the
// owner's contact details.
type ReminderSource interface {
	PendingReminders(ctx context.Context, due ledger.Date) ([]PendingReminder, error)
}

// ConnectionChecker is optionally implemented by senders that can report
// whether the messaging session is live.
type ConnectionChecker interface {
	ConnectionState(ctx context.Context) (string, error)
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler fires once per day at hour:minute in loc, reminding owners of
// unpaid expenses due that day and the next.
type Scheduler struct {
	source ReminderSource
	sender Sender
	hour   int
	minute int
	loc    *time.Location

	lastRun string // "2006-01-02" of the last completed run, one run per day
	now     func() time.Time
}

func NewScheduler(source ReminderSource, sender Sender, hour, minute int, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		source: source,
		sender: sender,
		hour:   hour,
		minute: minute,
		loc:    loc,
		now:    time.Now,
	}
}

// Run blocks until ctx is cancelled, polling every minute for the
// configured send time.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("reminder scheduler active for %02d:%02d (%s)", s.hour, s.minute, s.loc)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().In(s.loc)
	if now.Hour() != s.hour || now.Minute() != s.minute {
		return
	}
	today := ledger.NewDate(now.Year(), now.Month(), now.Day())
	if s.lastRun == today.String() {
		return
	}
	s.lastRun = today.String()

	if checker, ok := s.sender.(ConnectionChecker); ok {
		state, err := checker.ConnectionState(ctx)
		if err != nil {
			log.Printf("reminder: connection check failed: %v", err)
			return
		}
		if state != "open" {
			log.Printf("reminder: messaging session not open (state %q), skipping run", state)
			return
		}
	}

	if err := s.SendFor(ctx, today); err != nil {
		log.Printf("reminder: %v", err)
	}
	if err := s.SendFor(ctx, today.AddDays(1)); err != nil {
		log.Printf("reminder: %v", err)
	}
}

// SendFor messages every pending reminder due on the given date. One
// failed send does not stop the rest.
func (s *Scheduler) SendFor(ctx context.Context, due ledger.Date) error {
	pending, err := s.source.PendingReminders(ctx, due)
	if err != nil {
		return fmt.Errorf("list pending reminders for %s: %w", due, err)
	}

	for _, p := range pending {
		if err := s.sender.SendText(ctx, p.WhatsApp, FormatReminder(p)); err != nil {
			metrics.RemindersSent.WithLabelValues("error").Inc()
			log.Printf("reminder: send to %s (entry %s) failed: %v", p.WhatsApp, p.EntryID, err)
			continue
		}
		metrics.RemindersSent.WithLabelValues("ok").Inc()
		log.Printf("reminder sent to %s (entry %s)", p.WhatsApp, p.EntryID)
	}
	return nil
}

// FormatReminder builds the message body for one unpaid expense.
func FormatReminder(p PendingReminder) string {
	lines := []string{
		fmt.Sprintf("Oi %s!", p.OwnerName),
		fmt.Sprintf("Lembrete: %s", p.Description),
		fmt.Sprintf("Valor: R$ %s", p.Amount.StringFixed(2)),
		fmt.Sprintf("Vencimento: %02d/%02d/%04d", p.Due.Day(), p.Due.Month(), p.Due.Year()),
	}
	if p.AccountName != "" {
		lines = append(lines, fmt.Sprintf("Conta: %s", p.AccountName))
	}
	lines = append(lines,
		"Status: não pago",
		"",
		"Marque como pago no Financeiro se já quitou.",
	)
	return strings.Join(lines, "\n")
}
