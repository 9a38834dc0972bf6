package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunogmenezes/financeiro/ledger"
	"github.com/brunogmenezes/financeiro/notify"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSource struct {
	byDate map[string][]notify.PendingReminder
	err    error
}

func (f *fakeSource) PendingReminders(_ context.Context, due ledger.Date) ([]notify.PendingReminder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byDate[due.String()], nil
}

type sentMessage struct {
	number string
	text   string
}

type fakeSender struct {
	sent    []sentMessage
	failFor map[string]error // number -> error
}

func (f *fakeSender) SendText(_ context.Context, number, text string) error {
	if err, ok := f.failFor[number]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{number: number, text: text})
	return nil
}

func reminder(entryID, number string) notify.PendingReminder {
	return notify.PendingReminder{
		EntryID:     entryID,
		Description: "Internet",
		Amount:      decimal.RequireFromString("150"),
		Due:         ledger.NewDate(2024, time.June, 10),
		OwnerName:   "Bruno",
		AccountName: "Checking",
		WhatsApp:    number,
	}
}

// =============================================================================
// SENDING
// =============================================================================

func TestScheduler_SendFor_SendsAllPending(t *testing.T) {
	due := ledger.NewDate(2024, time.June, 10)
	source := &fakeSource{byDate: map[string][]notify.PendingReminder{
		due.String(): {
			reminder("e-1", "5511999990000"),
			reminder("e-2", "5511888880000"),
		},
	}}
	sender := &fakeSender{}
	sched := notify.NewScheduler(source, sender, 9, 0, time.UTC)

	require.NoError(t, sched.SendFor(context.Background(), due))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "5511999990000", sender.sent[0].number)
	assert.Equal(t, "5511888880000", sender.sent[1].number)
}

func TestScheduler_SendFor_ContinuesAfterFailedSend(t *testing.T) {
	// GIVEN: Two pending reminders, the first recipient fails
	// THEN: The second still gets its message and SendFor reports success

	due := ledger.NewDate(2024, time.June, 10)
	source := &fakeSource{byDate: map[string][]notify.PendingReminder{
		due.String(): {
			reminder("e-1", "5511999990000"),
			reminder("e-2", "5511888880000"),
		},
	}}
	sender := &fakeSender{failFor: map[string]error{
		"5511999990000": errors.New("gateway timeout"),
	}}
	sched := notify.NewScheduler(source, sender, 9, 0, time.UTC)

	require.NoError(t, sched.SendFor(context.Background(), due))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "5511888880000", sender.sent[0].number)
}

func TestScheduler_SendFor_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	sched := notify.NewScheduler(&fakeSource{err: boom}, &fakeSender{}, 9, 0, time.UTC)

	err := sched.SendFor(context.Background(), ledger.NewDate(2024, time.June, 10))
	assert.ErrorIs(t, err, boom)
}

func TestScheduler_SendFor_NothingPending(t *testing.T) {
	sender := &fakeSender{}
	sched := notify.NewScheduler(&fakeSource{}, sender, 9, 0, time.UTC)

	require.NoError(t, sched.SendFor(context.Background(), ledger.NewDate(2024, time.June, 10)))
	assert.Empty(t, sender.sent)
}

// =============================================================================
// MESSAGE FORMAT
// =============================================================================

func TestFormatReminder(t *testing.T) {
	got := notify.FormatReminder(notify.PendingReminder{
		Description: "Internet",
		Amount:      decimal.RequireFromString("150"),
		Due:         ledger.NewDate(2024, time.June, 5),
		OwnerName:   "Bruno",
		AccountName: "Checking",
	})

	assert.Contains(t, got, "Oi Bruno!")
	assert.Contains(t, got, "Lembrete: Internet")
	assert.Contains(t, got, "Valor: R$ 150.00")
	assert.Contains(t, got, "Vencimento: 05/06/2024")
	assert.Contains(t, got, "Conta: Checking")
	assert.Contains(t, got, "Status: não pago")
}

func TestFormatReminder_NoAccountLine(t *testing.T) {
	got := notify.FormatReminder(notify.PendingReminder{
		Description: "Internet",
		Amount:      decimal.RequireFromString("99.9"),
		Due:         ledger.NewDate(2024, time.June, 5),
		OwnerName:   "Bruno",
	})
	assert.NotContains(t, got, "Conta:")
	assert.Contains(t, got, "Valor: R$ 99.90")
}
