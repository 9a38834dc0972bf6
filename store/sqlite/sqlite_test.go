package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunogmenezes/financeiro/audit"
	"github.com/brunogmenezes/financeiro/auth"
	"github.com/brunogmenezes/financeiro/ledger"
	"github.com/brunogmenezes/financeiro/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// File-backed databases: the connection pool opens multiple connections,
// and a ":memory:" database is private to each of them.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedAccount(t *testing.T, s *sqlite.Store, ownerID, balance string) ledger.Account {
	t.Helper()
	a := ledger.Account{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      "Checking",
		Balance:   decimal.RequireFromString(balance),
		Kind:      ledger.AccountChecking,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func seedEntry(t *testing.T, s *sqlite.Store, ownerID, accountID string, mutate ...func(*ledger.Entry)) ledger.Entry {
	t.Helper()
	e := ledger.Entry{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		AccountID:   accountID,
		Description: "Internet",
		Amount:      decimal.NewFromInt(150),
		Direction:   ledger.DirectionExpense,
		Date:        ledger.NewDate(2024, time.June, 10),
		Paid:        true,
		CreatedAt:   time.Now().UTC(),
	}
	for _, fn := range mutate {
		fn(&e)
	}
	require.NoError(t, s.CreateEntry(context.Background(), e))
	return e
}

func seedUser(t *testing.T, s *sqlite.Store, name, email, whatsapp string) auth.User {
	t.Helper()
	u := auth.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: "x",
		WhatsApp:     whatsapp,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// =============================================================================
// ACCOUNTS AND BALANCES
// =============================================================================

func TestStore_AccountRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "1234.56")

	got, err := s.GetAccount(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
	assert.Equal(t, ledger.AccountChecking, got.Kind)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("1234.56")))

	_, err = s.GetAccount(ctx, "u2", a.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestStore_AddToBalance_DecimalExact(t *testing.T) {
	// Three increments of 0.1 must land on exactly 0.3. This fails if the
	// balance ever passes through a float.
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "0")

	tenth := decimal.RequireFromString("0.1")
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AddToBalance(ctx, "u1", a.ID, tenth))
	}

	got, err := s.GetAccount(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.3", got.Balance.String())
}

func TestStore_AddToBalance_MissingAccount(t *testing.T) {
	s := newTestStore(t)
	err := s.AddToBalance(context.Background(), "u1", "nope", decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestStore_UpdateAccount_NeverWritesBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "1000")

	a.Name = "Main"
	a.Balance = decimal.RequireFromString("999999") // must be ignored
	require.NoError(t, s.UpdateAccount(ctx, a))

	got, err := s.GetAccount(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main", got.Name)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)))
}

func TestStore_WithTx_RollbackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "1000")

	entryID := uuid.NewString()
	err := s.WithTx(ctx, func(txs ledger.Store) error {
		e := ledger.Entry{
			ID: entryID, OwnerID: "u1", AccountID: a.ID,
			Description: "x", Amount: decimal.NewFromInt(150),
			Direction: ledger.DirectionExpense,
			Date:      ledger.NewDate(2024, time.June, 10),
			Paid:      true, CreatedAt: time.Now().UTC(),
		}
		if err := txs.CreateEntry(ctx, e); err != nil {
			return err
		}
		if err := txs.AddToBalance(ctx, "u1", a.ID, decimal.NewFromInt(-150)); err != nil {
			return err
		}
		// Missing account fails the transaction after both writes.
		return txs.AddToBalance(ctx, "u1", "nope", decimal.NewFromInt(1))
	})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	got, err := s.GetAccount(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)), "balance rolled back, got %s", got.Balance)

	_, err = s.GetEntry(ctx, "u1", entryID)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestStore_ConcurrentProtocols_NoLostUpdates(t *testing.T) {
	// 10 goroutines each run the create protocol through the engine. With
	// immediate transactions the read-modify-writes serialize; every one of
	// the ten -1.00 deltas must land.
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "100")
	eng := ledger.NewEngine(s, s)
	actor := ledger.Actor{ID: "u1", Name: "Bruno"}

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.CreateEntry(ctx, actor, ledger.EntryInput{
				Description: "tick",
				Amount:      decimal.RequireFromString("1.00"),
				Direction:   ledger.DirectionExpense,
				Date:        ledger.NewDate(2024, time.June, 10),
				AccountID:   a.ID,
				Paid:        true,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetAccount(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(90)), "want 90, got %s", got.Balance)
}

// =============================================================================
// ENTRIES
// =============================================================================

func TestStore_EntryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "0")
	e := seedEntry(t, s, "u1", a.ID, func(e *ledger.Entry) {
		e.Amount = decimal.RequireFromString("99.90")
		e.Paid = false
		e.CategoryID = "cat-1"
	})

	got, err := s.GetEntry(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Internet", got.Description)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("99.90")))
	assert.Equal(t, ledger.DirectionExpense, got.Direction)
	assert.Equal(t, "2024-06-10", got.Date.String())
	assert.False(t, got.Paid)
	assert.Equal(t, "cat-1", got.CategoryID)

	_, err = s.GetEntry(ctx, "u2", e.ID)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestStore_ListEntries_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "0")

	base := time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)
	older := seedEntry(t, s, "u1", a.ID, func(e *ledger.Entry) {
		e.Date = ledger.NewDate(2024, time.May, 1)
		e.CreatedAt = base
	})
	first := seedEntry(t, s, "u1", a.ID, func(e *ledger.Entry) {
		e.CreatedAt = base
	})
	second := seedEntry(t, s, "u1", a.ID, func(e *ledger.Entry) {
		e.CreatedAt = base.Add(time.Hour)
	})

	entries, err := s.ListEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, second.ID, entries[0].ID) // same date, created later
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, older.ID, entries[2].ID)
}

func TestStore_SetEntryPaid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "0")
	e := seedEntry(t, s, "u1", a.ID)

	require.NoError(t, s.SetEntryPaid(ctx, "u1", e.ID, false))
	got, err := s.GetEntry(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.False(t, got.Paid)

	assert.ErrorIs(t, s.SetEntryPaid(ctx, "u2", e.ID, true), ledger.ErrEntryNotFound)
}

func TestStore_MonthlyTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "0")

	seedEntry(t, s, "u1", a.ID, func(e *ledger.Entry) {
		e.Direction = ledger.DirectionIncome
		e.Amount = decimal.RequireFromString("2500")
		e.Date = ledger.NewDate(2024, time.June, 1)
	})
	seedEntry(t, s, "u1", a.ID, func(e *ledger.Entry) {
		e.Amount = decimal.RequireFromString("150")
		e.Date = ledger.NewDate(2024, time.June, 10)
	})
	seedEntry(t, s, "u1", a.ID, func(e *ledger.Entry) {
		e.Amount = decimal.RequireFromString("49.90")
		e.Paid = false // unpaid still aggregates
		e.Date = ledger.NewDate(2024, time.June, 20)
	})
	seedEntry(t, s, "u1", a.ID, func(e *ledger.Entry) {
		e.Direction = ledger.DirectionIncome
		e.Amount = decimal.RequireFromString("2500")
		e.Date = ledger.NewDate(2024, time.May, 1)
	})
	// Another owner's entries never leak in.
	b := seedAccount(t, s, "u2", "0")
	seedEntry(t, s, "u2", b.ID)

	totals, err := s.MonthlyTotals(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, totals, 3)

	assert.Equal(t, "2024-06", totals[0].Month)
	assert.Equal(t, ledger.DirectionExpense, totals[0].Direction)
	assert.Equal(t, "199.90", totals[0].Total.String())

	assert.Equal(t, "2024-06", totals[1].Month)
	assert.Equal(t, ledger.DirectionIncome, totals[1].Direction)
	assert.Equal(t, "2500", totals[1].Total.String())

	assert.Equal(t, "2024-05", totals[2].Month)
	assert.Equal(t, ledger.DirectionIncome, totals[2].Direction)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func TestStore_CategoryLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat := ledger.Category{
		ID: uuid.NewString(), OwnerID: "u1", Name: "Moradia",
		Direction: ledger.DirectionExpense, Color: "#ff0000",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateCategory(ctx, cat))

	sub := ledger.Subcategory{
		ID: uuid.NewString(), CategoryID: cat.ID, Name: "Aluguel",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateSubcategory(ctx, sub))

	subs, err := s.ListSubcategories(ctx, "u1", cat.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Aluguel", subs[0].Name)

	// Deletion blocked while subcategories exist.
	err = s.DeleteCategory(ctx, "u1", cat.ID)
	assert.ErrorIs(t, err, ledger.ErrReferentialConflict)

	require.NoError(t, s.DeleteSubcategory(ctx, "u1", sub.ID))
	require.NoError(t, s.DeleteCategory(ctx, "u1", cat.ID))

	cats, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestStore_DeleteSubcategory_ForeignOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat := ledger.Category{
		ID: uuid.NewString(), OwnerID: "u1", Name: "Moradia",
		Direction: ledger.DirectionExpense, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateCategory(ctx, cat))
	sub := ledger.Subcategory{
		ID: uuid.NewString(), CategoryID: cat.ID, Name: "Aluguel",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateSubcategory(ctx, sub))

	assert.ErrorIs(t, s.DeleteSubcategory(ctx, "u2", sub.ID), ledger.ErrCategoryNotFound)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestStore_AuditLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)
	for i, actorID := range []string{"u1", "u1", "u2"} {
		require.NoError(t, s.Record(ctx, audit.Record{
			ID:        uuid.NewString(),
			ActorID:   actorID,
			ActorName: "Someone",
			Action:    audit.ActionCreate,
			Table:     "entries",
			RecordID:  uuid.NewString(),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	// Newest first.
	assert.True(t, recs[0].CreatedAt.After(recs[2].CreatedAt))

	mine, err := s.ListByActor(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// =============================================================================
// USERS
// =============================================================================

func TestStore_UserStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "Bruno", "bruno@example.com", "")

	got, err := s.GetUserByEmail(ctx, "bruno@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	// Duplicate email maps the UNIQUE violation.
	dupe := u
	dupe.ID = uuid.NewString()
	assert.ErrorIs(t, s.CreateUser(ctx, dupe), auth.ErrEmailTaken)

	u.WhatsApp = "5511999990000"
	require.NoError(t, s.UpdateUser(ctx, u))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", got.WhatsApp)
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestStore_PendingReminders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withPhone := seedUser(t, s, "Bruno", "bruno@example.com", "5511999990000")
	noPhone := seedUser(t, s, "Ana", "ana@example.com", "")

	a := seedAccount(t, s, withPhone.ID, "0")
	due := ledger.NewDate(2024, time.June, 10)

	match := seedEntry(t, s, withPhone.ID, a.ID, func(e *ledger.Entry) {
		e.Paid = false
		e.Date = due
	})
	seedEntry(t, s, withPhone.ID, a.ID, func(e *ledger.Entry) { // paid, excluded
		e.Date = due
	})
	seedEntry(t, s, withPhone.ID, a.ID, func(e *ledger.Entry) { // wrong date
		e.Paid = false
		e.Date = due.AddDays(1)
	})
	seedEntry(t, s, withPhone.ID, a.ID, func(e *ledger.Entry) { // income, excluded
		e.Direction = ledger.DirectionIncome
		e.Date = due
	})
	b := seedAccount(t, s, noPhone.ID, "0")
	seedEntry(t, s, noPhone.ID, b.ID, func(e *ledger.Entry) { // no phone, excluded
		e.Paid = false
		e.Date = due
	})

	pending, err := s.PendingReminders(ctx, due)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	p := pending[0]
	assert.Equal(t, match.ID, p.EntryID)
	assert.Equal(t, "Bruno", p.OwnerName)
	assert.Equal(t, "Checking", p.AccountName)
	assert.Equal(t, "5511999990000", p.WhatsApp)
	assert.True(t, p.Due.Equal(due))
}
