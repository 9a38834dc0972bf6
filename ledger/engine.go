/*
engine.go - The balance consistency engine

PURPOSE:
  Implements the mutation protocols that keep Account.Balance consistent
  with the set of entries posted against it:

    Create:  persist entry, apply its contribution to the account
    Update:  reverse old contribution on the OLD account, persist new
             fields, apply new contribution on the NEW account
    Delete:  reverse contribution, then delete the entry
    Toggle:  flip an expense's paid flag, apply the matching ±amount

  Each protocol runs inside a single store transaction (Store.WithTx):
  entry write and balance write commit together or not at all. Partial
  application is never observable.

ORDERING:
  Update reverses on the old account before touching the new one; delete
  reverses before removing the row, so a failed delete leaves the balance
  correct relative to the still-existing entry.

INSTALLMENTS:
  A "parcelado" request expands into N entries spaced one calendar month
  apart, each running the full create protocol. The whole expansion shares
  one transaction, so a failed installment rolls back its siblings.

SEE ALSO:
  - contribution.go: The single source of balance-delta truth
  - store.go: The transactional store contract
  - engine_test.go: The reconciliation invariant exercised end to end
*/
package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brunogmenezes/financeiro/audit"
	"github.com/brunogmenezes/financeiro/metrics"
)

// =============================================================================
// INPUTS
// =============================================================================

// EntryInput carries the caller-supplied fields of an entry. Paid must be
// an explicit bool here; defaulting absent flags to true is the API
// layer's job, never the engine's.
type EntryInput struct {
	Description   string
	Amount        decimal.Decimal
	Direction     Direction
	Date          Date
	AccountID     string
	Paid          bool
	CategoryID    string
	SubcategoryID string
}

func (in EntryInput) validate() error {
	if in.Description == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be strictly positive"}
	}
	switch in.Direction {
	case DirectionIncome, DirectionExpense, DirectionNeutral:
	default:
		return &ValidationError{Field: "direction", Reason: "must be income, expense or neutral"}
	}
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "must be set"}
	}
	if in.AccountID == "" {
		return &ValidationError{Field: "account_id", Reason: "must be set"}
	}
	return nil
}

// AccountInput carries the caller-supplied fields of an account.
type AccountInput struct {
	Name           string
	Description    string
	Kind           AccountKind
	InitialBalance decimal.Decimal
}

func (in AccountInput) validate() error {
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	switch in.Kind {
	case AccountChecking, AccountSavings, AccountInvestment:
	default:
		return &ValidationError{Field: "kind", Reason: "must be checking, savings or investment"}
	}
	return nil
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the only writer of account balances.
type Engine struct {
	store Store
	audit audit.Recorder

	// injectable for deterministic tests
	now   func() time.Time
	newID func() string
}

func NewEngine(store Store, rec audit.Recorder) *Engine {
	if rec == nil {
		rec = audit.Discard{}
	}
	return &Engine{
		store: store,
		audit: rec,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// applyDelta adds a signed amount to an account's stored balance. The
// store guarantees atomicity of the increment; this helper only exists so
// every protocol shares one call site and one metric.
func applyDelta(ctx context.Context, s Store, ownerID, accountID string, delta decimal.Decimal) error {
	if err := s.AddToBalance(ctx, ownerID, accountID, delta); err != nil {
		return err
	}
	metrics.BalanceAdjustments.Inc()
	return nil
}

// =============================================================================
// ENTRY PROTOCOLS
// =============================================================================

// CreateEntry runs the create protocol: persist the entry, then apply its
// contribution to the account, in one transaction.
func (e *Engine) CreateEntry(ctx context.Context, actor Actor, in EntryInput) (Entry, error) {
	entry, err := e.createOne(ctx, actor.ID, in)
	observe("create", err)
	if err != nil {
		return Entry{}, err
	}
	e.recordAudit(ctx, actor, audit.ActionCreate, "entries", entry.ID,
		fmt.Sprintf("entry %q created (%s %s)", entry.Description, entry.Direction, entry.Amount))
	return entry, nil
}

func (e *Engine) createOne(ctx context.Context, ownerID string, in EntryInput) (Entry, error) {
	if err := in.validate(); err != nil {
		return Entry{}, err
	}
	entry := e.newEntry(ownerID, in)
	err := e.store.WithTx(ctx, func(s Store) error {
		if err := s.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return applyDelta(ctx, s, ownerID, entry.AccountID, EntryContribution(entry))
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (e *Engine) newEntry(ownerID string, in EntryInput) Entry {
	return Entry{
		ID:            e.newID(),
		OwnerID:       ownerID,
		AccountID:     in.AccountID,
		Description:   in.Description,
		Amount:        in.Amount,
		Direction:     in.Direction,
		Date:          in.Date,
		Paid:          in.Paid,
		CategoryID:    in.CategoryID,
		SubcategoryID: in.SubcategoryID,
		CreatedAt:     e.now().UTC(),
	}
}

// CreateInstallments expands one request into count entries spaced one
// calendar month apart, descriptions suffixed "(i/count)". All
// installments share the caller's paid flag and commit in one
// transaction; each one still applies its own balance delta, so an
// N-installment paid expense moves the balance by N x amount.
func (e *Engine) CreateInstallments(ctx context.Context, actor Actor, in EntryInput, count int) ([]Entry, error) {
	entries, err := e.expandInstallments(ctx, actor.ID, in, count)
	observe("create_installments", err)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		e.recordAudit(ctx, actor, audit.ActionCreate, "entries", entry.ID,
			fmt.Sprintf("entry %q created (%s %s)", entry.Description, entry.Direction, entry.Amount))
	}
	return entries, nil
}

func (e *Engine) expandInstallments(ctx context.Context, ownerID string, in EntryInput, count int) ([]Entry, error) {
	if count < 2 {
		return nil, &ValidationError{Field: "installments", Reason: "must be at least 2"}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		part := in
		part.Description = fmt.Sprintf("%s (%d/%d)", in.Description, i+1, count)
		part.Date = in.Date.AddMonths(i)
		entries = append(entries, e.newEntry(ownerID, part))
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		for _, entry := range entries {
			if err := s.CreateEntry(ctx, entry); err != nil {
				return err
			}
			if err := applyDelta(ctx, s, ownerID, entry.AccountID, EntryContribution(entry)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.InstallmentsExpanded.Add(float64(count))
	return entries, nil
}

// UpdateEntry runs the update protocol: reverse the old contribution on
// the old account, persist the new field values, apply the new
// contribution on the new account (which may differ). Old-reversal-first,
// all in one transaction.
func (e *Engine) UpdateEntry(ctx context.Context, actor Actor, entryID string, in EntryInput) (Entry, error) {
	var updated Entry
	err := func() error {
		if err := in.validate(); err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(s Store) error {
			old, err := s.GetEntry(ctx, actor.ID, entryID)
			if err != nil {
				return err
			}
			if err := applyDelta(ctx, s, actor.ID, old.AccountID, EntryContribution(old).Neg()); err != nil {
				return err
			}
			updated = old
			updated.Description = in.Description
			updated.Amount = in.Amount
			updated.Direction = in.Direction
			updated.Date = in.Date
			updated.AccountID = in.AccountID
			updated.Paid = in.Paid
			updated.CategoryID = in.CategoryID
			updated.SubcategoryID = in.SubcategoryID
			if err := s.UpdateEntry(ctx, updated); err != nil {
				return err
			}
			return applyDelta(ctx, s, actor.ID, updated.AccountID, EntryContribution(updated))
		})
	}()
	observe("update", err)
	if err != nil {
		return Entry{}, err
	}
	e.recordAudit(ctx, actor, audit.ActionEdit, "entries", updated.ID,
		fmt.Sprintf("entry %q updated", updated.Description))
	return updated, nil
}

// DeleteEntry runs the delete protocol: reverse the contribution, then
// delete the row. Reversal-before-delete keeps the balance correct
// relative to a still-existing entry if the delete fails.
func (e *Engine) DeleteEntry(ctx context.Context, actor Actor, entryID string) error {
	var deleted Entry
	err := e.store.WithTx(ctx, func(s Store) error {
		old, err := s.GetEntry(ctx, actor.ID, entryID)
		if err != nil {
			return err
		}
		if err := applyDelta(ctx, s, actor.ID, old.AccountID, EntryContribution(old).Neg()); err != nil {
			return err
		}
		deleted = old
		return s.DeleteEntry(ctx, actor.ID, entryID)
	})
	observe("delete", err)
	if err != nil {
		return err
	}
	e.recordAudit(ctx, actor, audit.ActionDelete, "entries", deleted.ID,
		fmt.Sprintf("entry %q deleted", deleted.Description))
	return nil
}

// ToggleExpensePaid flips an expense entry's paid flag and applies the
// matching balance delta: becoming paid subtracts the amount (contribution
// goes 0 -> -amount), becoming unpaid adds it back. Rejects non-expense
// entries with ErrInvalidDirection.
func (e *Engine) ToggleExpensePaid(ctx context.Context, actor Actor, entryID string) (Entry, error) {
	var toggled Entry
	err := e.store.WithTx(ctx, func(s Store) error {
		old, err := s.GetEntry(ctx, actor.ID, entryID)
		if err != nil {
			return err
		}
		if old.Direction != DirectionExpense {
			return ErrInvalidDirection
		}
		newPaid := !old.Paid
		delta := Contribution(old.Direction, old.Amount, newPaid).
			Sub(Contribution(old.Direction, old.Amount, old.Paid))
		if err := applyDelta(ctx, s, actor.ID, old.AccountID, delta); err != nil {
			return err
		}
		if err := s.SetEntryPaid(ctx, actor.ID, entryID, newPaid); err != nil {
			return err
		}
		toggled = old
		toggled.Paid = newPaid
		return nil
	})
	observe("toggle_paid", err)
	if err != nil {
		return Entry{}, err
	}
	status := "unpaid"
	if toggled.Paid {
		status = "paid"
	}
	e.recordAudit(ctx, actor, audit.ActionEdit, "entries", toggled.ID,
		fmt.Sprintf("entry %q marked %s", toggled.Description, status))
	return toggled, nil
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) Entry(ctx context.Context, ownerID, entryID string) (Entry, error) {
	return e.store.GetEntry(ctx, ownerID, entryID)
}

func (e *Engine) Entries(ctx context.Context, ownerID string) ([]Entry, error) {
	return e.store.ListEntries(ctx, ownerID)
}

// MonthlyAggregate returns the dashboard projection: summed amounts per
// (year-month, direction), derived from stored entries only.
func (e *Engine) MonthlyAggregate(ctx context.Context, ownerID string) ([]MonthlyTotal, error) {
	return e.store.MonthlyTotals(ctx, ownerID)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount creates an account whose balance is seeded from the
// initial balance. From then on only entry protocols move it.
func (e *Engine) CreateAccount(ctx context.Context, actor Actor, in AccountInput) (Account, error) {
	if err := in.validate(); err != nil {
		return Account{}, err
	}
	account := Account{
		ID:          e.newID(),
		OwnerID:     actor.ID,
		Name:        in.Name,
		Description: in.Description,
		Balance:     in.InitialBalance,
		Kind:        in.Kind,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return Account{}, err
	}
	e.recordAudit(ctx, actor, audit.ActionCreate, "accounts", account.ID,
		fmt.Sprintf("account %q created", account.Name))
	return account, nil
}

// UpdateAccount renames or re-describes an account. The stored balance is
// deliberately untouched: it is derived state owned by the entry
// protocols.
func (e *Engine) UpdateAccount(ctx context.Context, actor Actor, accountID string, in AccountInput) (Account, error) {
	if err := in.validate(); err != nil {
		return Account{}, err
	}
	var updated Account
	err := e.store.WithTx(ctx, func(s Store) error {
		account, err := s.GetAccount(ctx, actor.ID, accountID)
		if err != nil {
			return err
		}
		account.Name = in.Name
		account.Description = in.Description
		account.Kind = in.Kind
		if err := s.UpdateAccount(ctx, account); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	e.recordAudit(ctx, actor, audit.ActionEdit, "accounts", updated.ID,
		fmt.Sprintf("account %q updated", updated.Name))
	return updated, nil
}

// DeleteAccount refuses to delete while entries still reference the
// account.
func (e *Engine) DeleteAccount(ctx context.Context, actor Actor, accountID string) error {
	var name string
	err := e.store.WithTx(ctx, func(s Store) error {
		account, err := s.GetAccount(ctx, actor.ID, accountID)
		if err != nil {
			return err
		}
		count, err := s.CountEntriesByAccount(ctx, actor.ID, accountID)
		if err != nil {
			return err
		}
		if count > 0 {
			return &ReferentialConflictError{Table: "accounts", Blockers: count}
		}
		name = account.Name
		return s.DeleteAccount(ctx, actor.ID, accountID)
	})
	if err != nil {
		return err
	}
	e.recordAudit(ctx, actor, audit.ActionDelete, "accounts", accountID,
		fmt.Sprintf("account %q deleted", name))
	return nil
}

func (e *Engine) Account(ctx context.Context, ownerID, accountID string) (Account, error) {
	return e.store.GetAccount(ctx, ownerID, accountID)
}

func (e *Engine) Accounts(ctx context.Context, ownerID string) ([]Account, error) {
	return e.store.ListAccounts(ctx, ownerID)
}

// =============================================================================
// SUPPORT
// =============================================================================

func observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.EntryMutations.WithLabelValues(op, outcome).Inc()
}

// recordAudit is fire-and-forget: a failed audit write never aborts the
// mutation that triggered it.
func (e *Engine) recordAudit(ctx context.Context, actor Actor, action audit.Action, table, recordID, desc string) {
	rec := audit.Record{
		ID:          e.newID(),
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		Action:      action,
		Table:       table,
		RecordID:    recordID,
		Description: desc,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.audit.Record(ctx, rec); err != nil {
		log.Printf("audit: record %s %s/%s failed: %v", action, table, recordID, err)
	}
}
