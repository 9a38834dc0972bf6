/*
store.go - Persistence interfaces consumed by the Engine

PURPOSE:
  Defines what the Engine needs from a persistence layer. Implementations:
  - ledger/store: in-memory (tests, dev)
  - store/sqlite: SQLite-backed (production)

THE TRANSACTIONAL CONTRACT:
  Every mutation protocol touches two records (entry + account) that must
  change together. WithTx runs the given function against a transactional
  view of the store: either every write inside commits, or none do. The
  SQLite implementation maps this to a database transaction; the memory
  implementation to a mutex plus snapshot/rollback.

  AddToBalance MUST be atomic with respect to concurrent callers: an
  unguarded read-modify-write of the balance is a lost-update bug. The
  SQLite implementation performs the read-modify-write inside an
  immediate transaction, which serializes writers at BEGIN; the memory
  implementation holds the store lock.

OWNERSHIP:
  Every query takes the owner ID and matches it in the lookup. A record
  owned by another user is indistinguishable from a missing one.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence surface for accounts, entries and the dashboard
// projection.
type Store interface {
	// WithTx executes fn against a transactional view of the store. All
	// writes inside fn commit together or roll back together.
	WithTx(ctx context.Context, fn func(Store) error) error

	// --- Accounts ---

	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, ownerID, id string) (Account, error)
	// ListAccounts returns the owner's accounts, newest first.
	ListAccounts(ctx context.Context, ownerID string) ([]Account, error)
	// UpdateAccount persists name, description and kind. It never writes
	// the balance; only AddToBalance does.
	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, ownerID, id string) error

	// AddToBalance atomically adds delta to the account's stored balance.
	// Returns ErrAccountNotFound if the account does not exist under this
	// owner. A zero delta is a valid call and still performs the
	// existence/ownership check.
	AddToBalance(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error

	// CountEntriesByAccount reports how many entries reference the account
	// (the referential guard for account deletion).
	CountEntriesByAccount(ctx context.Context, ownerID, accountID string) (int, error)

	// --- Entries ---

	CreateEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, ownerID, id string) (Entry, error)
	// ListEntries returns the owner's entries ordered by date descending,
	// then creation descending.
	ListEntries(ctx context.Context, ownerID string) ([]Entry, error)
	UpdateEntry(ctx context.Context, e Entry) error
	SetEntryPaid(ctx context.Context, ownerID, id string, paid bool) error
	DeleteEntry(ctx context.Context, ownerID, id string) error

	// --- Dashboard projection ---

	// MonthlyTotals aggregates SUM(amount) grouped by (year-month,
	// direction) over the owner's stored entries, newest month first.
	// Computed from entries only, independent of Account.Balance.
	MonthlyTotals(ctx context.Context, ownerID string) ([]MonthlyTotal, error)
}

// CategoryStore persists classification labels. Categories never affect
// balances; they live behind a separate interface so the Engine does not
// depend on them.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c Category) error
	ListCategories(ctx context.Context, ownerID string) ([]Category, error)
	UpdateCategory(ctx context.Context, c Category) error
	// DeleteCategory fails with a ReferentialConflictError while
	// subcategories reference the category.
	DeleteCategory(ctx context.Context, ownerID, id string) error

	CreateSubcategory(ctx context.Context, sc Subcategory) error
	ListSubcategories(ctx context.Context, ownerID, categoryID string) ([]Subcategory, error)
	DeleteSubcategory(ctx context.Context, ownerID, id string) error
}
