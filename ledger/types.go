/*
Package ledger contains the core domain of the finance tracker: accounts
with a running balance, the entries posted against them, and the engine
that keeps the two consistent.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A bank-like account with a mutable running balance
  - Entry: A single dated financial movement (income, expense, neutral)
  - Direction: Three-way classification that determines balance effect
  - Category/Subcategory: Classification labels carried by entries

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every monetary value, never float64
  2. Direction over sign: Entry.Amount is strictly positive; the balance
     effect comes from Direction and the paid flag (see contribution.go)
  3. Ownership: every record carries an OwnerID; the engine never crosses
     owner boundaries
  4. Derived state: Account.Balance is mutated exclusively by the Engine
     in response to entry lifecycle events

SEE ALSO:
  - contribution.go: The pure balance-contribution function
  - engine.go: The mutation protocols (create/update/delete/toggle)
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTION - Three-way classification of an entry
// =============================================================================

type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
	DirectionNeutral Direction = "neutral"
)

// ParseDirection validates a direction string from an external boundary.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionIncome, DirectionExpense, DirectionNeutral:
		return Direction(s), nil
	}
	return "", &ValidationError{Field: "direction", Reason: "must be income, expense or neutral"}
}

// =============================================================================
// ACCOUNT - Mutable running balance, owned by one user
// =============================================================================

type AccountKind string

const (
	AccountChecking   AccountKind = "checking"
	AccountSavings    AccountKind = "savings"
	AccountInvestment AccountKind = "investment"
)

func ParseAccountKind(s string) (AccountKind, error) {
	switch AccountKind(s) {
	case AccountChecking, AccountSavings, AccountInvestment:
		return AccountKind(s), nil
	}
	return "", &ValidationError{Field: "kind", Reason: "must be checking, savings or investment"}
}

// Account holds a derived balance.
//
// INVARIANT: at any quiescent point,
//
//	Balance == initial balance at creation
//	         + Σ Contribution(e.Direction, e.Amount, e.Paid)
//	           over all entries currently referencing this account.
//
// Only the Engine writes Balance. Account update requests may rename or
// re-describe an account but never set the balance directly.
type Account struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Balance     decimal.Decimal
	Kind        AccountKind
	CreatedAt   time.Time
}

// =============================================================================
// ENTRY - A single dated financial movement
// =============================================================================

// Entry is one financial movement posted against an account.
//
// Amount is strictly positive; Direction carries the sign. Paid is only
// meaningful for expenses: an unpaid expense exists in listings and
// reminders but contributes nothing to the account balance.
type Entry struct {
	ID            string
	OwnerID       string
	AccountID     string
	Description   string
	Amount        decimal.Decimal
	Direction     Direction
	Date          Date
	Paid          bool
	CategoryID    string // optional, "" when unset
	SubcategoryID string // optional, "" when unset
	CreatedAt     time.Time
}

// =============================================================================
// CATEGORY / SUBCATEGORY - Classification only, no balance effect
// =============================================================================

type Category struct {
	ID        string
	OwnerID   string
	Name      string
	Direction Direction
	Color     string
	CreatedAt time.Time
}

type Subcategory struct {
	ID         string
	CategoryID string
	Name       string
	Color      string
	CreatedAt  time.Time
}

// =============================================================================
// MONTHLY TOTAL - Dashboard projection
// =============================================================================

// MonthlyTotal is one row of the dashboard aggregate: the summed amount of
// all entries in one calendar month with one direction. It is computed from
// stored entries directly, never from Account.Balance, so it doubles as an
// independent consistency check.
type MonthlyTotal struct {
	Month     string // "2006-01"
	Direction Direction
	Total     decimal.Decimal
}

// Actor identifies who is performing a mutation, for audit trail purposes.
type Actor struct {
	ID   string
	Name string
}
