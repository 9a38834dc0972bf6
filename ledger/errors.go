/*
errors.go - Centralized error types for the ledger engine

ERROR CATEGORIES:
  1. Not-found errors - Missing or foreign-owned records
  2. Validation errors - Malformed input rejected at the protocol boundary
  3. Conflict errors - Deletions blocked by dependent records

Not-found deliberately covers "exists but belongs to another user": the
engine never reveals whether a foreign record exists.

USAGE:
  Callers classify with errors.Is():

    if errors.Is(err, ledger.ErrValidation) { ... 400 ... }
    if ledger.IsNotFound(err)               { ... 404 ... }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when a referenced account does not
	// exist or is owned by another user.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEntryNotFound is returned when a referenced entry does not exist
	// or is owned by another user.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrCategoryNotFound is returned when a referenced category or
	// subcategory does not exist or is owned by another user.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrValidation is the root of all input-validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidDirection is returned when a paid-toggle is attempted on a
	// non-expense entry. The paid flag is only tracked for expenses.
	ErrInvalidDirection = errors.New("operation only valid for expense entries")

	// ErrReferentialConflict is returned when a deletion is blocked by
	// dependent records (account with entries, category with subcategories).
	ErrReferentialConflict = errors.New("deletion blocked by dependent records")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReferentialConflictError reports how many dependent records block a
// deletion.
type ReferentialConflictError struct {
	Table    string // table of the record being deleted
	Blockers int    // dependent records preventing the deletion
}

func (e *ReferentialConflictError) Error() string {
	return fmt.Sprintf("cannot delete from %s: %d dependent record(s)", e.Table, e.Blockers)
}

func (e *ReferentialConflictError) Unwrap() error { return ErrReferentialConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrReferentialConflict) ||
		IsNotFound(err)
}
