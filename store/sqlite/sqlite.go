/*
Package sqlite provides the SQLite-backed implementation of the tracker's
storage interfaces.

INTERFACES IMPLEMENTED:
  ledger.Store:          Accounts, entries, balance deltas, monthly totals
  ledger.CategoryStore:  Categories and subcategories
  audit.Log:             Audit trail writes and reads
  auth.UserStore:        User records
  notify.ReminderSource: Unpaid expenses due on a date

TRANSACTIONS:
  WithTx maps the engine's protocol boundary onto one database
  transaction. The connection is opened with _txlock=immediate, so every
  transaction takes the write lock at BEGIN: writers are serialized and a
  balance read-modify-write inside a transaction cannot lose an update to
  a concurrent writer. Combined with _busy_timeout, concurrent protocol
  calls queue instead of failing.

DECIMAL STORAGE:
  Monetary values are stored as decimal text, never REAL. Arithmetic and
  aggregation happen in Go with shopspring/decimal so no floating-point
  drift can enter balances or dashboard totals.

WAL MODE:
  The database is opened with WAL so readers never block behind the
  single writer.

USAGE:
  store, err := sqlite.New("./data/financeiro.db")
  if err != nil { ... }
  defer store.Close()
  engine := ledger.NewEngine(store, store)

MIGRATION:
  Schema is auto-migrated on New(); the statements are idempotent.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/brunogmenezes/financeiro/audit"
	"github.com/brunogmenezes/financeiro/auth"
	"github.com/brunogmenezes/financeiro/ledger"
	"github.com/brunogmenezes/financeiro/notify"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		whatsapp TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		direction TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_categories_owner ON categories(owner_id);

	CREATE TABLE IF NOT EXISTS subcategories (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES categories(id),
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_subcategories_category ON subcategories(category_id);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		date TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 1,
		category_id TEXT NOT NULL DEFAULT '',
		subcategory_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	-- Listing hot path: owner's entries, date desc then created desc
	CREATE INDEX IF NOT EXISTS idx_entries_owner_date
		ON entries(owner_id, date DESC, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_account ON entries(account_id);
	-- Reminder lookup: unpaid expenses due on a date
	CREATE INDEX IF NOT EXISTS idx_entries_due ON entries(direction, paid, date);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		actor_name TEXT NOT NULL,
		action TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx so the row-level
// helpers below serve the plain store and the transactional view alike.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (ledger.Store.WithTx)
// =============================================================================

// WithTx executes fn within a single database transaction. The engine's
// mutation protocols rely on this: entry write and balance write commit
// together or roll back together.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore is the ledger.Store view handed to WithTx callbacks.
type txStore struct {
	q *sql.Tx
}

// WithTx on a transactional view joins the enclosing transaction.
func (t *txStore) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(t)
}

func (t *txStore) CreateAccount(ctx context.Context, a ledger.Account) error {
	return createAccount(ctx, t.q, a)
}
func (t *txStore) GetAccount(ctx context.Context, ownerID, id string) (ledger.Account, error) {
	return getAccount(ctx, t.q, ownerID, id)
}
func (t *txStore) ListAccounts(ctx context.Context, ownerID string) ([]ledger.Account, error) {
	return listAccounts(ctx, t.q, ownerID)
}
func (t *txStore) UpdateAccount(ctx context.Context, a ledger.Account) error {
	return updateAccount(ctx, t.q, a)
}
func (t *txStore) DeleteAccount(ctx context.Context, ownerID, id string) error {
	return deleteAccount(ctx, t.q, ownerID, id)
}
func (t *txStore) AddToBalance(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error {
	return addToBalance(ctx, t.q, ownerID, accountID, delta)
}
func (t *txStore) CountEntriesByAccount(ctx context.Context, ownerID, accountID string) (int, error) {
	return countEntriesByAccount(ctx, t.q, ownerID, accountID)
}
func (t *txStore) CreateEntry(ctx context.Context, e ledger.Entry) error {
	return createEntry(ctx, t.q, e)
}
func (t *txStore) GetEntry(ctx context.Context, ownerID, id string) (ledger.Entry, error) {
	return getEntry(ctx, t.q, ownerID, id)
}
func (t *txStore) ListEntries(ctx context.Context, ownerID string) ([]ledger.Entry, error) {
	return listEntries(ctx, t.q, ownerID)
}
func (t *txStore) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	return updateEntry(ctx, t.q, e)
}
func (t *txStore) SetEntryPaid(ctx context.Context, ownerID, id string, paid bool) error {
	return setEntryPaid(ctx, t.q, ownerID, id, paid)
}
func (t *txStore) DeleteEntry(ctx context.Context, ownerID, id string) error {
	return deleteEntry(ctx, t.q, ownerID, id)
}
func (t *txStore) MonthlyTotals(ctx context.Context, ownerID string) ([]ledger.MonthlyTotal, error) {
	return monthlyTotals(ctx, t.q, ownerID)
}

// =============================================================================
// ACCOUNT STORE (ledger.Store)
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) error {
	return createAccount(ctx, s.db, a)
}

func createAccount(ctx context.Context, q querier, a ledger.Account) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_id, name, description, balance, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, a.Description, a.Balance.String(), string(a.Kind),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, ownerID, id string) (ledger.Account, error) {
	return getAccount(ctx, s.db, ownerID, id)
}

func getAccount(ctx context.Context, q querier, ownerID, id string) (ledger.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, balance, kind, created_at
		FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]ledger.Account, error) {
	return listAccounts(ctx, s.db, ownerID)
}

func listAccounts(ctx context.Context, q querier, ownerID string) ([]ledger.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_id, name, description, balance, kind, created_at
		FROM accounts WHERE owner_id = ?
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, a ledger.Account) error {
	return updateAccount(ctx, s.db, a)
}

// updateAccount persists the descriptive fields only. The balance column
// is owned by addToBalance.
func updateAccount(ctx context.Context, q querier, a ledger.Account) error {
	res, err := q.ExecContext(ctx, `
		UPDATE accounts SET name = ?, description = ?, kind = ?
		WHERE id = ? AND owner_id = ?`,
		a.Name, a.Description, string(a.Kind), a.ID, a.OwnerID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireRow(res, ledger.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, ownerID, id string) error {
	return deleteAccount(ctx, s.db, ownerID, id)
}

func deleteAccount(ctx context.Context, q querier, ownerID, id string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireRow(res, ledger.ErrAccountNotFound)
}

// AddToBalance outside an explicit protocol transaction wraps itself in
// its own immediate transaction so the read-modify-write stays atomic.
func (s *Store) AddToBalance(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error {
	return s.WithTx(ctx, func(txs ledger.Store) error {
		return txs.AddToBalance(ctx, ownerID, accountID, delta)
	})
}

// addToBalance performs the balance increment. Balances are decimal text,
// so the arithmetic happens in Go; callers are inside an immediate
// transaction, which serializes writers and makes the read-modify-write
// safe against lost updates.
func addToBalance(ctx context.Context, q querier, ownerID, accountID string, delta decimal.Decimal) error {
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = ? AND owner_id = ?`,
		accountID, ownerID).Scan(&raw)
	if err == sql.ErrNoRows {
		return ledger.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parse stored balance %q: %w", raw, err)
	}

	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ? AND owner_id = ?`,
		balance.Add(delta).String(), accountID, ownerID)
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return requireRow(res, ledger.ErrAccountNotFound)
}

func (s *Store) CountEntriesByAccount(ctx context.Context, ownerID, accountID string) (int, error) {
	return countEntriesByAccount(ctx, s.db, ownerID, accountID)
}

func countEntriesByAccount(ctx context.Context, q querier, ownerID, accountID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE owner_id = ? AND account_id = ?`,
		ownerID, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

// =============================================================================
// ENTRY STORE (ledger.Store)
// =============================================================================

func (s *Store) CreateEntry(ctx context.Context, e ledger.Entry) error {
	return createEntry(ctx, s.db, e)
}

func createEntry(ctx context.Context, q querier, e ledger.Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO entries
		(id, owner_id, account_id, description, amount, direction, date, paid,
		 category_id, subcategory_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.AccountID, e.Description, e.Amount.String(),
		string(e.Direction), e.Date.String(), boolToInt(e.Paid),
		e.CategoryID, e.SubcategoryID, e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, ownerID, id string) (ledger.Entry, error) {
	return getEntry(ctx, s.db, ownerID, id)
}

func getEntry(ctx context.Context, q querier, ownerID, id string) (ledger.Entry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, owner_id, account_id, description, amount, direction, date, paid,
		       category_id, subcategory_id, created_at
		FROM entries WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanEntry(row)
}

func (s *Store) ListEntries(ctx context.Context, ownerID string) ([]ledger.Entry, error) {
	return listEntries(ctx, s.db, ownerID)
}

func listEntries(ctx context.Context, q querier, ownerID string) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_id, account_id, description, amount, direction, date, paid,
		       category_id, subcategory_id, created_at
		FROM entries WHERE owner_id = ?
		ORDER BY date DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	return updateEntry(ctx, s.db, e)
}

func updateEntry(ctx context.Context, q querier, e ledger.Entry) error {
	res, err := q.ExecContext(ctx, `
		UPDATE entries
		SET account_id = ?, description = ?, amount = ?, direction = ?, date = ?,
		    paid = ?, category_id = ?, subcategory_id = ?
		WHERE id = ? AND owner_id = ?`,
		e.AccountID, e.Description, e.Amount.String(), string(e.Direction),
		e.Date.String(), boolToInt(e.Paid), e.CategoryID, e.SubcategoryID,
		e.ID, e.OwnerID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return requireRow(res, ledger.ErrEntryNotFound)
}

func (s *Store) SetEntryPaid(ctx context.Context, ownerID, id string, paid bool) error {
	return setEntryPaid(ctx, s.db, ownerID, id, paid)
}

func setEntryPaid(ctx context.Context, q querier, ownerID, id string, paid bool) error {
	res, err := q.ExecContext(ctx,
		`UPDATE entries SET paid = ? WHERE id = ? AND owner_id = ?`,
		boolToInt(paid), id, ownerID)
	if err != nil {
		return fmt.Errorf("set entry paid: %w", err)
	}
	return requireRow(res, ledger.ErrEntryNotFound)
}

func (s *Store) DeleteEntry(ctx context.Context, ownerID, id string) error {
	return deleteEntry(ctx, s.db, ownerID, id)
}

func deleteEntry(ctx context.Context, q querier, ownerID, id string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM entries WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return requireRow(res, ledger.ErrEntryNotFound)
}

// =============================================================================
// DASHBOARD PROJECTION
// =============================================================================

func (s *Store) MonthlyTotals(ctx context.Context, ownerID string) ([]ledger.MonthlyTotal, error) {
	return monthlyTotals(ctx, s.db, ownerID)
}

// monthlyTotals groups in SQL but sums in Go: amounts are stored as
// decimal text, and SUM() would coerce them to REAL.
func monthlyTotals(ctx context.Context, q querier, ownerID string) ([]ledger.MonthlyTotal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month, direction, amount
		FROM entries WHERE owner_id = ?
		ORDER BY month DESC, direction ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query monthly totals: %w", err)
	}
	defer rows.Close()

	var out []ledger.MonthlyTotal
	for rows.Next() {
		var month, direction, raw string
		if err := rows.Scan(&month, &direction, &raw); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", raw, err)
		}
		if n := len(out); n > 0 && out[n-1].Month == month && out[n-1].Direction == ledger.Direction(direction) {
			out[n-1].Total = out[n-1].Total.Add(amount)
			continue
		}
		out = append(out, ledger.MonthlyTotal{
			Month:     month,
			Direction: ledger.Direction(direction),
			Total:     amount,
		})
	}
	return out, rows.Err()
}

// =============================================================================
// CATEGORY STORE (ledger.CategoryStore)
// =============================================================================

func (s *Store) CreateCategory(ctx context.Context, c ledger.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, direction, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, string(c.Direction), c.Color,
		c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]ledger.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, direction, color, created_at
		FROM categories WHERE owner_id = ?
		ORDER BY direction, name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []ledger.Category
	for rows.Next() {
		var (
			c         ledger.Category
			direction string
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &direction, &c.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Direction = ledger.Direction(direction)
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Store) UpdateCategory(ctx context.Context, c ledger.Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, direction = ?, color = ?
		WHERE id = ? AND owner_id = ?`,
		c.Name, string(c.Direction), c.Color, c.ID, c.OwnerID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(res, ledger.ErrCategoryNotFound)
}

// DeleteCategory refuses to delete while subcategories reference the
// category.
func (s *Store) DeleteCategory(ctx context.Context, ownerID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var blockers int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subcategories WHERE category_id = ?`, id).Scan(&blockers)
	if err != nil {
		return fmt.Errorf("count subcategories: %w", err)
	}
	if blockers > 0 {
		return &ledger.ReferentialConflictError{Table: "categories", Blockers: blockers}
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := requireRow(res, ledger.ErrCategoryNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CreateSubcategory(ctx context.Context, sc ledger.Subcategory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subcategories (id, category_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sc.ID, sc.CategoryID, sc.Name, sc.Color,
		sc.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert subcategory: %w", err)
	}
	return nil
}

func (s *Store) ListSubcategories(ctx context.Context, ownerID, categoryID string) ([]ledger.Subcategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.id, sc.category_id, sc.name, sc.color, sc.created_at
		FROM subcategories sc
		JOIN categories c ON c.id = sc.category_id
		WHERE c.owner_id = ? AND sc.category_id = ?
		ORDER BY sc.name`, ownerID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("query subcategories: %w", err)
	}
	defer rows.Close()

	var subs []ledger.Subcategory
	for rows.Next() {
		var (
			sc        ledger.Subcategory
			createdAt string
		)
		if err := rows.Scan(&sc.ID, &sc.CategoryID, &sc.Name, &sc.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		sc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		subs = append(subs, sc)
	}
	return subs, rows.Err()
}

func (s *Store) DeleteSubcategory(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM subcategories
		WHERE id = ? AND category_id IN (SELECT id FROM categories WHERE owner_id = ?)`,
		id, ownerID)
	if err != nil {
		return fmt.Errorf("delete subcategory: %w", err)
	}
	return requireRow(res, ledger.ErrCategoryNotFound)
}

// =============================================================================
// AUDIT LOG (audit.Log)
// =============================================================================

func (s *Store) Record(ctx context.Context, rec audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, actor_id, actor_name, action, table_name, record_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ActorID, rec.ActorName, string(rec.Action), rec.Table,
		rec.RecordID, rec.Description, rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, action, table_name, record_id, description, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()
	return scanAuditRecords(rows)
}

func (s *Store) ListByActor(ctx context.Context, actorID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, action, table_name, record_id, description, created_at
		FROM audit_log WHERE actor_id = ? ORDER BY created_at DESC`, actorID)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()
	return scanAuditRecords(rows)
}

func scanAuditRecords(rows *sql.Rows) ([]audit.Record, error) {
	var recs []audit.Record
	for rows.Next() {
		var (
			rec       audit.Record
			action    string
			createdAt string
		)
		err := rows.Scan(&rec.ID, &rec.ActorID, &rec.ActorName, &action,
			&rec.Table, &rec.RecordID, &rec.Description, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Action = audit.Action(action)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// USER STORE (auth.UserStore)
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, whatsapp, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.WhatsApp,
		u.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, whatsapp, created_at
		FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, whatsapp, created_at
		FROM users WHERE email = ?`, email))
}

func scanUser(row *sql.Row) (auth.User, error) {
	var (
		u         auth.User
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.WhatsApp, &createdAt)
	if err == sql.ErrNoRows {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u auth.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, password_hash = ?, whatsapp = ?
		WHERE id = ?`,
		u.Name, u.Email, u.PasswordHash, u.WhatsApp, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res, auth.ErrUserNotFound)
}

// =============================================================================
// REMINDER SOURCE (notify.ReminderSource)
// =============================================================================

// PendingReminders returns the unpaid expenses due on the given date for
// users who registered a WhatsApp number.
func (s *Store) PendingReminders(ctx context.Context, due ledger.Date) ([]notify.PendingReminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.description, e.amount, e.date, u.name, u.whatsapp,
		       COALESCE(a.name, '')
		FROM entries e
		JOIN users u ON u.id = e.owner_id
		LEFT JOIN accounts a ON a.id = e.account_id
		WHERE e.direction = 'expense' AND e.paid = 0 AND e.date = ?
		  AND u.whatsapp <> ''`, due.String())
	if err != nil {
		return nil, fmt.Errorf("query pending reminders: %w", err)
	}
	defer rows.Close()

	var pending []notify.PendingReminder
	for rows.Next() {
		var (
			p       notify.PendingReminder
			rawAmt  string
			rawDate string
		)
		err := rows.Scan(&p.EntryID, &p.Description, &rawAmt, &rawDate,
			&p.OwnerName, &p.WhatsApp, &p.AccountName)
		if err != nil {
			return nil, fmt.Errorf("scan pending reminder: %w", err)
		}
		p.Amount, err = decimal.NewFromString(rawAmt)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", rawAmt, err)
		}
		p.Due, err = ledger.ParseDate(rawDate)
		if err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var (
		a         ledger.Account
		balance   string
		kind      string
		createdAt string
	)
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &balance, &kind, &createdAt)
	if err == sql.ErrNoRows {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("parse stored balance %q: %w", balance, err)
	}
	a.Kind = ledger.AccountKind(kind)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return a, nil
}

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var (
		e         ledger.Entry
		amount    string
		direction string
		date      string
		paid      int
		createdAt string
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.AccountID, &e.Description, &amount,
		&direction, &date, &paid, &e.CategoryID, &e.SubcategoryID, &createdAt)
	if err == sql.ErrNoRows {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	e.Direction = ledger.Direction(direction)
	e.Date, err = ledger.ParseDate(date)
	if err != nil {
		return ledger.Entry{}, err
	}
	e.Paid = paid != 0
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
