// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/brunogmenezes/financeiro/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	accounts map[string]ledger.Account
	entries  map[string]ledger.Entry
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]ledger.Account),
		entries:  make(map[string]ledger.Entry),
	}
}

// WithTx executes fn within a transaction. For the memory store this is a
// single lock plus snapshot/rollback: the lock serializes writers (no lost
// balance updates), the snapshot restores state when fn fails.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}
	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	accounts := make(map[string]ledger.Account, len(m.accounts))
	for k, v := range m.accounts {
		accounts[k] = v
	}
	entries := make(map[string]ledger.Entry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	return memorySnapshot{accounts: accounts, entries: entries}
}

func (m *Memory) restore(s memorySnapshot) {
	m.accounts = s.accounts
	m.entries = s.entries
}

type memorySnapshot struct {
	accounts map[string]ledger.Account
	entries  map[string]ledger.Entry
}

// --- Accounts ---

func (m *Memory) CreateAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAccountLocked(a)
}

func (m *Memory) createAccountLocked(a ledger.Account) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, ownerID, id string) (ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(ownerID, id)
}

func (m *Memory) getAccountLocked(ownerID, id string) (ledger.Account, error) {
	a, ok := m.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (m *Memory) ListAccounts(_ context.Context, ownerID string) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAccountsLocked(ownerID), nil
}

func (m *Memory) listAccountsLocked(ownerID string) []ledger.Account {
	var out []ledger.Account
	for _, a := range m.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) UpdateAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAccountLocked(a)
}

func (m *Memory) updateAccountLocked(a ledger.Account) error {
	stored, ok := m.accounts[a.ID]
	if !ok || stored.OwnerID != a.OwnerID {
		return ledger.ErrAccountNotFound
	}
	// Balance is owned by AddToBalance; keep the stored value.
	a.Balance = stored.Balance
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) DeleteAccount(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteAccountLocked(ownerID, id)
}

func (m *Memory) deleteAccountLocked(ownerID, id string) error {
	a, ok := m.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return ledger.ErrAccountNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *Memory) AddToBalance(_ context.Context, ownerID, accountID string, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addToBalanceLocked(ownerID, accountID, delta)
}

func (m *Memory) addToBalanceLocked(ownerID, accountID string, delta decimal.Decimal) error {
	a, ok := m.accounts[accountID]
	if !ok || a.OwnerID != ownerID {
		return ledger.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(delta)
	m.accounts[accountID] = a
	return nil
}

func (m *Memory) CountEntriesByAccount(_ context.Context, ownerID, accountID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countEntriesByAccountLocked(ownerID, accountID), nil
}

func (m *Memory) countEntriesByAccountLocked(ownerID, accountID string) int {
	count := 0
	for _, e := range m.entries {
		if e.OwnerID == ownerID && e.AccountID == accountID {
			count++
		}
	}
	return count
}

// --- Entries ---

func (m *Memory) CreateEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createEntryLocked(e)
}

func (m *Memory) createEntryLocked(e ledger.Entry) error {
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) GetEntry(_ context.Context, ownerID, id string) (ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntryLocked(ownerID, id)
}

func (m *Memory) getEntryLocked(ownerID, id string) (ledger.Entry, error) {
	e, ok := m.entries[id]
	if !ok || e.OwnerID != ownerID {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, nil
}

func (m *Memory) ListEntries(_ context.Context, ownerID string) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEntriesLocked(ownerID), nil
}

func (m *Memory) listEntriesLocked(ownerID string) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range m.entries {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	// date descending, then creation descending
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) UpdateEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateEntryLocked(e)
}

func (m *Memory) updateEntryLocked(e ledger.Entry) error {
	stored, ok := m.entries[e.ID]
	if !ok || stored.OwnerID != e.OwnerID {
		return ledger.ErrEntryNotFound
	}
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) SetEntryPaid(_ context.Context, ownerID, id string, paid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setEntryPaidLocked(ownerID, id, paid)
}

func (m *Memory) setEntryPaidLocked(ownerID, id string, paid bool) error {
	e, ok := m.entries[id]
	if !ok || e.OwnerID != ownerID {
		return ledger.ErrEntryNotFound
	}
	e.Paid = paid
	m.entries[id] = e
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEntryLocked(ownerID, id)
}

func (m *Memory) deleteEntryLocked(ownerID, id string) error {
	e, ok := m.entries[id]
	if !ok || e.OwnerID != ownerID {
		return ledger.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

// --- Dashboard projection ---

func (m *Memory) MonthlyTotals(_ context.Context, ownerID string) ([]ledger.MonthlyTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monthlyTotalsLocked(ownerID), nil
}

func (m *Memory) monthlyTotalsLocked(ownerID string) []ledger.MonthlyTotal {
	type bucket struct {
		month     string
		direction ledger.Direction
	}
	totals := make(map[bucket]decimal.Decimal)
	for _, e := range m.entries {
		if e.OwnerID != ownerID {
			continue
		}
		b := bucket{month: e.Date.YearMonth(), direction: e.Direction}
		totals[b] = totals[b].Add(e.Amount)
	}

	out := make([]ledger.MonthlyTotal, 0, len(totals))
	for b, total := range totals {
		out = append(out, ledger.MonthlyTotal{Month: b.month, Direction: b.direction, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// txView is the Store handed to WithTx callbacks. The parent already holds
// its lock, so the view calls the *Locked methods directly. Its own WithTx
// just runs fn against itself: nested transactions join the outer one.
type txView struct {
	parent *Memory
}

func (v *txView) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(v)
}

func (v *txView) CreateAccount(_ context.Context, a ledger.Account) error {
	return v.parent.createAccountLocked(a)
}

func (v *txView) GetAccount(_ context.Context, ownerID, id string) (ledger.Account, error) {
	return v.parent.getAccountLocked(ownerID, id)
}

func (v *txView) ListAccounts(_ context.Context, ownerID string) ([]ledger.Account, error) {
	return v.parent.listAccountsLocked(ownerID), nil
}

func (v *txView) UpdateAccount(_ context.Context, a ledger.Account) error {
	return v.parent.updateAccountLocked(a)
}

func (v *txView) DeleteAccount(_ context.Context, ownerID, id string) error {
	return v.parent.deleteAccountLocked(ownerID, id)
}

func (v *txView) AddToBalance(_ context.Context, ownerID, accountID string, delta decimal.Decimal) error {
	return v.parent.addToBalanceLocked(ownerID, accountID, delta)
}

func (v *txView) CountEntriesByAccount(_ context.Context, ownerID, accountID string) (int, error) {
	return v.parent.countEntriesByAccountLocked(ownerID, accountID), nil
}

func (v *txView) CreateEntry(_ context.Context, e ledger.Entry) error {
	return v.parent.createEntryLocked(e)
}

func (v *txView) GetEntry(_ context.Context, ownerID, id string) (ledger.Entry, error) {
	return v.parent.getEntryLocked(ownerID, id)
}

func (v *txView) ListEntries(_ context.Context, ownerID string) ([]ledger.Entry, error) {
	return v.parent.listEntriesLocked(ownerID), nil
}

func (v *txView) UpdateEntry(_ context.Context, e ledger.Entry) error {
	return v.parent.updateEntryLocked(e)
}

func (v *txView) SetEntryPaid(_ context.Context, ownerID, id string, paid bool) error {
	return v.parent.setEntryPaidLocked(ownerID, id, paid)
}

func (v *txView) DeleteEntry(_ context.Context, ownerID, id string) error {
	return v.parent.deleteEntryLocked(ownerID, id)
}

func (v *txView) MonthlyTotals(_ context.Context, ownerID string) ([]ledger.MonthlyTotal, error) {
	return v.parent.monthlyTotalsLocked(ownerID), nil
}
