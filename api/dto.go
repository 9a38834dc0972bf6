/*
dto.go - Request and response types for the HTTP API

These types decouple the domain model from the wire contract. Amounts are
shopspring decimals, which accept both JSON numbers and quoted strings on
input. Dates travel as "YYYY-MM-DD".

The paid flag is a *bool on input: absent means true. That defaulting
happens here, at the outermost parsing layer — the engine only ever sees
an explicit bool.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brunogmenezes/financeiro/audit"
	"github.com/brunogmenezes/financeiro/auth"
	"github.com/brunogmenezes/financeiro/ledger"
)

// =============================================================================
// AUTH
// =============================================================================

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

func toUserDTO(u auth.User) userDTO {
	return userDTO{ID: u.ID, Name: u.Name, Email: u.Email, WhatsApp: u.WhatsApp}
}

type whatsappRequest struct {
	Number string `json:"number"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type accountRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Kind           string          `json:"kind"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type accountDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	Kind        string          `json:"kind"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toAccountDTO(a ledger.Account) accountDTO {
	return accountDTO{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Balance:     a.Balance,
		Kind:        string(a.Kind),
		CreatedAt:   a.CreatedAt,
	}
}

// =============================================================================
// ENTRIES
// =============================================================================

type entryRequest struct {
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	Date          string          `json:"date"`
	AccountID     string          `json:"account_id"`
	Paid          *bool           `json:"paid"` // nil means true
	CategoryID    string          `json:"category_id"`
	SubcategoryID string          `json:"subcategory_id"`

	// Installment expansion: when Installment is true and Installments is
	// at least 2, the request creates that many monthly entries.
	Installment  bool `json:"installment"`
	Installments int  `json:"installments"`
}

func (r entryRequest) toInput() (ledger.EntryInput, error) {
	date, err := ledger.ParseDate(r.Date)
	if err != nil {
		return ledger.EntryInput{}, err
	}
	paid := true
	if r.Paid != nil {
		paid = *r.Paid
	}
	return ledger.EntryInput{
		Description:   r.Description,
		Amount:        r.Amount,
		Direction:     ledger.Direction(r.Direction),
		Date:          date,
		AccountID:     r.AccountID,
		Paid:          paid,
		CategoryID:    r.CategoryID,
		SubcategoryID: r.SubcategoryID,
	}, nil
}

type entryDTO struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	Date          string          `json:"date"`
	Paid          bool            `json:"paid"`
	CategoryID    string          `json:"category_id,omitempty"`
	SubcategoryID string          `json:"subcategory_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toEntryDTO(e ledger.Entry) entryDTO {
	return entryDTO{
		ID:            e.ID,
		AccountID:     e.AccountID,
		Description:   e.Description,
		Amount:        e.Amount,
		Direction:     string(e.Direction),
		Date:          e.Date.String(),
		Paid:          e.Paid,
		CategoryID:    e.CategoryID,
		SubcategoryID: e.SubcategoryID,
		CreatedAt:     e.CreatedAt,
	}
}

func toEntryDTOs(entries []ledger.Entry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	return out
}

type monthlyTotalDTO struct {
	Month     string          `json:"month"`
	Direction string          `json:"direction"`
	Total     decimal.Decimal `json:"total"`
}

// =============================================================================
// CATEGORIES
// =============================================================================

type categoryRequest struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Color     string `json:"color"`
}

type categoryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Color     string `json:"color,omitempty"`
}

func toCategoryDTO(c ledger.Category) categoryDTO {
	return categoryDTO{ID: c.ID, Name: c.Name, Direction: string(c.Direction), Color: c.Color}
}

type subcategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type subcategoryDTO struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
}

func toSubcategoryDTO(sc ledger.Subcategory) subcategoryDTO {
	return subcategoryDTO{ID: sc.ID, CategoryID: sc.CategoryID, Name: sc.Name, Color: sc.Color}
}

// =============================================================================
// AUDIT
// =============================================================================

type auditDTO struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	Action      string    `json:"action"`
	Table       string    `json:"table"`
	RecordID    string    `json:"record_id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAuditDTO(rec audit.Record) auditDTO {
	return auditDTO{
		ID:          rec.ID,
		ActorID:     rec.ActorID,
		ActorName:   rec.ActorName,
		Action:      string(rec.Action),
		Table:       rec.Table,
		RecordID:    rec.RecordID,
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
