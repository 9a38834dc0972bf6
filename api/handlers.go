/*
handlers.go - HTTP handlers for the finance tracker

ENDPOINTS:
  Auth (public):
    POST   /api/auth/register          Create user
    POST   /api/auth/login             Issue session token

  Everything below requires a Bearer token.

  Accounts:
    GET    /api/accounts               List accounts (with live balances)
    POST   /api/accounts               Create account
    GET    /api/accounts/{id}          Get one account
    PUT    /api/accounts/{id}          Rename/re-describe (never sets balance)
    DELETE /api/accounts/{id}          Refused while entries reference it

  Entries:
    GET    /api/entries                List, date desc then created desc
    POST   /api/entries                Create (or expand installments)
    GET    /api/entries/dashboard      Monthly totals by direction
    GET    /api/entries/{id}           Get one entry
    PUT    /api/entries/{id}           Full update (may move accounts)
    PATCH  /api/entries/{id}/toggle-paid  Flip an expense's paid flag
    DELETE /api/entries/{id}           Delete and reverse its contribution

  Categories:
    GET/POST       /api/categories
    PUT/DELETE     /api/categories/{id}
    GET/POST       /api/categories/{id}/subcategories
    DELETE         /api/subcategories/{id}

  Audit:
    GET    /api/audit                  Latest records (500 max)
    GET    /api/audit/user/{id}        One actor's records

  Profile:
    GET    /api/profile
    PUT    /api/profile/whatsapp       Set reminder phone number

ERROR MAPPING:
  400  validation, invalid direction
  401  missing/invalid token (middleware)
  404  account/entry/category not found (covers foreign-owned records)
  409  referential conflict, email taken
  500  everything else
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brunogmenezes/financeiro/audit"
	"github.com/brunogmenezes/financeiro/auth"
	"github.com/brunogmenezes/financeiro/ledger"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	Engine     *ledger.Engine
	Categories ledger.CategoryStore
	Auth       *auth.Service
	Audit      audit.Log
}

func NewHandler(engine *ledger.Engine, categories ledger.CategoryStore, authSvc *auth.Service, auditLog audit.Log) *Handler {
	return &Handler{Engine: engine, Categories: categories, Auth: authSvc, Audit: auditLog}
}

func actor(r *http.Request) ledger.Actor {
	id, _ := auth.FromContext(r.Context())
	return ledger.Actor{ID: id.UserID, Name: id.Name}
}

// =============================================================================
// AUTH
// =============================================================================

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.Auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, u, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserDTO(u)})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.User(r.Context(), actor(r).ID)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) SetWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req whatsappRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.Auth.SetWhatsApp(r.Context(), actor(r).ID, req.Number)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Engine.Accounts(r.Context(), actor(r).ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]accountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := h.Engine.CreateAccount(r.Context(), actor(r), ledger.AccountInput{
		Name:           req.Name,
		Description:    req.Description,
		Kind:           ledger.AccountKind(req.Kind),
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.Engine.Account(r.Context(), actor(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := h.Engine.UpdateAccount(r.Context(), actor(r), chi.URLParam(r, "id"), ledger.AccountInput{
		Name:        req.Name,
		Description: req.Description,
		Kind:        ledger.AccountKind(req.Kind),
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteAccount(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

// =============================================================================
// ENTRIES
// =============================================================================

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.Entries(r.Context(), actor(r).ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Engine.Entry(r.Context(), actor(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// CreateEntry creates a single entry, or expands an installment request
// into monthly entries. An installment flag with a count below 2 routes
// to the plain create path.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	if req.Installment && req.Installments >= 2 {
		entries, err := h.Engine.CreateInstallments(r.Context(), actor(r), in, req.Installments)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEntryDTOs(entries))
		return
	}

	entry, err := h.Engine.CreateEntry(r.Context(), actor(r), in)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	entry, err := h.Engine.UpdateEntry(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

func (h *Handler) TogglePaid(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Engine.ToggleExpensePaid(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteEntry(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "entry deleted"})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Engine.MonthlyAggregate(r.Context(), actor(r).ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]monthlyTotalDTO, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthlyTotalDTO{Month: t.Month, Direction: string(t.Direction), Total: t.Total})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Categories.ListCategories(r.Context(), actor(r).ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	direction, err := ledger.ParseDirection(req.Direction)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	c := ledger.Category{
		ID:        uuid.NewString(),
		OwnerID:   actor(r).ID,
		Name:      req.Name,
		Direction: direction,
		Color:     req.Color,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Categories.CreateCategory(r.Context(), c); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	direction, err := ledger.ParseDirection(req.Direction)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	c := ledger.Category{
		ID:        chi.URLParam(r, "id"),
		OwnerID:   actor(r).ID,
		Name:      req.Name,
		Direction: direction,
		Color:     req.Color,
	}
	if err := h.Categories.UpdateCategory(r.Context(), c); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(c))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Categories.DeleteCategory(r.Context(), actor(r).ID, chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}

func (h *Handler) ListSubcategories(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Categories.ListSubcategories(r.Context(), actor(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]subcategoryDTO, 0, len(subs))
	for _, sc := range subs {
		out = append(out, toSubcategoryDTO(sc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateSubcategory(w http.ResponseWriter, r *http.Request) {
	var req subcategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sc := ledger.Subcategory{
		ID:         uuid.NewString(),
		CategoryID: chi.URLParam(r, "id"),
		Name:       req.Name,
		Color:      req.Color,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Categories.CreateSubcategory(r.Context(), sc); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubcategoryDTO(sc))
}

func (h *Handler) DeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Categories.DeleteSubcategory(r.Context(), actor(r).ID, chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "subcategory deleted"})
}

// =============================================================================
// AUDIT
// =============================================================================

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Audit.List(r.Context(), 500)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]auditDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toAuditDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListAuditByUser(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Audit.ListByActor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]auditDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toAuditDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrInvalidDirection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrReferentialConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("api: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("api: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
