package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/shopledger/auth"
	"github.com/warp/shopledger/ledger"
)

// =============================================================================
// AUTH HANDLERS
// =============================================================================

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     ledger.Role(req.Role),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(u.Account))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:    res.Token,
		UserID:   string(res.User.UserID),
		Role:     string(res.User.Role),
		Username: res.User.Username,
	})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns every account with its current balance.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.debts.Accounts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.debts.Balance(r.Context(), userIDParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acc))
}

// GetDebtHistory returns the user's balance changes, most recent first.
func (h *Handler) GetDebtHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.debts.History(r.Context(), userIDParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]DebtHistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toHistoryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AdjustDebt sets a new absolute balance and records the change.
func (h *Handler) AdjustDebt(w http.ResponseWriter, r *http.Request) {
	var req AdjustDebtRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	amount, err := parseAmount(req.DebtAmount, "debtAmount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if amount == nil {
		h.writeError(w, r, &ledger.ValidationError{Field: "debtAmount", Message: "is required"})
		return
	}
	explicit, err := parseAmount(req.NewDebtAmount, "newDebtAmount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.debts.AdjustDebt(r.Context(), ledger.AdjustDebtInput{
		UserID:               userIDParam(r),
		NewDebtAmount:        *amount,
		ExplicitChangeAmount: explicit,
		Note:                 req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtResultDTO(res, "debt updated"))
}

// ClearDebt zeroes the balance. The body is optional.
func (h *Handler) ClearDebt(w http.ResponseWriter, r *http.Request) {
	var req ClearDebtRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.debts.ClearDebt(r.Context(), userIDParam(r), req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	message := "debt cleared"
	if res.Entry == nil {
		message = "no outstanding debt"
	}
	writeJSON(w, http.StatusOK, toDebtResultDTO(res, message))
}

// ListOutstanding aggregates pending transactions per customer.
func (h *Handler) ListOutstanding(w http.ResponseWriter, r *http.Request) {
	groups, err := h.transactions.ListOutstanding(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]OutstandingDebtDTO, 0, len(groups))
	for _, g := range groups {
		dtos = append(dtos, toOutstandingDTO(g))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func userIDParam(r *http.Request) ledger.UserID {
	return ledger.UserID(chi.URLParam(r, "userId"))
}
