package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/shopledger/ledger"
)

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions supports ?status=pending|paid and ?user=<substring>.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.TransactionFilter{User: q.Get("user")}
	if s := q.Get("status"); s != "" {
		status, err := ledger.ParseTransactionStatus(s)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Status = status
	}

	txs, err := h.transactions.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	total, err := parseAmount(req.TotalAmount, "totalAmount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]ledger.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ledger.ItemInput{ProductID: ledger.ProductID(it.ProductID), Quantity: it.Quantity})
	}

	tx, err := h.transactions.Create(r.Context(), ledger.NewTransactionInput{
		User:        req.User,
		Items:       items,
		TotalAmount: total,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactions.Get(r.Context(), ledger.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// UpdateTransaction changes status. Setting paid settles the transaction;
// it never touches the customer's account balance.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := ledger.ParseTransactionStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tx, err := h.transactions.UpdateStatus(r.Context(), ledger.TransactionID(chi.URLParam(r, "id")), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}
