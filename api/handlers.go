/*
handlers.go - HTTP API handlers for the shop debt ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the ledger services.

ENDPOINTS:
  Auth:
    POST   /api/auth/register                 Register a customer
    POST   /api/auth/login                    Issue a bearer token
    GET    /api/auth/users                    List all accounts (admin)

  Accounts (admin):
    GET    /api/accounts                      List all accounts
    GET    /api/accounts/{userId}             Current balance
    GET    /api/accounts/{userId}/debt-history
    POST   /api/accounts/{userId}/debt        Set a new balance
    DELETE /api/accounts/{userId}/debt        Clear the balance
    GET    /api/debts/outstanding             Pending totals per customer

  Transactions (authenticated):
    GET    /api/transactions                  ?status=&user=
    POST   /api/transactions                  Record a sale
    GET    /api/transactions/{id}
    PUT    /api/transactions/{id}             {status}

  Catalog:
    GET    /api/products, /api/products/{id}, /api/categories (public)
    POST/PUT/DELETE on the same paths (admin)

  Scenarios (admin):
    GET    /api/scenarios, /api/scenarios/current
    POST   /api/scenarios/load

ARCHITECTURE:
  Handler holds the ledger services built over one ledger.Backend. Access
  control lives in router middleware; handlers assume the caller passed it.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape (JSON types, query params)
  3. Call the ledger service
  4. Serialize response
  5. Map errors to status codes (errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/shopledger/auth"
	"github.com/warp/shopledger/ledger"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Deps are the collaborators a Handler is built from.
type Deps struct {
	Backend ledger.Backend
	Auth    *auth.Service
	Tokens  *auth.Tokens
	Log     *zap.Logger
	// Options are passed to every ledger service.
	Options []ledger.Option
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	backend      ledger.Backend
	debts        *ledger.Debts
	transactions *ledger.Transactions
	catalog      *ledger.Catalog
	auth         *auth.Service
	tokens       *auth.Tokens
	log          *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	opts := append([]ledger.Option{ledger.WithLogger(log)}, d.Options...)
	return &Handler{
		backend:      d.Backend,
		debts:        ledger.NewDebts(d.Backend, opts...),
		transactions: ledger.NewTransactions(d.Backend, opts...),
		catalog:      ledger.NewCatalog(d.Backend, opts...),
		auth:         d.Auth,
		tokens:       d.Tokens,
		log:          log,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ledger.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &ledger.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
}

// parseAmount reads a money field from raw JSON. Absent and null yield nil.
// Quoted numbers are rejected so that "12" and 12 are not confused.
func parseAmount(raw json.RawMessage, field string) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		return nil, &ledger.ValidationError{Field: field, Message: "must be a number"}
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil, &ledger.ValidationError{Field: field, Message: "must be a number"}
	}
	return &d, nil
}
