/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Responses carry amounts as JSON numbers (float64). Requests carry them as
  raw JSON and are parsed straight into decimal.Decimal, so a request amount
  never passes through float64. Amounts given as JSON strings are rejected.

SEE ALSO:
  - handlers.go: request parsing helpers
  - errors.go: ErrorResponse
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shopledger/ledger"
)

// =============================================================================
// ACCOUNTS & DEBT
// =============================================================================

type AccountDTO struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	Role           string     `json:"role"`
	DebtAmount     float64    `json:"debtAmount"`
	LastDebtUpdate *time.Time `json:"lastDebtUpdate,omitempty"`
	Version        int64      `json:"version"`
}

type DebtHistoryEntryDTO struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Date         time.Time `json:"date"`
	Amount       float64   `json:"amount"`
	ChangeAmount float64   `json:"changeAmount"`
	Type         string    `json:"type"`
	Note         string    `json:"note,omitempty"`
}

// AdjustDebtRequest sets a new absolute balance. NewDebtAmount, when given
// and nonzero, is recorded as the size of the change instead of the
// computed difference.
type AdjustDebtRequest struct {
	DebtAmount    json.RawMessage `json:"debtAmount"`
	NewDebtAmount json.RawMessage `json:"newDebtAmount,omitempty"`
	Note          string          `json:"note,omitempty"`
}

type ClearDebtRequest struct {
	Note string `json:"note,omitempty"`
}

// DebtResultDTO confirms a debt mutation. Entry is absent when nothing was
// recorded (clearing a zero balance).
type DebtResultDTO struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Account AccountDTO           `json:"account"`
	Entry   *DebtHistoryEntryDTO `json:"entry,omitempty"`
}

type OutstandingDebtDTO struct {
	User              string    `json:"user"`
	TotalAmount       float64   `json:"totalAmount"`
	TransactionCount  int       `json:"transactionCount"`
	LastTransactionAt time.Time `json:"lastTransactionAt"`
}

// =============================================================================
// AUTH
// =============================================================================

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	Username string `json:"username"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionItemDTO struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

type TransactionDTO struct {
	ID          string               `json:"id"`
	Items       []TransactionItemDTO `json:"items"`
	TotalAmount float64              `json:"totalAmount"`
	User        string               `json:"user"`
	Status      string               `json:"status"`
	CreatedAt   time.Time            `json:"createdAt"`
}

type TransactionItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateTransactionRequest is either itemized (Items) or a bare amount
// (TotalAmount). Items win when both are present.
type CreateTransactionRequest struct {
	User        string                   `json:"user"`
	Items       []TransactionItemRequest `json:"items,omitempty"`
	TotalAmount json.RawMessage          `json:"totalAmount,omitempty"`
}

type UpdateTransactionRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// CATALOG
// =============================================================================

type CategoryDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type CategoryRequest struct {
	Name string `json:"name"`
}

type ProductDTO struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	CategoryID string    `json:"categoryId,omitempty"`
	Price      float64   `json:"price"`
	Quantity   int       `json:"quantity"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ProductRequest struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	CategoryID string          `json:"categoryId,omitempty"`
	Price      json.RawMessage `json:"price"`
	Quantity   int             `json:"quantity"`
	Status     string          `json:"status,omitempty"`
}

type ProductPageResponse struct {
	Data       []ProductDTO `json:"data"`
	Page       int          `json:"page"`
	TotalPages int          `json:"totalPages"`
	TotalItems int          `json:"totalItems"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toAccountDTO(a ledger.Account) AccountDTO {
	dto := AccountDTO{
		ID:         string(a.UserID),
		Email:      a.Email,
		Username:   a.Username,
		Role:       string(a.Role),
		DebtAmount: money(a.DebtAmount),
		Version:    a.Version,
	}
	if !a.LastDebtUpdate.IsZero() {
		t := a.LastDebtUpdate
		dto.LastDebtUpdate = &t
	}
	return dto
}

func toHistoryDTO(e ledger.DebtHistoryEntry) DebtHistoryEntryDTO {
	return DebtHistoryEntryDTO{
		ID:           e.ID,
		UserID:       string(e.UserID),
		Date:         e.Date,
		Amount:       money(e.Amount),
		ChangeAmount: money(e.ChangeAmount),
		Type:         string(e.Type),
		Note:         e.Note,
	}
}

func toDebtResultDTO(res ledger.DebtResult, message string) DebtResultDTO {
	dto := DebtResultDTO{
		Success: true,
		Message: message,
		Account: toAccountDTO(res.Account),
	}
	if res.Entry != nil {
		e := toHistoryDTO(*res.Entry)
		dto.Entry = &e
	}
	return dto
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	items := make([]TransactionItemDTO, 0, len(tx.Items))
	for _, it := range tx.Items {
		items = append(items, TransactionItemDTO{
			ProductID:   string(it.ProductID),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       money(it.Price),
		})
	}
	return TransactionDTO{
		ID:          string(tx.ID),
		Items:       items,
		TotalAmount: money(tx.TotalAmount),
		User:        tx.User,
		Status:      string(tx.Status),
		CreatedAt:   tx.CreatedAt,
	}
}

func toOutstandingDTO(o ledger.OutstandingDebt) OutstandingDebtDTO {
	return OutstandingDebtDTO{
		User:              o.User,
		TotalAmount:       money(o.Total),
		TransactionCount:  o.Count,
		LastTransactionAt: o.LastTransactionAt,
	}
}

func toCategoryDTO(c ledger.Category) CategoryDTO {
	return CategoryDTO{ID: string(c.ID), Name: c.Name, CreatedAt: c.CreatedAt}
}

func toProductDTO(p ledger.Product) ProductDTO {
	return ProductDTO{
		ID:         string(p.ID),
		SKU:        p.SKU,
		Name:       p.Name,
		CategoryID: string(p.CategoryID),
		Price:      money(p.Price),
		Quantity:   p.Quantity,
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt,
	}
}
