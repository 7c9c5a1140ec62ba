/*
Package ledger provides the debt ledger core of the shop.

PURPOSE:
  Tracks how much each customer owes the shop. Two independent views of
  debt exist side by side:

  - Account.DebtAmount: the manually maintained balance, changed only
    through Debts.AdjustDebt / Debts.ClearDebt. Every change appends one
    DebtHistoryEntry.
  - Pending transactions: itemized sales that have not been paid yet.
    Transactions.ListOutstanding aggregates them per customer.

  The two views are NOT reconciled against each other. Settling a
  transaction does not touch any Account, and adjusting an Account does
  not touch any transaction. Callers coordinate both when needed.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account / User: identity, role and current debt balance
  - DebtHistoryEntry: immutable record of one balance change
  - Transaction: a sale with a pending -> paid lifecycle
  - Product / Category: catalog records referenced by transaction items

DESIGN PRINCIPLES:
  1. Precision: money uses decimal.Decimal, never float64
  2. Type Safety: distinct ID types for users, transactions, products
  3. Append-only history: entries are written once and never edited

SEE ALSO:
  - debt.go: balance mutation and history recording
  - transactions.go: sale creation and settlement
  - outstanding.go: pending-transaction aggregation
  - store.go: persistence interfaces
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TransactionID string
type ProductID string
type CategoryID string

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// =============================================================================
// ACCOUNT - Current debt state of one user
// =============================================================================

// Account is the "current state" row of the ledger: one per user.
//
// INVARIANTS:
//   - DebtAmount >= 0 at all times (negative writes are rejected, not clamped)
//   - Version increases by one on every debt mutation
type Account struct {
	UserID         UserID
	Email          string
	Username       string
	Role           Role
	DebtAmount     decimal.Decimal
	LastDebtUpdate time.Time
	Version        int64
}

// User is an Account plus its credentials.
type User struct {
	Account
	PasswordHash string
	CreatedAt    time.Time
}

// =============================================================================
// DEBT HISTORY
// =============================================================================

type ChangeType string

const (
	ChangeIncrease ChangeType = "increase"
	ChangeDecrease ChangeType = "decrease"
)

// DebtHistoryEntry records one balance change.
// Amount is the balance AFTER the change; ChangeAmount is always >= 0.
type DebtHistoryEntry struct {
	ID           string
	UserID       UserID
	Date         time.Time
	Amount       decimal.Decimal
	ChangeAmount decimal.Decimal
	Type         ChangeType
	Note         string
}

// =============================================================================
// TRANSACTIONS - Sales with a pending -> paid lifecycle
// =============================================================================

type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusPaid    TransactionStatus = "paid"
)

// ParseTransactionStatus validates a status string from the outside world.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch TransactionStatus(s) {
	case StatusPending, StatusPaid:
		return TransactionStatus(s), nil
	}
	return "", &ValidationError{
		Field:   "status",
		Message: fmt.Sprintf("invalid status %q: must be pending or paid", s),
	}
}

// TransactionItem is one line of a sale. Price is the line total
// (unit price x quantity) captured when the sale was made.
type TransactionItem struct {
	ProductID   ProductID
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// Transaction is a sale. User is a display name, not a foreign key.
type Transaction struct {
	ID          TransactionID
	Items       []TransactionItem
	TotalAmount decimal.Decimal
	User        string
	Status      TransactionStatus
	CreatedAt   time.Time
}

// TransactionFilter selects transactions. Zero values match everything.
type TransactionFilter struct {
	Status TransactionStatus
	// User matches case-insensitively anywhere in Transaction.User.
	User string
}

// Matches reports whether tx passes the filter.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.User != "" && !strings.Contains(strings.ToLower(tx.User), strings.ToLower(f.User)) {
		return false
	}
	return true
}

// =============================================================================
// CATALOG
// =============================================================================

type ProductStatus string

const (
	ProductInStock    ProductStatus = "in_stock"
	ProductOutOfStock ProductStatus = "out_of_stock"
)

type Category struct {
	ID        CategoryID
	Name      string
	CreatedAt time.Time
}

type Product struct {
	ID         ProductID
	SKU        string
	Name       string
	CategoryID CategoryID // empty when uncategorized
	Price      decimal.Decimal
	Quantity   int
	Status     ProductStatus
	CreatedAt  time.Time
}
