/*
store.go - Persistence interfaces for accounts, history, transactions, catalog

PURPOSE:
  Defines the interface between the ledger logic and the database.
  Different implementations use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  AccountStore:     users and their current debt balance
  HistoryStore:     append-only debt history
  TransactionStore: sales and their status
  CatalogStore:     products and categories
  TxStore:          all of the above plus atomic multi-write units

SINGLE MUTATION PRIMITIVE:
  SetDebt is the only way to change Account.DebtAmount. It is a
  compare-and-set on Account.Version: if another writer got there first,
  it fails with ErrConcurrentModification and nothing is written.

ATOMIC UNITS:
  WithTx runs fn against a transactional view of the store. Balance update
  and history append happen inside one WithTx, so either both are durable
  or neither is.

NOT FOUND:
  Getters return a *NotFoundError (errors.Is(err, ErrNotFound)), never
  (nil, nil).

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (default)
  - store/postgres/postgres.go: PostgreSQL via pgx
  - ledger/store/memory.go: in-memory for tests and demos

SEE ALSO:
  - debt.go: uses AccountStore + HistoryStore inside WithTx
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================

type AccountStore interface {
	// CreateUser inserts a user. ErrConflict if email or username is taken.
	CreateUser(ctx context.Context, u User) error

	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListAccounts returns a point-in-time snapshot, in no particular order.
	ListAccounts(ctx context.Context) ([]Account, error)

	// SetDebt sets DebtAmount and LastDebtUpdate if the stored version equals
	// expectedVersion, then bumps the version. Returns the updated account.
	// A negative amount fails with a ValidationError before anything is read.
	SetDebt(ctx context.Context, id UserID, amount decimal.Decimal, expectedVersion int64, at time.Time) (Account, error)
}

// =============================================================================
// HISTORY STORE - Append-only
// =============================================================================

// HistoryStore has no Update and no Delete.
type HistoryStore interface {
	AppendHistory(ctx context.Context, e DebtHistoryEntry) error

	// LoadHistory returns the user's entries, most recent first. Entries with
	// the same date come back in reverse insertion order.
	LoadHistory(ctx context.Context, id UserID) ([]DebtHistoryEntry, error)
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx Transaction) error
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// SetTransactionStatus overwrites the status and returns the updated row.
	SetTransactionStatus(ctx context.Context, id TransactionID, status TransactionStatus) (*Transaction, error)

	// ListTransactions returns matching transactions, newest first.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)

	// EachTransaction streams matching transactions, newest first, stopping at
	// the first error fn returns. fn must not call back into the store.
	EachTransaction(ctx context.Context, f TransactionFilter, fn func(Transaction) error) error
}

// =============================================================================
// CATALOG STORE
// =============================================================================

type CatalogStore interface {
	SaveCategory(ctx context.Context, c Category) error
	GetCategory(ctx context.Context, id CategoryID) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	// DeleteCategory removes the category and detaches its products.
	DeleteCategory(ctx context.Context, id CategoryID) error

	// SaveProduct inserts or replaces a product.
	SaveProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	DeleteProduct(ctx context.Context, id ProductID) error
}

// =============================================================================
// COMPOSITES
// =============================================================================

type Store interface {
	AccountStore
	HistoryStore
	TransactionStore
	CatalogStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Backend is a complete store as opened by the server.
type Backend interface {
	TxStore

	// Reset deletes all data. Development only.
	Reset(ctx context.Context) error
	Close() error
}

// CheckDebtAmount rejects balances below zero. Every SetDebt
// implementation calls it before writing.
func CheckDebtAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &ValidationError{Field: "debtAmount", Message: "must not be negative"}
	}
	return nil
}
