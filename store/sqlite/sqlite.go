/*
Package sqlite provides a SQLite-backed implementation of the ledger storage interfaces.

PURPOSE:
  Implements ledger.Backend (accounts, debt history, transactions, catalog)
  using SQLite. The PostgreSQL store in store/postgres follows the same
  layout with dialect differences only.

KEY TABLES:
  users:        one row per user; holds the current debt balance + version
  debt_history: append-only log of balance changes
  transactions: sales, items stored as JSON
  categories:   product categories
  products:     catalog with stock counts

APPEND-ONLY ENFORCEMENT:
  debt_history has no UPDATE path in this package, and a trigger rejects
  any UPDATE issued by hand. Rows are only removed by Reset.

OPTIMISTIC LOCKING:
  SetDebt is "UPDATE ... WHERE id = ? AND version = ?". Zero rows affected
  on an existing user means another writer won: ErrConcurrentModification.

CONCURRENCY:
  The pool is limited to one connection. SQLite allows a single writer
  anyway, and ":memory:" databases are per-connection. WithTx therefore
  serializes with every other call; callbacks must only use the Store
  they are handed.

TIMESTAMPS:
  Stored as fixed-width UTC text (nanosecond precision) so that text
  ordering equals time ordering.

USAGE:
  store, err := sqlite.New("./data/shopledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  debts := ledger.NewDebts(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/shopledger/ledger"
)

// timeLayout is RFC3339 with a fixed nine-digit fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements ledger.Backend using SQLite.
type Store struct {
	conn
	db *sql.DB
}

var _ ledger.Backend = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users and their current debt balance
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
		debt_amount TEXT NOT NULL DEFAULT '0' CHECK (CAST(debt_amount AS REAL) >= 0),
		last_debt_update TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	-- Debt history (append-only)
	CREATE TABLE IF NOT EXISTS debt_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		change_amount TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('increase', 'decrease')),
		note TEXT NOT NULL DEFAULT ''
	);

	-- History reads are always per user, newest first (hot path)
	CREATE INDEX IF NOT EXISTS idx_debt_history_user_date
		ON debt_history(user_id, date DESC, seq DESC);

	CREATE TRIGGER IF NOT EXISTS debt_history_append_only
		BEFORE UPDATE ON debt_history
	BEGIN
		SELECT RAISE(ABORT, 'debt_history is append-only');
	END;

	-- Sales
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		customer TEXT NOT NULL,
		items_json TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'paid')),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_status_created
		ON transactions(status, created_at DESC);

	-- Catalog
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		sku TEXT NOT NULL,
		name TEXT NOT NULL,
		category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		status TEXT NOT NULL CHECK (status IN ('in_stock', 'out_of_stock')),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_category
		ON products(category_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Persist("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	return ledger.Persist("commit", sqlTx.Commit())
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(st ledger.Store) error {
		q := st.(*conn).q
		// Children before parents.
		for _, table := range []string{"debt_history", "transactions", "products", "categories", "users"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return ledger.Persist("reset "+table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// CONN - statements shared by *sql.DB and *sql.Tx
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q queryer
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const userColumns = `id, email, username, password_hash, role, debt_amount, last_debt_update, version, created_at`

func (c *conn) CreateUser(ctx context.Context, u ledger.User) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(u.UserID),
		u.Email,
		u.Username,
		u.PasswordHash,
		string(u.Role),
		u.DebtAmount.String(),
		nullTime(u.LastDebtUpdate),
		u.Version,
		formatTime(u.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: email or username already registered", ledger.ErrConflict)
	}
	return ledger.Persist("create user", err)
}

func (c *conn) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, string(id))
	return c.oneUser(row, string(id))
}

func (c *conn) GetUserByEmail(ctx context.Context, email string) (*ledger.User, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return c.oneUser(row, email)
}

func (c *conn) oneUser(row *sql.Row, key string) (*ledger.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "user", ID: key}
	}
	if err != nil {
		return nil, ledger.Persist("get user", err)
	}
	return &u, nil
}

func (c *conn) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, ledger.Persist("list accounts", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, ledger.Persist("scan account", err)
		}
		accounts = append(accounts, u.Account)
	}
	return accounts, ledger.Persist("list accounts", rows.Err())
}

func (c *conn) SetDebt(ctx context.Context, id ledger.UserID, amount decimal.Decimal, expectedVersion int64, at time.Time) (ledger.Account, error) {
	if err := ledger.CheckDebtAmount(amount); err != nil {
		return ledger.Account{}, err
	}
	res, err := c.q.ExecContext(ctx, `
		UPDATE users
		SET debt_amount = ?, last_debt_update = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, amount.String(), formatTime(at), string(id), expectedVersion)
	if err != nil {
		return ledger.Account{}, ledger.Persist("set debt", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Account{}, ledger.Persist("set debt", err)
	}

	u, err := c.GetUser(ctx, id)
	if err != nil {
		return ledger.Account{}, err
	}
	if n == 0 {
		return ledger.Account{}, ledger.ErrConcurrentModification
	}
	return u.Account, nil
}

// =============================================================================
// DEBT HISTORY
// =============================================================================

func (c *conn) AppendHistory(ctx context.Context, e ledger.DebtHistoryEntry) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO debt_history (id, user_id, date, amount, change_amount, type, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		string(e.UserID),
		formatTime(e.Date),
		e.Amount.String(),
		e.ChangeAmount.String(),
		string(e.Type),
		e.Note,
	)
	if isForeignKeyError(err) {
		return &ledger.NotFoundError{Kind: "user", ID: string(e.UserID)}
	}
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: history entry %s exists", ledger.ErrConflict, e.ID)
	}
	return ledger.Persist("append history", err)
}

func (c *conn) LoadHistory(ctx context.Context, id ledger.UserID) ([]ledger.DebtHistoryEntry, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, user_id, date, amount, change_amount, type, note
		FROM debt_history
		WHERE user_id = ?
		ORDER BY date DESC, seq DESC
	`, string(id))
	if err != nil {
		return nil, ledger.Persist("load history", err)
	}
	defer rows.Close()

	var entries []ledger.DebtHistoryEntry
	for rows.Next() {
		var (
			e                    ledger.DebtHistoryEntry
			userID, date, typ    string
			amount, changeAmount decimal.Decimal
		)
		if err := rows.Scan(&e.ID, &userID, &date, &amount, &changeAmount, &typ, &e.Note); err != nil {
			return nil, ledger.Persist("scan history", err)
		}
		if e.Date, err = parseTime(date); err != nil {
			return nil, ledger.Persist("scan history", err)
		}
		e.UserID = ledger.UserID(userID)
		e.Amount = amount
		e.ChangeAmount = changeAmount
		e.Type = ledger.ChangeType(typ)
		entries = append(entries, e)
	}
	return entries, ledger.Persist("load history", rows.Err())
}

// =============================================================================
// SALES
// =============================================================================

// itemJSON is the stored shape of one transaction line.
type itemJSON struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

const transactionColumns = `id, customer, items_json, total_amount, status, created_at`

func (c *conn) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	items := make([]itemJSON, 0, len(tx.Items))
	for _, it := range tx.Items {
		items = append(items, itemJSON{
			ProductID:   string(it.ProductID),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return ledger.Persist("encode items", err)
	}

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(tx.ID),
		tx.User,
		string(itemsJSON),
		tx.TotalAmount.String(),
		string(tx.Status),
		formatTime(tx.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: transaction %s exists", ledger.ErrConflict, tx.ID)
	}
	return ledger.Persist("insert transaction", err)
}

func (c *conn) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, string(id))
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	if err != nil {
		return nil, ledger.Persist("get transaction", err)
	}
	return &tx, nil
}

func (c *conn) SetTransactionStatus(ctx context.Context, id ledger.TransactionID, status ledger.TransactionStatus) (*ledger.Transaction, error) {
	res, err := c.q.ExecContext(ctx, `UPDATE transactions SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return nil, ledger.Persist("set transaction status", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, ledger.Persist("set transaction status", err)
	} else if n == 0 {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return c.GetTransaction(ctx, id)
}

func (c *conn) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	err := c.EachTransaction(ctx, f, func(tx ledger.Transaction) error {
		out = append(out, tx)
		return nil
	})
	return out, err
}

func (c *conn) EachTransaction(ctx context.Context, f ledger.TransactionFilter, fn func(ledger.Transaction) error) error {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.User != "" {
		where = append(where, "instr(lower(customer), lower(?)) > 0")
		args = append(args, f.User)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.Persist("query transactions", err)
	}
	defer rows.Close()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return ledger.Persist("scan transaction", err)
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	return ledger.Persist("query transactions", rows.Err())
}

// =============================================================================
// CATALOG
// =============================================================================

func (c *conn) SaveCategory(ctx context.Context, cat ledger.Category) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, string(cat.ID), cat.Name, formatTime(cat.CreatedAt))
	return ledger.Persist("save category", err)
}

func (c *conn) GetCategory(ctx context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	var (
		cat     ledger.Category
		catID   string
		created string
	)
	err := c.q.QueryRowContext(ctx, `SELECT id, name, created_at FROM categories WHERE id = ?`, string(id)).
		Scan(&catID, &cat.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "category", ID: string(id)}
	}
	if err != nil {
		return nil, ledger.Persist("get category", err)
	}
	cat.ID = ledger.CategoryID(catID)
	if cat.CreatedAt, err = parseTime(created); err != nil {
		return nil, ledger.Persist("get category", err)
	}
	return &cat, nil
}

func (c *conn) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, name, created_at FROM categories`)
	if err != nil {
		return nil, ledger.Persist("list categories", err)
	}
	defer rows.Close()

	var cats []ledger.Category
	for rows.Next() {
		var (
			cat         ledger.Category
			id, created string
		)
		if err := rows.Scan(&id, &cat.Name, &created); err != nil {
			return nil, ledger.Persist("scan category", err)
		}
		cat.ID = ledger.CategoryID(id)
		if cat.CreatedAt, err = parseTime(created); err != nil {
			return nil, ledger.Persist("scan category", err)
		}
		cats = append(cats, cat)
	}
	return cats, ledger.Persist("list categories", rows.Err())
}

// DeleteCategory relies on ON DELETE SET NULL to detach products.
func (c *conn) DeleteCategory(ctx context.Context, id ledger.CategoryID) error {
	return c.deleteByID(ctx, "categories", "category", string(id))
}

const productColumns = `id, sku, name, category_id, price, quantity, status, created_at`

func (c *conn) SaveProduct(ctx context.Context, p ledger.Product) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sku = excluded.sku,
			name = excluded.name,
			category_id = excluded.category_id,
			price = excluded.price,
			quantity = excluded.quantity,
			status = excluded.status
	`,
		string(p.ID),
		p.SKU,
		p.Name,
		nullString(string(p.CategoryID)),
		p.Price.String(),
		p.Quantity,
		string(p.Status),
		formatTime(p.CreatedAt),
	)
	if isForeignKeyError(err) {
		return &ledger.ValidationError{Field: "category", Message: "unknown category"}
	}
	return ledger.Persist("save product", err)
}

func (c *conn) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, string(id))
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "product", ID: string(id)}
	}
	if err != nil {
		return nil, ledger.Persist("get product", err)
	}
	return &p, nil
}

func (c *conn) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products`)
	if err != nil {
		return nil, ledger.Persist("list products", err)
	}
	defer rows.Close()

	var products []ledger.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, ledger.Persist("scan product", err)
		}
		products = append(products, p)
	}
	return products, ledger.Persist("list products", rows.Err())
}

func (c *conn) DeleteProduct(ctx context.Context, id ledger.ProductID) error {
	return c.deleteByID(ctx, "products", "product", string(id))
}

func (c *conn) deleteByID(ctx context.Context, table, kind, id string) error {
	res, err := c.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return ledger.Persist("delete "+kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Persist("delete "+kind, err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (ledger.User, error) {
	var (
		u                 ledger.User
		id, role, created string
		debt              decimal.Decimal
		lastUpdate        sql.NullString
	)
	err := row.Scan(&id, &u.Email, &u.Username, &u.PasswordHash, &role, &debt, &lastUpdate, &u.Version, &created)
	if err != nil {
		return ledger.User{}, err
	}
	u.UserID = ledger.UserID(id)
	u.Role = ledger.Role(role)
	u.DebtAmount = debt
	if lastUpdate.Valid {
		if u.LastDebtUpdate, err = parseTime(lastUpdate.String); err != nil {
			return ledger.User{}, err
		}
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		tx                               ledger.Transaction
		id, itemsJSON, status, createdAt string
		total                            decimal.Decimal
	)
	if err := row.Scan(&id, &tx.User, &itemsJSON, &total, &status, &createdAt); err != nil {
		return ledger.Transaction{}, err
	}

	var items []itemJSON
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return ledger.Transaction{}, fmt.Errorf("decode items of %s: %w", id, err)
	}
	tx.Items = make([]ledger.TransactionItem, 0, len(items))
	for _, it := range items {
		tx.Items = append(tx.Items, ledger.TransactionItem{
			ProductID:   ledger.ProductID(it.ProductID),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx.ID = ledger.TransactionID(id)
	tx.TotalAmount = total
	tx.Status = ledger.TransactionStatus(status)
	tx.CreatedAt = created
	return tx, nil
}

func scanProduct(row scanner) (ledger.Product, error) {
	var (
		p                     ledger.Product
		id, status, createdAt string
		categoryID            sql.NullString
		price                 decimal.Decimal
	)
	if err := row.Scan(&id, &p.SKU, &p.Name, &categoryID, &price, &p.Quantity, &status, &createdAt); err != nil {
		return ledger.Product{}, err
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return ledger.Product{}, err
	}
	p.ID = ledger.ProductID(id)
	p.CategoryID = ledger.CategoryID(categoryID.String)
	p.Price = price
	p.Status = ledger.ProductStatus(status)
	p.CreatedAt = created
	return p, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
