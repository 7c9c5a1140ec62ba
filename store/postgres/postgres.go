/*
Package postgres provides a PostgreSQL-backed implementation of ledger.Backend.

PURPOSE:
  Same contract as store/sqlite, for deployments that share one database
  between several server instances.

SCHEMA:
  Versioned SQL files under migrations/ are embedded into the binary and
  applied in name order on New. Applied files are recorded in
  schema_migrations and never re-run.

MONEY:
  Amounts are NUMERIC columns. They cross the wire as text
  ($n::text::numeric on the way in, col::text on the way out) so no value
  passes through float64.

OPTIMISTIC LOCKING:
  SetDebt is "UPDATE ... WHERE id = $ AND version = $ RETURNING ...".
  Under READ COMMITTED a concurrent writer blocks on the row lock, then
  re-checks the version and finds it moved.

SEE ALSO:
  - store/sqlite/sqlite.go: the default store
  - ledger/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/shopledger/ledger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements ledger.Backend on a pgx connection pool.
type Store struct {
	conn
	pool *pgxpool.Pool
}

var _ ledger.Backend = (*Store)(nil)

// New connects, pings and migrates.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{conn: conn{q: pool}, pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// WithTx runs fn in one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		fnErr = fn(&conn{q: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return ledger.Persist("transaction", err)
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		TRUNCATE debt_history, transactions, products, categories, users RESTART IDENTITY CASCADE
	`)
	return ledger.Persist("reset", err)
}

// =============================================================================
// MIGRATIONS
// =============================================================================

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		body, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(body))
		if sqlText == "" {
			return errors.New("empty migration: " + name)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, sqlText); err != nil {
				return fmt.Errorf("migration %s failed: %w", name, err)
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// CONN - statements shared by the pool and pgx.Tx
// =============================================================================

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type conn struct {
	q querier
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const userColumns = `id, email, username, password_hash, role, debt_amount::text, last_debt_update, version, created_at`

func (c *conn) CreateUser(ctx context.Context, u ledger.User) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash, role, debt_amount, last_debt_update, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9)
	`,
		string(u.UserID),
		u.Email,
		u.Username,
		u.PasswordHash,
		string(u.Role),
		u.DebtAmount.String(),
		nullTime(u.LastDebtUpdate),
		u.Version,
		u.CreatedAt,
	)
	if pgCode(err) == codeUniqueViolation {
		return fmt.Errorf("%w: email or username already registered", ledger.ErrConflict)
	}
	return ledger.Persist("create user", err)
}

func (c *conn) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	row := c.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id))
	return oneUser(row, string(id))
}

func (c *conn) GetUserByEmail(ctx context.Context, email string) (*ledger.User, error) {
	row := c.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return oneUser(row, email)
}

func oneUser(row pgx.Row, key string) (*ledger.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "user", ID: key}
	}
	if err != nil {
		return nil, ledger.Persist("get user", err)
	}
	return &u, nil
}

func (c *conn) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := c.q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
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
	row := c.q.QueryRow(ctx, `
		UPDATE users
		SET debt_amount = $1::text::numeric, last_debt_update = $2, version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING `+userColumns,
		amount.String(), at, string(id), expectedVersion,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user is gone or the version moved.
		if _, err := c.GetUser(ctx, id); err != nil {
			return ledger.Account{}, err
		}
		return ledger.Account{}, ledger.ErrConcurrentModification
	}
	if err != nil {
		return ledger.Account{}, ledger.Persist("set debt", err)
	}
	return u.Account, nil
}

// =============================================================================
// DEBT HISTORY
// =============================================================================

func (c *conn) AppendHistory(ctx context.Context, e ledger.DebtHistoryEntry) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO debt_history (id, user_id, date, amount, change_amount, type, note)
		VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6, $7)
	`,
		e.ID,
		string(e.UserID),
		e.Date,
		e.Amount.String(),
		e.ChangeAmount.String(),
		string(e.Type),
		e.Note,
	)
	switch pgCode(err) {
	case codeForeignKeyViolation:
		return &ledger.NotFoundError{Kind: "user", ID: string(e.UserID)}
	case codeUniqueViolation:
		return fmt.Errorf("%w: history entry %s exists", ledger.ErrConflict, e.ID)
	}
	return ledger.Persist("append history", err)
}

func (c *conn) LoadHistory(ctx context.Context, id ledger.UserID) ([]ledger.DebtHistoryEntry, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, user_id, date, amount::text, change_amount::text, type, note
		FROM debt_history
		WHERE user_id = $1
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
			userID, typ          string
			amount, changeAmount string
		)
		if err := rows.Scan(&e.ID, &userID, &e.Date, &amount, &changeAmount, &typ, &e.Note); err != nil {
			return nil, ledger.Persist("scan history", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, ledger.Persist("scan history", err)
		}
		if e.ChangeAmount, err = decimal.NewFromString(changeAmount); err != nil {
			return nil, ledger.Persist("scan history", err)
		}
		e.UserID = ledger.UserID(userID)
		e.Type = ledger.ChangeType(typ)
		e.Date = e.Date.UTC()
		entries = append(entries, e)
	}
	return entries, ledger.Persist("load history", rows.Err())
}

// =============================================================================
// SALES
// =============================================================================

type itemJSON struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

const transactionColumns = `id, customer, items::text, total_amount::text, status, created_at`

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

	_, err = c.q.Exec(ctx, `
		INSERT INTO transactions (id, customer, items, total_amount, status, created_at)
		VALUES ($1, $2, $3::text::jsonb, $4::text::numeric, $5, $6)
	`,
		string(tx.ID),
		tx.User,
		string(itemsJSON),
		tx.TotalAmount.String(),
		string(tx.Status),
		tx.CreatedAt,
	)
	if pgCode(err) == codeUniqueViolation {
		return fmt.Errorf("%w: transaction %s exists", ledger.ErrConflict, tx.ID)
	}
	return ledger.Persist("insert transaction", err)
}

func (c *conn) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	row := c.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, string(id))
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	if err != nil {
		return nil, ledger.Persist("get transaction", err)
	}
	return &tx, nil
}

func (c *conn) SetTransactionStatus(ctx context.Context, id ledger.TransactionID, status ledger.TransactionStatus) (*ledger.Transaction, error) {
	row := c.q.QueryRow(ctx, `
		UPDATE transactions SET status = $1 WHERE id = $2
		RETURNING `+transactionColumns,
		string(status), string(id),
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	if err != nil {
		return nil, ledger.Persist("set transaction status", err)
	}
	return &tx, nil
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
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.User != "" {
		args = append(args, f.User)
		where = append(where, fmt.Sprintf("strpos(lower(customer), lower($%d)) > 0", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"

	rows, err := c.q.Query(ctx, query, args...)
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
	_, err := c.q.Exec(ctx, `
		INSERT INTO categories (id, name, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, string(cat.ID), cat.Name, cat.CreatedAt)
	return ledger.Persist("save category", err)
}

func (c *conn) GetCategory(ctx context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	var (
		cat   ledger.Category
		catID string
	)
	err := c.q.QueryRow(ctx, `SELECT id, name, created_at FROM categories WHERE id = $1`, string(id)).
		Scan(&catID, &cat.Name, &cat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "category", ID: string(id)}
	}
	if err != nil {
		return nil, ledger.Persist("get category", err)
	}
	cat.ID = ledger.CategoryID(catID)
	cat.CreatedAt = cat.CreatedAt.UTC()
	return &cat, nil
}

func (c *conn) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	rows, err := c.q.Query(ctx, `SELECT id, name, created_at FROM categories`)
	if err != nil {
		return nil, ledger.Persist("list categories", err)
	}
	defer rows.Close()

	var cats []ledger.Category
	for rows.Next() {
		var (
			cat ledger.Category
			id  string
		)
		if err := rows.Scan(&id, &cat.Name, &cat.CreatedAt); err != nil {
			return nil, ledger.Persist("scan category", err)
		}
		cat.ID = ledger.CategoryID(id)
		cat.CreatedAt = cat.CreatedAt.UTC()
		cats = append(cats, cat)
	}
	return cats, ledger.Persist("list categories", rows.Err())
}

func (c *conn) DeleteCategory(ctx context.Context, id ledger.CategoryID) error {
	return c.deleteByID(ctx, "categories", "category", string(id))
}

const productColumns = `id, sku, name, category_id, price::text, quantity, status, created_at`

func (c *conn) SaveProduct(ctx context.Context, p ledger.Product) error {
	var categoryID *string
	if p.CategoryID != "" {
		s := string(p.CategoryID)
		categoryID = &s
	}
	_, err := c.q.Exec(ctx, `
		INSERT INTO products (id, sku, name, category_id, price, quantity, status, created_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku,
			name = EXCLUDED.name,
			category_id = EXCLUDED.category_id,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity,
			status = EXCLUDED.status
	`,
		string(p.ID),
		p.SKU,
		p.Name,
		categoryID,
		p.Price.String(),
		p.Quantity,
		string(p.Status),
		p.CreatedAt,
	)
	if pgCode(err) == codeForeignKeyViolation {
		return &ledger.ValidationError{Field: "category", Message: "unknown category"}
	}
	return ledger.Persist("save product", err)
}

func (c *conn) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	row := c.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, string(id))
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "product", ID: string(id)}
	}
	if err != nil {
		return nil, ledger.Persist("get product", err)
	}
	return &p, nil
}

func (c *conn) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	rows, err := c.q.Query(ctx, `SELECT `+productColumns+` FROM products`)
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
	tag, err := c.q.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return ledger.Persist("delete "+kind, err)
	}
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

func scanUser(row pgx.Row) (ledger.User, error) {
	var (
		u              ledger.User
		id, role, debt string
		lastUpdate     *time.Time
	)
	err := row.Scan(&id, &u.Email, &u.Username, &u.PasswordHash, &role, &debt, &lastUpdate, &u.Version, &u.CreatedAt)
	if err != nil {
		return ledger.User{}, err
	}
	if u.DebtAmount, err = decimal.NewFromString(debt); err != nil {
		return ledger.User{}, err
	}
	u.UserID = ledger.UserID(id)
	u.Role = ledger.Role(role)
	if lastUpdate != nil {
		u.LastDebtUpdate = lastUpdate.UTC()
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var (
		tx                           ledger.Transaction
		id, itemsJSON, total, status string
	)
	if err := row.Scan(&id, &tx.User, &itemsJSON, &total, &status, &tx.CreatedAt); err != nil {
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

	amount, err := decimal.NewFromString(total)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx.ID = ledger.TransactionID(id)
	tx.TotalAmount = amount
	tx.Status = ledger.TransactionStatus(status)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

func scanProduct(row pgx.Row) (ledger.Product, error) {
	var (
		p                 ledger.Product
		id, price, status string
		categoryID        *string
	)
	if err := row.Scan(&id, &p.SKU, &p.Name, &categoryID, &price, &p.Quantity, &status, &p.CreatedAt); err != nil {
		return ledger.Product{}, err
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return ledger.Product{}, err
	}
	p.ID = ledger.ProductID(id)
	if categoryID != nil {
		p.CategoryID = ledger.CategoryID(*categoryID)
	}
	p.Price = amount
	p.Status = ledger.ProductStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// Helper functions

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
