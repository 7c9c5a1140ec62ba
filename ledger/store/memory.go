// Package store provides an in-memory ledger.Backend.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shopledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.Backend. WithTx holds the write lock for the
// whole unit and restores a snapshot if fn fails.
type Memory struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	users        map[ledger.UserID]ledger.User
	history      map[ledger.UserID][]ledger.DebtHistoryEntry
	transactions map[ledger.TransactionID]ledger.Transaction
	txOrder      []ledger.TransactionID // insertion order
	categories   map[ledger.CategoryID]ledger.Category
	products     map[ledger.ProductID]ledger.Product
}

func newState() *state {
	return &state{
		users:        make(map[ledger.UserID]ledger.User),
		history:      make(map[ledger.UserID][]ledger.DebtHistoryEntry),
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
		categories:   make(map[ledger.CategoryID]ledger.Category),
		products:     make(map[ledger.ProductID]ledger.Product),
	}
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

var _ ledger.Backend = (*Memory)(nil)

func (m *Memory) read(fn func(*state) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.st)
}

func (m *Memory) write(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) CreateUser(_ context.Context, u ledger.User) error {
	return m.write(func(s *state) error { return s.createUser(u) })
}

func (m *Memory) GetUser(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	var out *ledger.User
	err := m.read(func(s *state) (err error) { out, err = s.getUser(id); return })
	return out, err
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*ledger.User, error) {
	var out *ledger.User
	err := m.read(func(s *state) (err error) { out, err = s.getUserByEmail(email); return })
	return out, err
}

func (m *Memory) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	var out []ledger.Account
	err := m.read(func(s *state) error { out = s.listAccounts(); return nil })
	return out, err
}

func (m *Memory) SetDebt(_ context.Context, id ledger.UserID, amount decimal.Decimal, expectedVersion int64, at time.Time) (ledger.Account, error) {
	var out ledger.Account
	err := m.write(func(s *state) (err error) { out, err = s.setDebt(id, amount, expectedVersion, at); return })
	return out, err
}

// =============================================================================
// HISTORY
// =============================================================================

func (m *Memory) AppendHistory(_ context.Context, e ledger.DebtHistoryEntry) error {
	return m.write(func(s *state) error { return s.appendHistory(e) })
}

func (m *Memory) LoadHistory(_ context.Context, id ledger.UserID) ([]ledger.DebtHistoryEntry, error) {
	var out []ledger.DebtHistoryEntry
	err := m.read(func(s *state) error { out = s.loadHistory(id); return nil })
	return out, err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	return m.write(func(s *state) error { return s.insertTransaction(tx) })
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := m.read(func(s *state) (err error) { out, err = s.getTransaction(id); return })
	return out, err
}

func (m *Memory) SetTransactionStatus(_ context.Context, id ledger.TransactionID, status ledger.TransactionStatus) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := m.write(func(s *state) (err error) { out, err = s.setTransactionStatus(id, status); return })
	return out, err
}

func (m *Memory) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	err := m.read(func(s *state) error {
		return s.eachTransaction(f, func(tx ledger.Transaction) error {
			out = append(out, tx)
			return nil
		})
	})
	return out, err
}

func (m *Memory) EachTransaction(_ context.Context, f ledger.TransactionFilter, fn func(ledger.Transaction) error) error {
	return m.read(func(s *state) error { return s.eachTransaction(f, fn) })
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) SaveCategory(_ context.Context, c ledger.Category) error {
	return m.write(func(s *state) error { s.categories[c.ID] = c; return nil })
}

func (m *Memory) GetCategory(_ context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	var out *ledger.Category
	err := m.read(func(s *state) (err error) { out, err = s.getCategory(id); return })
	return out, err
}

func (m *Memory) ListCategories(_ context.Context) ([]ledger.Category, error) {
	var out []ledger.Category
	err := m.read(func(s *state) error {
		for _, c := range s.categories {
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

func (m *Memory) DeleteCategory(_ context.Context, id ledger.CategoryID) error {
	return m.write(func(s *state) error { return s.deleteCategory(id) })
}

func (m *Memory) SaveProduct(_ context.Context, p ledger.Product) error {
	return m.write(func(s *state) error { s.products[p.ID] = p; return nil })
}

func (m *Memory) GetProduct(_ context.Context, id ledger.ProductID) (*ledger.Product, error) {
	var out *ledger.Product
	err := m.read(func(s *state) (err error) { out, err = s.getProduct(id); return })
	return out, err
}

func (m *Memory) ListProducts(_ context.Context) ([]ledger.Product, error) {
	var out []ledger.Product
	err := m.read(func(s *state) error {
		for _, p := range s.products {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func (m *Memory) DeleteProduct(_ context.Context, id ledger.ProductID) error {
	return m.write(func(s *state) error {
		if _, ok := s.products[id]; !ok {
			return &ledger.NotFoundError{Kind: "product", ID: string(id)}
		}
		delete(s.products, id)
		return nil
	})
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txView{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	return m.write(func(s *state) error { *s = *newState(); return nil })
}

func (m *Memory) Close() error { return nil }

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.history {
		c.history[k] = append([]ledger.DebtHistoryEntry{}, v...)
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	c.txOrder = append([]ledger.TransactionID{}, s.txOrder...)
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	return c
}

// txView is handed to WithTx callbacks. The parent already holds the lock.
type txView struct {
	st *state
}

func (v *txView) CreateUser(_ context.Context, u ledger.User) error { return v.st.createUser(u) }
func (v *txView) GetUser(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	return v.st.getUser(id)
}
func (v *txView) GetUserByEmail(_ context.Context, email string) (*ledger.User, error) {
	return v.st.getUserByEmail(email)
}
func (v *txView) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	return v.st.listAccounts(), nil
}
func (v *txView) SetDebt(_ context.Context, id ledger.UserID, amount decimal.Decimal, expectedVersion int64, at time.Time) (ledger.Account, error) {
	return v.st.setDebt(id, amount, expectedVersion, at)
}
func (v *txView) AppendHistory(_ context.Context, e ledger.DebtHistoryEntry) error {
	return v.st.appendHistory(e)
}
func (v *txView) LoadHistory(_ context.Context, id ledger.UserID) ([]ledger.DebtHistoryEntry, error) {
	return v.st.loadHistory(id), nil
}
func (v *txView) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	return v.st.insertTransaction(tx)
}
func (v *txView) GetTransaction(_ context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	return v.st.getTransaction(id)
}
func (v *txView) SetTransactionStatus(_ context.Context, id ledger.TransactionID, status ledger.TransactionStatus) (*ledger.Transaction, error) {
	return v.st.setTransactionStatus(id, status)
}
func (v *txView) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	err := v.st.eachTransaction(f, func(tx ledger.Transaction) error {
		out = append(out, tx)
		return nil
	})
	return out, err
}
func (v *txView) EachTransaction(_ context.Context, f ledger.TransactionFilter, fn func(ledger.Transaction) error) error {
	return v.st.eachTransaction(f, fn)
}
func (v *txView) SaveCategory(_ context.Context, c ledger.Category) error {
	v.st.categories[c.ID] = c
	return nil
}
func (v *txView) GetCategory(_ context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	return v.st.getCategory(id)
}
func (v *txView) ListCategories(_ context.Context) ([]ledger.Category, error) {
	out := make([]ledger.Category, 0, len(v.st.categories))
	for _, c := range v.st.categories {
		out = append(out, c)
	}
	return out, nil
}
func (v *txView) DeleteCategory(_ context.Context, id ledger.CategoryID) error {
	return v.st.deleteCategory(id)
}
func (v *txView) SaveProduct(_ context.Context, p ledger.Product) error {
	v.st.products[p.ID] = p
	return nil
}
func (v *txView) GetProduct(_ context.Context, id ledger.ProductID) (*ledger.Product, error) {
	return v.st.getProduct(id)
}
func (v *txView) ListProducts(_ context.Context) ([]ledger.Product, error) {
	out := make([]ledger.Product, 0, len(v.st.products))
	for _, p := range v.st.products {
		out = append(out, p)
	}
	return out, nil
}
func (v *txView) DeleteProduct(_ context.Context, id ledger.ProductID) error {
	if _, ok := v.st.products[id]; !ok {
		return &ledger.NotFoundError{Kind: "product", ID: string(id)}
	}
	delete(v.st.products, id)
	return nil
}

// =============================================================================
// UNLOCKED STATE OPERATIONS
// =============================================================================

func (s *state) createUser(u ledger.User) error {
	if _, ok := s.users[u.UserID]; ok {
		return ledger.ErrConflict
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
			return ledger.ErrConflict
		}
	}
	s.users[u.UserID] = u
	return nil
}

func (s *state) getUser(id ledger.UserID) (*ledger.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "user", ID: string(id)}
	}
	return &u, nil
}

func (s *state) getUserByEmail(email string) (*ledger.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, &ledger.NotFoundError{Kind: "user", ID: email}
}

func (s *state) listAccounts() []ledger.Account {
	out := make([]ledger.Account, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Account)
	}
	return out
}

func (s *state) setDebt(id ledger.UserID, amount decimal.Decimal, expectedVersion int64, at time.Time) (ledger.Account, error) {
	if err := ledger.CheckDebtAmount(amount); err != nil {
		return ledger.Account{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return ledger.Account{}, &ledger.NotFoundError{Kind: "user", ID: string(id)}
	}
	if u.Version != expectedVersion {
		return ledger.Account{}, ledger.ErrConcurrentModification
	}
	u.DebtAmount = amount
	u.LastDebtUpdate = at
	u.Version++
	s.users[id] = u
	return u.Account, nil
}

func (s *state) appendHistory(e ledger.DebtHistoryEntry) error {
	if _, ok := s.users[e.UserID]; !ok {
		return &ledger.NotFoundError{Kind: "user", ID: string(e.UserID)}
	}
	s.history[e.UserID] = append(s.history[e.UserID], e)
	return nil
}

func (s *state) loadHistory(id ledger.UserID) []ledger.DebtHistoryEntry {
	entries := s.history[id]
	out := make([]ledger.DebtHistoryEntry, len(entries))
	// Reverse insertion order first so equal dates stay newest-first.
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (s *state) insertTransaction(tx ledger.Transaction) error {
	if _, ok := s.transactions[tx.ID]; ok {
		return ledger.ErrConflict
	}
	tx.Items = append([]ledger.TransactionItem{}, tx.Items...)
	s.transactions[tx.ID] = tx
	s.txOrder = append(s.txOrder, tx.ID)
	return nil
}

func (s *state) getTransaction(id ledger.TransactionID) (*ledger.Transaction, error) {
	tx, ok := s.transactions[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return &tx, nil
}

func (s *state) setTransactionStatus(id ledger.TransactionID, status ledger.TransactionStatus) (*ledger.Transaction, error) {
	tx, ok := s.transactions[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	tx.Status = status
	s.transactions[id] = tx
	return &tx, nil
}

// eachTransaction visits matches newest first.
func (s *state) eachTransaction(f ledger.TransactionFilter, fn func(ledger.Transaction) error) error {
	ordered := make([]ledger.Transaction, 0, len(s.txOrder))
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		tx := s.transactions[s.txOrder[i]]
		if f.Matches(tx) {
			ordered = append(ordered, tx)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CreatedAt.After(ordered[j].CreatedAt) })
	for _, tx := range ordered {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *state) getCategory(id ledger.CategoryID) (*ledger.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "category", ID: string(id)}
	}
	return &c, nil
}

func (s *state) deleteCategory(id ledger.CategoryID) error {
	if _, ok := s.categories[id]; !ok {
		return &ledger.NotFoundError{Kind: "category", ID: string(id)}
	}
	delete(s.categories, id)
	for pid, p := range s.products {
		if p.CategoryID == id {
			p.CategoryID = ""
			s.products[pid] = p
		}
	}
	return nil
}

func (s *state) getProduct(id ledger.ProductID) (*ledger.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "product", ID: string(id)}
	}
	return &p, nil
}
