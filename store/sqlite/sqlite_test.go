package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/ledger/storetest"
	"github.com/warp/shopledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, s ledger.Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), ledger.User{
		Account: ledger.Account{
			UserID:   ledger.UserID(id),
			Email:    id + "@shop.test",
			Username: id,
			Role:     ledger.RoleUser,
			Version:  1,
		},
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}))
}

func TestSQLite_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ledger.Backend {
		store, err := sqlite.New(":memory:")
		require.NoError(t, err)
		return store
	})
}

// =============================================================================
// DURABILITY
// =============================================================================

func TestSQLite_SurvivesReopen(t *testing.T) {
	// GIVEN: a file database with an adjusted balance
	path := filepath.Join(t.TempDir(), "shop.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	seedUser(t, store, "alice")

	debts := ledger.NewDebts(store)
	ctx := context.Background()
	_, err = debts.AdjustDebt(ctx, ledger.AdjustDebtInput{UserID: "alice", NewDebtAmount: decimal.RequireFromString("19.99"), Note: "tab"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// WHEN: reopening
	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	// THEN: balance and history are still there
	debts = ledger.NewDebts(reopened)
	acc, err := debts.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, acc.DebtAmount.Equal(decimal.RequireFromString("19.99")))

	entries, err := debts.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tab", entries[0].Note)
}

func TestSQLite_SubSecondHistoryOrder(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "bob")
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// Nine-digit vs shorter fractions must still sort by time.
	for i, offset := range []time.Duration{5 * time.Millisecond, 900 * time.Millisecond, 50 * time.Millisecond} {
		require.NoError(t, store.AppendHistory(ctx, ledger.DebtHistoryEntry{
			ID:           string(rune('a' + i)),
			UserID:       "bob",
			Date:         base.Add(offset),
			Amount:       decimal.NewFromInt(int64(i)),
			ChangeAmount: decimal.NewFromInt(1),
			Type:         ledger.ChangeIncrease,
		}))
	}

	got, err := store.LoadHistory(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestSQLite_ConcurrentAdjustments(t *testing.T) {
	// GIVEN: one account and several concurrent writers
	store := newTestStore(t)
	seedUser(t, store, "carol")
	debts := ledger.NewDebts(store)
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = debts.AdjustDebt(ctx, ledger.AdjustDebtInput{
				UserID:        "carol",
				NewDebtAmount: decimal.NewFromInt(int64(i + 1)),
			})
		}(i)
	}
	wg.Wait()

	// THEN: no lost updates; one entry per write, version counts every write
	for _, err := range errs {
		require.NoError(t, err)
	}
	entries, err := debts.History(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, entries, writers)

	acc, err := debts.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(writers+1), acc.Version)
}

// =============================================================================
// SALES + STOCK IN ONE UNIT
// =============================================================================

func TestSQLite_CreateSaleDecrementsStock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	catalog := ledger.NewCatalog(store)
	txs := ledger.NewTransactions(store)

	p, err := catalog.CreateProduct(ctx, ledger.ProductInput{SKU: "OIL", Name: "Olive oil", Price: decimal.RequireFromString("8.40"), Quantity: 2})
	require.NoError(t, err)

	sale, err := txs.Create(ctx, ledger.NewTransactionInput{User: "Dora", Items: []ledger.ItemInput{{ProductID: p.ID, Quantity: 2}}})
	require.NoError(t, err)
	assert.True(t, sale.TotalAmount.Equal(decimal.RequireFromString("16.8")))

	_, err = txs.Create(ctx, ledger.NewTransactionInput{User: "Dora", Items: []ledger.ItemInput{{ProductID: p.ID, Quantity: 1}}})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	got, err := catalog.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, ledger.ProductOutOfStock, got.Status)

	out, err := txs.ListOutstanding(ctx, "dora")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Count)
}

func TestSQLite_UnknownCategoryOnSave(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveProduct(context.Background(), ledger.Product{
		ID: "p1", SKU: "X", Name: "X", CategoryID: "nope",
		Price: decimal.NewFromInt(1), Quantity: 1, Status: ledger.ProductInStock, CreatedAt: time.Now(),
	})

	assert.ErrorIs(t, err, ledger.ErrValidation)
}
