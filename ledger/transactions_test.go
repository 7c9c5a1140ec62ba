package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type shopFixture struct {
	mem     *store.Memory
	txs     *ledger.Transactions
	catalog *ledger.Catalog
	debts   *ledger.Debts
}

func newShop(t *testing.T) shopFixture {
	t.Helper()
	mem := store.NewMemory()
	clock := newStepClock()
	return shopFixture{
		mem:     mem,
		txs:     ledger.NewTransactions(mem, ledger.WithClock(clock.Now)),
		catalog: ledger.NewCatalog(mem, ledger.WithClock(clock.Now)),
		debts:   ledger.NewDebts(mem, ledger.WithClock(clock.Now)),
	}
}

func (f shopFixture) product(t *testing.T, sku, price string, qty int) ledger.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), ledger.ProductInput{
		SKU:      sku,
		Name:     "Product " + sku,
		Price:    dec(price),
		Quantity: qty,
	})
	require.NoError(t, err)
	return p
}

func (f shopFixture) sale(t *testing.T, user, total string) ledger.Transaction {
	t.Helper()
	amount := dec(total)
	tx, err := f.txs.Create(context.Background(), ledger.NewTransactionInput{User: user, TotalAmount: &amount})
	require.NoError(t, err)
	return tx
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_ItemizedComputesTotalAndDecrementsStock(t *testing.T) {
	// GIVEN: two products in stock
	shop := newShop(t)
	bread := shop.product(t, "BREAD", "2.50", 10)
	milk := shop.product(t, "MILK", "1.20", 3)
	ctx := context.Background()

	// WHEN: selling 4 bread and 3 milk
	tx, err := shop.txs.Create(ctx, ledger.NewTransactionInput{
		User: "Alice",
		Items: []ledger.ItemInput{
			{ProductID: bread.ID, Quantity: 4},
			{ProductID: milk.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)

	// THEN: line prices and total come from the catalog
	assert.Equal(t, ledger.StatusPending, tx.Status)
	require.Len(t, tx.Items, 2)
	assert.True(t, tx.Items[0].Price.Equal(dec("10")))
	assert.Equal(t, "Product BREAD", tx.Items[0].ProductName)
	assert.True(t, tx.Items[1].Price.Equal(dec("3.6")))
	assert.True(t, tx.TotalAmount.Equal(dec("13.6")))

	// AND: stock is decremented, milk is sold out
	b, err := shop.catalog.Product(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, b.Quantity)
	assert.Equal(t, ledger.ProductInStock, b.Status)

	m, err := shop.catalog.Product(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Quantity)
	assert.Equal(t, ledger.ProductOutOfStock, m.Status)
}

func TestCreate_InsufficientStockRollsBack(t *testing.T) {
	// GIVEN: one product with plenty of stock, one with little
	shop := newShop(t)
	eggs := shop.product(t, "EGGS", "0.30", 12)
	jam := shop.product(t, "JAM", "3", 1)
	ctx := context.Background()

	// WHEN: the second line asks for too much
	_, err := shop.txs.Create(ctx, ledger.NewTransactionInput{
		User: "Bob",
		Items: []ledger.ItemInput{
			{ProductID: eggs.ID, Quantity: 6},
			{ProductID: jam.ID, Quantity: 2},
		},
	})

	// THEN: the sale fails and the first decrement is undone
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	var ise *ledger.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 1, ise.Available)
	assert.Equal(t, 2, ise.Requested)

	e, err := shop.catalog.Product(ctx, eggs.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, e.Quantity)

	all, err := shop.txs.List(ctx, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_RepeatedProductSeesEarlierLines(t *testing.T) {
	shop := newShop(t)
	soap := shop.product(t, "SOAP", "1", 3)

	_, err := shop.txs.Create(context.Background(), ledger.NewTransactionInput{
		User: "Cleo",
		Items: []ledger.ItemInput{
			{ProductID: soap.ID, Quantity: 2},
			{ProductID: soap.ID, Quantity: 2},
		},
	})

	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
}

func TestCreate_Validation(t *testing.T) {
	zero := dec("0")
	tests := []struct {
		name  string
		in    ledger.NewTransactionInput
		field string
	}{
		{"missing user", ledger.NewTransactionInput{User: "  "}, "user"},
		{"no items no total", ledger.NewTransactionInput{User: "Dan"}, "totalAmount"},
		{"zero total", ledger.NewTransactionInput{User: "Dan", TotalAmount: &zero}, "totalAmount"},
		{"zero quantity", ledger.NewTransactionInput{User: "Dan", Items: []ledger.ItemInput{{ProductID: "p", Quantity: 0}}}, "items[0]"},
		{"missing product id", ledger.NewTransactionInput{User: "Dan", Items: []ledger.ItemInput{{Quantity: 1}}}, "items[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shop := newShop(t)

			_, err := shop.txs.Create(context.Background(), tt.in)

			var ve *ledger.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreate_UnknownProduct(t *testing.T) {
	shop := newShop(t)

	_, err := shop.txs.Create(context.Background(), ledger.NewTransactionInput{
		User:  "Eve",
		Items: []ledger.ItemInput{{ProductID: "nope", Quantity: 1}},
	})

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// LIST
// =============================================================================

func TestList_FiltersAndNewestFirst(t *testing.T) {
	// GIVEN: a mix of customers and statuses
	shop := newShop(t)
	ctx := context.Background()
	first := shop.sale(t, "Anna Smith", "10")
	shop.sale(t, "Bert", "20")
	third := shop.sale(t, "JOANNA", "30")
	_, err := shop.txs.Settle(ctx, first.ID)
	require.NoError(t, err)

	// WHEN/THEN: the user filter is a case-insensitive substring
	got, err := shop.txs.List(ctx, ledger.TransactionFilter{User: "anna"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, third.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)

	pending, err := shop.txs.List(ctx, ledger.TransactionFilter{Status: ledger.StatusPending, User: "anna"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, third.ID, pending[0].ID)

	none, err := shop.txs.List(ctx, ledger.TransactionFilter{User: "zed"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

// =============================================================================
// SETTLEMENT
// =============================================================================

func TestSettle_OnlyTargetChanges(t *testing.T) {
	// GIVEN: two pending sales and an account with a balance
	shop := newShop(t)
	seedUser(t, shop.mem, "felix", "70")
	ctx := context.Background()
	a := shop.sale(t, "felix", "50")
	b := shop.sale(t, "felix", "20")
	before, err := shop.debts.Balance(ctx, "felix")
	require.NoError(t, err)

	// WHEN: settling one of them
	settled, err := shop.txs.Settle(ctx, a.ID)
	require.NoError(t, err)

	// THEN: only that sale is paid; the account is untouched
	assert.Equal(t, ledger.StatusPaid, settled.Status)
	assert.True(t, settled.TotalAmount.Equal(dec("50")))

	other, err := shop.txs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, other.Status)

	after, err := shop.debts.Balance(ctx, "felix")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, historyLen(t, shop.debts, "felix"))
}

func TestSettle_Twice(t *testing.T) {
	shop := newShop(t)
	tx := shop.sale(t, "gus", "5")
	ctx := context.Background()

	_, err := shop.txs.Settle(ctx, tx.ID)
	require.NoError(t, err)
	again, err := shop.txs.Settle(ctx, tx.ID)

	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, again.Status)
}

func TestSettle_UnknownTransaction(t *testing.T) {
	shop := newShop(t)

	_, err := shop.txs.Settle(context.Background(), "missing")

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	shop := newShop(t)
	ctx := context.Background()

	t.Run("pending to pending is a no-op", func(t *testing.T) {
		tx := shop.sale(t, "hal", "1")
		got, err := shop.txs.UpdateStatus(ctx, tx.ID, ledger.StatusPending)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, got.Status)
	})

	t.Run("paid cannot go back", func(t *testing.T) {
		tx := shop.sale(t, "hal", "2")
		_, err := shop.txs.UpdateStatus(ctx, tx.ID, ledger.StatusPaid)
		require.NoError(t, err)

		_, err = shop.txs.UpdateStatus(ctx, tx.ID, ledger.StatusPending)
		assert.ErrorIs(t, err, ledger.ErrValidation)

		got, err := shop.txs.Get(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPaid, got.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		tx := shop.sale(t, "hal", "3")
		_, err := shop.txs.UpdateStatus(ctx, tx.ID, "refunded")
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}

func TestParseTransactionStatus(t *testing.T) {
	s, err := ledger.ParseTransactionStatus("paid")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, s)

	_, err = ledger.ParseTransactionStatus("PAID")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// OUTSTANDING
// =============================================================================

func TestListOutstanding_GroupsPendingOnly(t *testing.T) {
	// GIVEN: a:100 pending, a:50 pending, b:200 paid
	shop := newShop(t)
	ctx := context.Background()
	shop.sale(t, "a", "100")
	last := shop.sale(t, "a", "50")
	paid := shop.sale(t, "b", "200")
	_, err := shop.txs.Settle(ctx, paid.ID)
	require.NoError(t, err)

	// WHEN: aggregating
	got, err := shop.txs.ListOutstanding(ctx, "")
	require.NoError(t, err)

	// THEN: one group for a, none for b
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].User)
	assert.True(t, got[0].Total.Equal(dec("150")))
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, last.CreatedAt, got[0].LastTransactionAt)
}

func TestListOutstanding_UserFilter(t *testing.T) {
	shop := newShop(t)
	shop.sale(t, "Maria", "10")
	shop.sale(t, "Mario", "15")
	shop.sale(t, "Tom", "99")

	got, err := shop.txs.ListOutstanding(context.Background(), "MAR")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Mario", got[0].User)
	assert.Equal(t, "Maria", got[1].User)
}

func TestListOutstanding_DisagreesWithAccountBalance(t *testing.T) {
	// GIVEN: the manual balance and the pending sales say different things
	shop := newShop(t)
	seedUser(t, shop.mem, "nico", "0")
	ctx := context.Background()
	shop.sale(t, "nico", "80")
	_, err := shop.debts.AdjustDebt(ctx, ledger.AdjustDebtInput{UserID: "nico", NewDebtAmount: dec("30")})
	require.NoError(t, err)

	// THEN: both views are reported as-is
	out, err := shop.txs.ListOutstanding(ctx, "nico")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Total.Equal(dec("80")))

	acc, err := shop.debts.Balance(ctx, "nico")
	require.NoError(t, err)
	assert.True(t, acc.DebtAmount.Equal(dec("30")))
}

func TestOutstandingFold_SortAndIgnorePaid(t *testing.T) {
	base := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	fold := ledger.NewOutstandingFold()
	inputs := []ledger.Transaction{
		{User: "x", TotalAmount: dec("5"), Status: ledger.StatusPending, CreatedAt: base},
		{User: "y", TotalAmount: dec("7"), Status: ledger.StatusPending, CreatedAt: base.Add(time.Hour)},
		{User: "z", TotalAmount: dec("7"), Status: ledger.StatusPending, CreatedAt: base},
		{User: "x", TotalAmount: dec("1000"), Status: ledger.StatusPaid, CreatedAt: base.Add(2 * time.Hour)},
		{User: "X", TotalAmount: dec("1"), Status: ledger.StatusPending, CreatedAt: base},
	}
	for _, tx := range inputs {
		require.NoError(t, fold.Add(tx))
	}

	got := fold.Result()

	require.Len(t, got, 4)
	assert.Equal(t, []string{"y", "z", "x", "X"}, []string{got[0].User, got[1].User, got[2].User, got[3].User})
	assert.Equal(t, base, got[2].LastTransactionAt)
	assert.Empty(t, ledger.NewOutstandingFold().Result())
}
