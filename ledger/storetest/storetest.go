// Package storetest is a conformance suite run against every ledger.Backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/ledger"
)

// Factory returns an empty backend. The suite closes it.
type Factory func(t *testing.T) ledger.Backend

var base = time.Date(2025, time.February, 3, 10, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func user(id, email, username string) ledger.User {
	return ledger.User{
		Account: ledger.Account{
			UserID:   ledger.UserID(id),
			Email:    email,
			Username: username,
			Role:     ledger.RoleUser,
			Version:  1,
		},
		PasswordHash: "$2a$04$hash",
		CreatedAt:    base,
	}
}

// Run executes every conformance test against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	open := func(t *testing.T) ledger.Backend {
		b := newBackend(t)
		t.Cleanup(func() { b.Close() })
		return b
	}

	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("SetDebt", func(t *testing.T) { testSetDebt(t, open(t)) })
	t.Run("SetDebtRejectsNegative", func(t *testing.T) { testSetDebtRejectsNegative(t, open(t)) })
	t.Run("History", func(t *testing.T) { testHistory(t, open(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, open(t)) })
	t.Run("Catalog", func(t *testing.T) { testCatalog(t, open(t)) })
	t.Run("WithTx", func(t *testing.T) { testWithTx(t, open(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, open(t)) })
}

func testUsers(t *testing.T, s ledger.Backend) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "ann@shop.test", "ann")))

	// Duplicate email (any case) and duplicate username conflict.
	assert.ErrorIs(t, s.CreateUser(ctx, user("u2", "ANN@shop.test", "ann2")), ledger.ErrConflict)
	assert.ErrorIs(t, s.CreateUser(ctx, user("u3", "other@shop.test", "ann")), ledger.ErrConflict)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ann", got.Username)
	assert.Equal(t, ledger.RoleUser, got.Role)
	assert.True(t, got.DebtAmount.IsZero())
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.LastDebtUpdate.IsZero())
	assert.True(t, base.Equal(got.CreatedAt))

	byEmail, err := s.GetUserByEmail(ctx, "Ann@Shop.Test")
	require.NoError(t, err)
	assert.Equal(t, ledger.UserID("u1"), byEmail.UserID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "missing@shop.test")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func testSetDebt(t *testing.T, s ledger.Backend) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "bo@shop.test", "bo")))

	acc, err := s.SetDebt(ctx, "u1", dec("12.34"), 1, at(1))
	require.NoError(t, err)
	assert.True(t, acc.DebtAmount.Equal(dec("12.34")))
	assert.Equal(t, int64(2), acc.Version)
	assert.True(t, at(1).Equal(acc.LastDebtUpdate))

	// Stale version loses and writes nothing.
	_, err = s.SetDebt(ctx, "u1", dec("99"), 1, at(2))
	require.ErrorIs(t, err, ledger.ErrConcurrentModification)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.DebtAmount.Equal(dec("12.34")))
	assert.Equal(t, int64(2), got.Version)

	_, err = s.SetDebt(ctx, "ghost", dec("1"), 1, at(3))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func testSetDebtRejectsNegative(t *testing.T, s ledger.Backend) {
	// GIVEN: an account at version 1
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "ed@shop.test", "ed")))

	// WHEN: a negative balance is written with the current version
	_, err := s.SetDebt(ctx, "u1", dec("-5"), 1, at(1))

	// THEN: it is a validation failure and the row is untouched
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "debtAmount", ve.Field)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.DebtAmount.IsZero())
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.LastDebtUpdate.IsZero())

	// Same rule inside a transaction.
	err = s.WithTx(ctx, func(tx ledger.Store) error {
		_, err := tx.SetDebt(ctx, "u1", dec("-0.01"), 1, at(2))
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func testHistory(t *testing.T, s ledger.Backend) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "cy@shop.test", "cy")))
	require.NoError(t, s.CreateUser(ctx, user("u2", "di@shop.test", "di")))

	entries := []ledger.DebtHistoryEntry{
		{ID: "h1", UserID: "u1", Date: at(1), Amount: dec("10"), ChangeAmount: dec("10"), Type: ledger.ChangeIncrease, Note: "first"},
		{ID: "h2", UserID: "u1", Date: at(5), Amount: dec("4.5"), ChangeAmount: dec("5.5"), Type: ledger.ChangeDecrease},
		{ID: "h3", UserID: "u1", Date: at(5), Amount: dec("6"), ChangeAmount: dec("1.5"), Type: ledger.ChangeIncrease},
		{ID: "h4", UserID: "u1", Date: at(3), Amount: dec("0"), ChangeAmount: dec("0"), Type: ledger.ChangeDecrease},
		{ID: "x1", UserID: "u2", Date: at(9), Amount: dec("1"), ChangeAmount: dec("1"), Type: ledger.ChangeIncrease},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendHistory(ctx, e))
	}

	got, err := s.LoadHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	ids := []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID}
	assert.Equal(t, []string{"h3", "h2", "h4", "h1"}, ids)

	first := got[3]
	assert.Equal(t, ledger.UserID("u1"), first.UserID)
	assert.True(t, at(1).Equal(first.Date))
	assert.True(t, first.Amount.Equal(dec("10")))
	assert.True(t, first.ChangeAmount.Equal(dec("10")))
	assert.Equal(t, ledger.ChangeIncrease, first.Type)
	assert.Equal(t, "first", first.Note)

	assert.ErrorIs(t, s.AppendHistory(ctx, ledger.DebtHistoryEntry{
		ID: "h9", UserID: "ghost", Date: at(1), Amount: dec("1"), ChangeAmount: dec("1"), Type: ledger.ChangeIncrease,
	}), ledger.ErrNotFound)

	none, err := s.LoadHistory(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTransactions(t *testing.T, s ledger.Backend) {
	ctx := context.Background()
	sales := []ledger.Transaction{
		{ID: "t1", User: "Maria", TotalAmount: dec("10.5"), Status: ledger.StatusPending, CreatedAt: at(1),
			Items: []ledger.TransactionItem{{ProductID: "p1", ProductName: "Bread", Quantity: 3, Price: dec("7.5")}, {ProductID: "p2", ProductName: "Milk", Quantity: 1, Price: dec("3")}}},
		{ID: "t2", User: "Tom", TotalAmount: dec("4"), Status: ledger.StatusPending, CreatedAt: at(2), Items: []ledger.TransactionItem{}},
		{ID: "t3", User: "MARIO", TotalAmount: dec("8"), Status: ledger.StatusPaid, CreatedAt: at(3), Items: []ledger.TransactionItem{}},
	}
	for _, tx := range sales {
		require.NoError(t, s.InsertTransaction(ctx, tx))
	}
	assert.ErrorIs(t, s.InsertTransaction(ctx, sales[0]), ledger.ErrConflict)

	got, err := s.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Maria", got.User)
	assert.True(t, got.TotalAmount.Equal(dec("10.5")))
	require.Len(t, got.Items, 2)
	assert.Equal(t, ledger.ProductID("p1"), got.Items[0].ProductID)
	assert.Equal(t, "Bread", got.Items[0].ProductName)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.True(t, got.Items[0].Price.Equal(dec("7.5")))
	assert.True(t, at(1).Equal(got.CreatedAt))

	_, err = s.GetTransaction(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	all, err := s.ListTransactions(ctx, ledger.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ledger.TransactionID("t3"), all[0].ID)

	mar, err := s.ListTransactions(ctx, ledger.TransactionFilter{User: "mAr"})
	require.NoError(t, err)
	assert.Len(t, mar, 2)

	pendingMar, err := s.ListTransactions(ctx, ledger.TransactionFilter{User: "mar", Status: ledger.StatusPending})
	require.NoError(t, err)
	require.Len(t, pendingMar, 1)
	assert.Equal(t, ledger.TransactionID("t1"), pendingMar[0].ID)

	paid, err := s.SetTransactionStatus(ctx, "t2", ledger.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, paid.Status)
	assert.True(t, paid.TotalAmount.Equal(dec("4")))

	_, err = s.SetTransactionStatus(ctx, "nope", ledger.StatusPaid)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	stop := errors.New("stop")
	var seen int
	err = s.EachTransaction(ctx, ledger.TransactionFilter{}, func(ledger.Transaction) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func testCatalog(t *testing.T, s ledger.Backend) {
	ctx := context.Background()
	require.NoError(t, s.SaveCategory(ctx, ledger.Category{ID: "c1", Name: "Dairy", CreatedAt: base}))

	cat, err := s.GetCategory(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Dairy", cat.Name)

	p := ledger.Product{
		ID: "p1", SKU: "MLK", Name: "Milk", CategoryID: "c1",
		Price: dec("1.19"), Quantity: 5, Status: ledger.ProductInStock, CreatedAt: base,
	}
	require.NoError(t, s.SaveProduct(ctx, p))

	// Upsert.
	p.Quantity = 0
	p.Status = ledger.ProductOutOfStock
	require.NoError(t, s.SaveProduct(ctx, p))

	got, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, ledger.ProductOutOfStock, got.Status)
	assert.Equal(t, ledger.CategoryID("c1"), got.CategoryID)
	assert.True(t, got.Price.Equal(dec("1.19")))

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	require.NoError(t, s.DeleteCategory(ctx, "c1"))
	got, err = s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)
	assert.ErrorIs(t, s.DeleteCategory(ctx, "c1"), ledger.ErrNotFound)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)

	require.NoError(t, s.DeleteProduct(ctx, "p1"))
	assert.ErrorIs(t, s.DeleteProduct(ctx, "p1"), ledger.ErrNotFound)
	_, err = s.GetProduct(ctx, "p1")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func testWithTx(t *testing.T, s ledger.Backend) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "ed@shop.test", "ed")))
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.SetDebt(ctx, "u1", dec("50"), 1, at(1)); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, ledger.DebtHistoryEntry{
			ID: "h1", UserID: "u1", Date: at(1), Amount: dec("50"), ChangeAmount: dec("50"), Type: ledger.ChangeIncrease,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.DebtAmount.IsZero())
	hist, err := s.LoadHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, hist)

	// Reads inside the unit see its own writes; commit makes them durable.
	err = s.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.SetDebt(ctx, "u1", dec("7"), 1, at(2)); err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, "u1")
		if err != nil {
			return err
		}
		assert.True(t, u.DebtAmount.Equal(dec("7")))
		return nil
	})
	require.NoError(t, err)

	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.DebtAmount.Equal(dec("7")))
}

func testReset(t *testing.T, s ledger.Backend) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "fi@shop.test", "fi")))
	require.NoError(t, s.AppendHistory(ctx, ledger.DebtHistoryEntry{
		ID: "h1", UserID: "u1", Date: at(1), Amount: dec("1"), ChangeAmount: dec("1"), Type: ledger.ChangeIncrease,
	}))
	require.NoError(t, s.InsertTransaction(ctx, ledger.Transaction{
		ID: "t1", User: "fi", TotalAmount: dec("1"), Status: ledger.StatusPending, CreatedAt: at(1), Items: []ledger.TransactionItem{},
	}))

	require.NoError(t, s.Reset(ctx))

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	txs, err := s.ListTransactions(ctx, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	// Usable again after a reset.
	require.NoError(t, s.CreateUser(ctx, user("u1", "fi@shop.test", "fi")))
}
