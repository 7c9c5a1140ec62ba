package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/ledger/store"
)

func TestReport(t *testing.T) {
	// GIVEN: one customer with a balance, one without, and pending sales
	ctx := context.Background()
	mem := store.NewMemory()
	for _, u := range []string{"alice", "bob"} {
		require.NoError(t, mem.CreateUser(ctx, ledger.User{Account: ledger.Account{
			UserID: ledger.UserID(u), Email: u + "@shop.test", Username: u, Role: ledger.RoleUser, Version: 1,
		}}))
	}
	_, err := ledger.NewDebts(mem).AdjustDebt(ctx, ledger.AdjustDebtInput{UserID: "alice", NewDebtAmount: decimal.NewFromInt(42)})
	require.NoError(t, err)
	total := decimal.RequireFromString("9.5")
	_, err = ledger.NewTransactions(mem).Create(ctx, ledger.NewTransactionInput{User: "bob", TotalAmount: &total})
	require.NoError(t, err)

	// WHEN: the report is printed
	var out bytes.Buffer
	require.NoError(t, report(ctx, &out, mem, ""))

	// THEN: alice appears with her balance, bob only in the pending table
	text := out.String()
	assert.Contains(t, text, "42.00")
	assert.Contains(t, text, "alice@shop.test")
	assert.NotContains(t, text, "bob@shop.test")
	assert.Contains(t, text, "9.50")

	out.Reset()
	require.NoError(t, report(ctx, &out, mem, "ALI"))
	assert.Contains(t, out.String(), "alice")
	assert.NotContains(t, out.String(), "9.50")
}
