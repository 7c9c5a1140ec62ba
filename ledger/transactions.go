/*
transactions.go - Sales and their pending -> paid lifecycle

PURPOSE:
  Records sales, settles them, and aggregates the pending ones into the
  outstanding-debt view.

STATE MACHINE:
  pending --Settle--> paid
  Settling a paid transaction is an allowed no-op. There is no way back
  from paid to pending.

INDEPENDENCE FROM ACCOUNTS:
  Nothing here reads or writes Account.DebtAmount or DebtHistory. A
  pending transaction is the UI's proxy for "this customer owes this
  amount", but the Debts service keeps its own balance.

STOCK:
  Create decrements product stock for itemized sales inside the same
  store transaction as the insert. A product that reaches zero is marked
  out_of_stock.

SEE ALSO:
  - outstanding.go: OutstandingFold used by ListOutstanding
  - debt.go: the manual balance
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// INPUTS
// =============================================================================

type ItemInput struct {
	ProductID ProductID
	Quantity  int
}

// NewTransactionInput describes a sale. With Items, the total is computed
// from product prices; without, TotalAmount must be given.
type NewTransactionInput struct {
	User        string
	Items       []ItemInput
	TotalAmount *decimal.Decimal
}

// =============================================================================
// TRANSACTIONS SERVICE
// =============================================================================

type Transactions struct {
	store TxStore
	opts  options
}

func NewTransactions(store TxStore, opts ...Option) *Transactions {
	return &Transactions{store: store, opts: buildOptions(opts)}
}

// Create records a new pending sale.
func (t *Transactions) Create(ctx context.Context, in NewTransactionInput) (Transaction, error) {
	user := strings.TrimSpace(in.User)
	if user == "" {
		return Transaction{}, &ValidationError{Field: "user", Message: "is required"}
	}

	if len(in.Items) == 0 {
		if in.TotalAmount == nil || !in.TotalAmount.IsPositive() {
			return Transaction{}, &ValidationError{Field: "totalAmount", Message: "must be a positive number"}
		}
		tx := Transaction{
			ID:          TransactionID(uuid.NewString()),
			Items:       []TransactionItem{},
			TotalAmount: *in.TotalAmount,
			User:        user,
			Status:      StatusPending,
			CreatedAt:   t.opts.now(),
		}
		if err := t.store.InsertTransaction(ctx, tx); err != nil {
			return Transaction{}, err
		}
		t.logCreated(tx)
		return tx, nil
	}

	for i, item := range in.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			return Transaction{}, &ValidationError{
				Field:   fmt.Sprintf("items[%d]", i),
				Message: "productId and a quantity of at least 1 are required",
			}
		}
	}

	var tx Transaction
	err := t.store.WithTx(ctx, func(s Store) error {
		items := make([]TransactionItem, 0, len(in.Items))
		total := decimal.Zero

		for _, item := range in.Items {
			// Re-read inside the loop so repeated products see earlier decrements.
			p, err := s.GetProduct(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if p.Quantity < item.Quantity {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.Quantity,
					Requested:   item.Quantity,
				}
			}

			line := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(line)
			items = append(items, TransactionItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    item.Quantity,
				Price:       line,
			})

			p.Quantity -= item.Quantity
			if p.Quantity == 0 {
				p.Status = ProductOutOfStock
			}
			if err := s.SaveProduct(ctx, *p); err != nil {
				return err
			}
		}

		tx = Transaction{
			ID:          TransactionID(uuid.NewString()),
			Items:       items,
			TotalAmount: total,
			User:        user,
			Status:      StatusPending,
			CreatedAt:   t.opts.now(),
		}
		return s.InsertTransaction(ctx, tx)
	})
	if err != nil {
		return Transaction{}, err
	}
	t.logCreated(tx)
	return tx, nil
}

func (t *Transactions) Get(ctx context.Context, id TransactionID) (Transaction, error) {
	tx, err := t.store.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	return *tx, nil
}

func (t *Transactions) List(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	txs, err := t.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// Settle marks a transaction paid. Settling an already paid transaction
// succeeds without change. Accounts and history are not touched.
func (t *Transactions) Settle(ctx context.Context, id TransactionID) (Transaction, error) {
	tx, err := t.store.SetTransactionStatus(ctx, id, StatusPaid)
	if err != nil {
		return Transaction{}, err
	}
	t.opts.log.Info("transaction settled",
		zap.String("transaction_id", string(id)),
		zap.String("user", tx.User),
		zap.String("total", tx.TotalAmount.String()),
	)
	return *tx, nil
}

// UpdateStatus applies a requested status. Only pending -> paid changes
// anything; asking a paid transaction to become pending is rejected.
func (t *Transactions) UpdateStatus(ctx context.Context, id TransactionID, status TransactionStatus) (Transaction, error) {
	switch status {
	case StatusPaid:
		return t.Settle(ctx, id)
	case StatusPending:
		tx, err := t.Get(ctx, id)
		if err != nil {
			return Transaction{}, err
		}
		if tx.Status == StatusPaid {
			return Transaction{}, &ValidationError{Field: "status", Message: "a paid transaction cannot return to pending"}
		}
		return tx, nil
	}
	_, err := ParseTransactionStatus(string(status))
	return Transaction{}, err
}

// ListOutstanding aggregates pending transactions per customer, optionally
// restricted to customers whose name contains userFilter.
func (t *Transactions) ListOutstanding(ctx context.Context, userFilter string) ([]OutstandingDebt, error) {
	fold := NewOutstandingFold()
	filter := TransactionFilter{Status: StatusPending, User: userFilter}
	if err := t.store.EachTransaction(ctx, filter, fold.Add); err != nil {
		return nil, err
	}
	return fold.Result(), nil
}

func (t *Transactions) logCreated(tx Transaction) {
	t.opts.log.Info("transaction created",
		zap.String("transaction_id", string(tx.ID)),
		zap.String("user", tx.User),
		zap.Int("items", len(tx.Items)),
		zap.String("total", tx.TotalAmount.String()),
	)
}
