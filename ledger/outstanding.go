package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OutstandingDebt is the pending-transaction total for one customer.
// It is derived from transactions only and may disagree with the
// customer's Account.DebtAmount.
type OutstandingDebt struct {
	User              string
	Total             decimal.Decimal
	Count             int
	LastTransactionAt time.Time
}

// OutstandingFold groups pending transactions by Transaction.User while
// they stream past, so the caller never holds the full collection.
type OutstandingFold struct {
	groups map[string]*OutstandingDebt
}

func NewOutstandingFold() *OutstandingFold {
	return &OutstandingFold{groups: make(map[string]*OutstandingDebt)}
}

// Add folds tx into its group. Non-pending transactions are ignored.
// The error return lets Add be passed straight to EachTransaction.
func (f *OutstandingFold) Add(tx Transaction) error {
	if tx.Status != StatusPending {
		return nil
	}
	g, ok := f.groups[tx.User]
	if !ok {
		g = &OutstandingDebt{User: tx.User, Total: decimal.Zero}
		f.groups[tx.User] = g
	}
	g.Total = g.Total.Add(tx.TotalAmount)
	g.Count++
	if tx.CreatedAt.After(g.LastTransactionAt) {
		g.LastTransactionAt = tx.CreatedAt
	}
	return nil
}

// Result returns the groups sorted by Total descending, then by User.
func (f *OutstandingFold) Result() []OutstandingDebt {
	out := make([]OutstandingDebt, 0, len(f.groups))
	for _, g := range f.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].User < out[j].User
	})
	return out
}
