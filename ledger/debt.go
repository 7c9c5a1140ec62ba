/*
debt.go - Debt Management Core: balance mutation + history recording

PURPOSE:
  Orchestrates the Account balance and the DebtHistory log as one logical
  unit. Every successful balance change appends exactly one history entry
  (ClearDebt on a zero balance appends none).

OPERATIONS:
  AdjustDebt:  set an absolute new balance, record the change
  ClearDebt:   set the balance to zero, record it if it was nonzero
  History:     entries for a user, most recent first
  Balance:     current account state
  Accounts:    snapshot of all accounts

CHANGE RECORDING RULES (AdjustDebt):
  delta  = new - old
  type   = increase if delta > 0, else decrease
  change = |explicit| if the caller supplied a nonzero explicit change,
           else |delta|

  The type always follows the real delta, even when the magnitude comes
  from the caller. An entry's ChangeAmount can therefore differ from the
  distance between two consecutive snapshots.

CONCURRENCY:
  Each mutation runs read -> compute -> SetDebt(expectedVersion) -> append
  inside WithTx. A lost optimistic lock rolls the unit back and the whole
  unit is retried against the fresh balance, up to maxAttempts.

SEE ALSO:
  - store.go: SetDebt compare-and-set contract
  - transactions.go: the independent pending-transaction view of debt
*/
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultClearNote is recorded when ClearDebt is called without a note.
const DefaultClearNote = "full debt cleared"

// =============================================================================
// INPUTS / RESULTS
// =============================================================================

type AdjustDebtInput struct {
	UserID        UserID
	NewDebtAmount decimal.Decimal
	// ExplicitChangeAmount, when non-nil and nonzero, supplies the recorded
	// ChangeAmount magnitude instead of |new - old|.
	ExplicitChangeAmount *decimal.Decimal
	Note                 string
}

// DebtResult is the confirmation of a debt mutation.
// Entry is nil when no history entry was appended.
type DebtResult struct {
	Account Account
	Entry   *DebtHistoryEntry
}

// =============================================================================
// DEBTS SERVICE
// =============================================================================

type Debts struct {
	store TxStore
	opts  options
}

func NewDebts(store TxStore, opts ...Option) *Debts {
	return &Debts{store: store, opts: buildOptions(opts)}
}

// AdjustDebt sets the user's balance to in.NewDebtAmount and appends one
// history entry, even when the balance does not change.
func (d *Debts) AdjustDebt(ctx context.Context, in AdjustDebtInput) (DebtResult, error) {
	if err := CheckDebtAmount(in.NewDebtAmount); err != nil {
		return DebtResult{}, err
	}

	var result DebtResult
	err := d.withRetry(ctx, func(s Store) error {
		user, err := s.GetUser(ctx, in.UserID)
		if err != nil {
			return err
		}

		oldAmount := user.DebtAmount
		delta := in.NewDebtAmount.Sub(oldAmount)

		change := delta.Abs()
		if in.ExplicitChangeAmount != nil && !in.ExplicitChangeAmount.IsZero() {
			change = in.ExplicitChangeAmount.Abs()
		}
		changeType := ChangeDecrease
		if delta.IsPositive() {
			changeType = ChangeIncrease
		}

		now := d.opts.now()
		account, err := s.SetDebt(ctx, in.UserID, in.NewDebtAmount, user.Version, now)
		if err != nil {
			return err
		}

		entry := DebtHistoryEntry{
			ID:           uuid.NewString(),
			UserID:       in.UserID,
			Date:         now,
			Amount:       in.NewDebtAmount,
			ChangeAmount: change,
			Type:         changeType,
			Note:         in.Note,
		}
		if err := s.AppendHistory(ctx, entry); err != nil {
			return err
		}

		result = DebtResult{Account: account, Entry: &entry}
		d.opts.log.Info("debt adjusted",
			zap.String("user_id", string(in.UserID)),
			zap.String("old_amount", oldAmount.String()),
			zap.String("new_amount", in.NewDebtAmount.String()),
			zap.String("change_type", string(changeType)),
		)
		return nil
	})
	return result, err
}

// ClearDebt sets the balance to zero. A history entry is appended only if
// the balance was nonzero; LastDebtUpdate moves either way.
func (d *Debts) ClearDebt(ctx context.Context, userID UserID, note string) (DebtResult, error) {
	if note == "" {
		note = DefaultClearNote
	}

	var result DebtResult
	err := d.withRetry(ctx, func(s Store) error {
		user, err := s.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		oldAmount := user.DebtAmount
		now := d.opts.now()
		account, err := s.SetDebt(ctx, userID, decimal.Zero, user.Version, now)
		if err != nil {
			return err
		}
		result = DebtResult{Account: account}

		if oldAmount.IsZero() {
			d.opts.log.Debug("debt already zero, no history recorded",
				zap.String("user_id", string(userID)))
			return nil
		}

		entry := DebtHistoryEntry{
			ID:           uuid.NewString(),
			UserID:       userID,
			Date:         now,
			Amount:       decimal.Zero,
			ChangeAmount: oldAmount,
			Type:         ChangeDecrease,
			Note:         note,
		}
		if err := s.AppendHistory(ctx, entry); err != nil {
			return err
		}
		result.Entry = &entry

		d.opts.log.Info("debt cleared",
			zap.String("user_id", string(userID)),
			zap.String("old_amount", oldAmount.String()),
		)
		return nil
	})
	return result, err
}

// History returns the user's history, most recent first. An unknown user
// is ErrNotFound; a known user without history gets an empty slice.
func (d *Debts) History(ctx context.Context, userID UserID) ([]DebtHistoryEntry, error) {
	if _, err := d.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	entries, err := d.store.LoadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []DebtHistoryEntry{}
	}
	return entries, nil
}

func (d *Debts) Balance(ctx context.Context, userID UserID) (Account, error) {
	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	return user.Account, nil
}

func (d *Debts) Accounts(ctx context.Context) ([]Account, error) {
	return d.store.ListAccounts(ctx)
}

// withRetry runs fn in a store transaction, retrying when the optimistic
// lock on the account was lost.
func (d *Debts) withRetry(ctx context.Context, fn func(Store) error) error {
	var err error
	for attempt := 1; attempt <= d.opts.maxAttempts; attempt++ {
		err = d.store.WithTx(ctx, fn)
		if !IsRetryable(err) {
			return err
		}
		d.opts.log.Warn("debt mutation lost optimistic lock, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
	}
	return err
}
