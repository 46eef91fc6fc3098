package services

import (
	"context"
	"errors"
	"fmt"

	"dompet/internal/core"
	"dompet/internal/storage"

	"github.com/google/uuid"
)

// applyEffects moves the payment method balance and the charged budget line by
// the transaction amount. With revert set it undoes a previous application.
func applyEffects(ctx context.Context, q *storage.Queries, t core.Transaction, revert bool) error {
	method, err := q.GetPaymentMethod(ctx, t.PaymentMethodID)
	if err != nil {
		return err
	}

	var kind core.CategoryKind
	entry, isCategory := t.Entry.(core.CategoryEntry)
	if isCategory {
		c, err := q.GetCategory(ctx, entry.CategoryID)
		if err != nil {
			return err
		}
		kind = c.Kind
	}

	if method.TracksBalance {
		delta := t.BalanceDelta(kind)
		if revert {
			delta = delta.Neg()
		}
		balance, err := method.Balance.Add(delta)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", method.Name, err)
		}
		if err := q.UpdatePaymentMethodBalance(ctx, method.ID, balance); err != nil {
			return err
		}
	}

	if !isCategory || entry.BudgetLineID == uuid.Nil {
		return nil
	}
	line, err := q.GetBudgetLine(ctx, entry.BudgetLineID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var used core.Money
	if revert {
		used, err = line.Used.Sub(t.Amount)
	} else {
		used, err = line.Used.Add(t.Amount)
	}
	if err != nil {
		return fmt.Errorf("budget line usage: %w", err)
	}
	return q.UpdateBudgetLineUsed(ctx, line.ID, used)
}

// linkBudgetLine points an expense transaction at the line of its category in
// the window containing its date. Other transactions are left unlinked.
func linkBudgetLine(ctx context.Context, q *storage.Queries, t core.Transaction) (core.Transaction, error) {
	entry, ok := t.Entry.(core.CategoryEntry)
	if !ok {
		return t, nil
	}
	entry.BudgetLineID = uuid.Nil
	t.Entry = entry

	c, err := q.GetCategory(ctx, entry.CategoryID)
	if err != nil {
		return t, err
	}
	if c.Kind != core.Expense {
		return t, nil
	}

	b, err := q.PeriodicBudgetAt(ctx, t.Date)
	if errors.Is(err, core.ErrNotFound) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	line, err := q.BudgetLineFor(ctx, b.ID, c.ID)
	if errors.Is(err, core.ErrNotFound) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	entry.BudgetLineID = line.ID
	t.Entry = entry
	return t, nil
}

// removeTransaction reverts and deletes a category transaction, or the whole
// top-up when t is a transfer leg.
func removeTransaction(ctx context.Context, q *storage.Queries, t core.Transaction) ([]core.Transaction, error) {
	leg, ok := t.Entry.(core.TransferLeg)
	if !ok {
		if err := applyEffects(ctx, q, t, true); err != nil {
			return nil, err
		}
		return []core.Transaction{t}, q.DeleteTransaction(ctx, t.ID)
	}

	top, err := q.GetTopUp(ctx, leg.TopUpID)
	if err != nil {
		return nil, err
	}
	var removed []core.Transaction
	for _, id := range []uuid.UUID{top.SourceID, top.TargetID} {
		l, err := q.GetTransaction(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := applyEffects(ctx, q, l, true); err != nil {
			return nil, err
		}
		if err := q.DeleteTransaction(ctx, l.ID); err != nil {
			return nil, err
		}
		removed = append(removed, l)
	}
	return removed, q.DeleteTopUp(ctx, top.ID)
}
