package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dompet/internal/core"
	"dompet/internal/log"
	"dompet/internal/storage"

	"github.com/google/uuid"
)

// LineLimit is the spending limit of one category.
type LineLimit struct {
	CategoryID uuid.UUID
	Limit      core.Money
}

// BudgetService manages the budget as a whole. Creating windows after the
// first one is the rollover's job.
type BudgetService struct {
	storage *storage.SQLiteRepository
}

func NewBudgetService(storage *storage.SQLiteRepository) *BudgetService {
	return &BudgetService{storage: storage}
}

// CreateBudget starts a budget with the window of kind containing now. Expense
// transactions already dated in that window are charged to the new lines.
func (s *BudgetService) CreateBudget(ctx context.Context, kind core.PeriodKind, limits []LineLimit, now time.Time) (core.PeriodicBudget, []core.BudgetLine, error) {
	w, err := kind.WindowAt(now.In(s.storage.Location()))
	if err != nil {
		return core.PeriodicBudget{}, nil, err
	}
	b := core.PeriodicBudget{ID: uuid.New(), Kind: kind, StartDate: w.Start, EndDate: w.End}

	lines := make([]core.BudgetLine, 0, len(limits))
	for i, l := range limits {
		lines = append(lines, core.BudgetLine{
			ID:               uuid.New(),
			PeriodicBudgetID: b.ID,
			CategoryID:       l.CategoryID,
			Limit:            l.Limit,
			Used:             core.Zero(l.Limit.Currency),
			Order:            i,
		})
	}

	err = s.storage.InTx(ctx, func(q *storage.Queries) error {
		_, err := q.LatestPeriodicBudget(ctx)
		if err == nil {
			return core.ErrBudgetExists
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if err := q.InsertPeriodicBudget(ctx, b); err != nil {
			return err
		}
		for i := range lines {
			if err := s.checkLineCategory(ctx, q, lines[i]); err != nil {
				return err
			}
			if err := q.InsertBudgetLine(ctx, lines[i]); err != nil {
				return err
			}
		}
		return chargeExisting(ctx, q, w, lines)
	})
	if err != nil {
		return core.PeriodicBudget{}, nil, fmt.Errorf("create budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget created",
		log.FieldBudgetID, b.ID,
		log.FieldPeriodKind, kind,
		log.FieldWindowStart, b.StartDate.Format(time.RFC3339),
		"lines", len(lines))
	return b, lines, nil
}

func (s *BudgetService) checkLineCategory(ctx context.Context, q *storage.Queries, l core.BudgetLine) error {
	if err := l.Validate(); err != nil {
		return err
	}
	c, err := q.GetCategory(ctx, l.CategoryID)
	if err != nil {
		return err
	}
	if c.Kind != core.Expense {
		return fmt.Errorf("%w: budget lines need expense categories, %q is %s", core.ErrInvalidCategoryKind, c.Name, c.Kind)
	}
	return nil
}

// chargeExisting links unlinked expense transactions of w to the matching lines.
func chargeExisting(ctx context.Context, q *storage.Queries, w core.Window, lines []core.BudgetLine) error {
	byCategory := make(map[uuid.UUID]int, len(lines))
	for i, l := range lines {
		byCategory[l.CategoryID] = i
	}
	txs, err := q.ListTransactionsBetween(ctx, w.Start, w.End)
	if err != nil {
		return err
	}
	for _, t := range txs {
		entry, ok := t.Entry.(core.CategoryEntry)
		if !ok || entry.BudgetLineID != uuid.Nil {
			continue
		}
		i, ok := byCategory[entry.CategoryID]
		if !ok {
			continue
		}
		entry.BudgetLineID = lines[i].ID
		t.Entry = entry
		if err := q.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		if lines[i].Used, err = lines[i].Used.Add(t.Amount); err != nil {
			return err
		}
		if err := q.UpdateBudgetLineUsed(ctx, lines[i].ID, lines[i].Used); err != nil {
			return err
		}
	}
	return nil
}

// SetLimit changes the limit of a category in the window containing now,
// adding the line when the category has none yet. Later windows inherit it
// through the rollover.
func (s *BudgetService) SetLimit(ctx context.Context, categoryID uuid.UUID, limit core.Money, now time.Time) (core.BudgetLine, error) {
	if err := limit.Validate(); err != nil {
		return core.BudgetLine{}, err
	}
	var line core.BudgetLine
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		b, err := q.PeriodicBudgetAt(ctx, now)
		if err != nil {
			return fmt.Errorf("current window: %w", err)
		}
		line, err = q.BudgetLineFor(ctx, b.ID, categoryID)
		if err == nil {
			line.Limit = limit
			return q.UpdateBudgetLine(ctx, line)
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		existing, err := q.ListBudgetLines(ctx, b.ID)
		if err != nil {
			return err
		}
		line = core.BudgetLine{
			ID:               uuid.New(),
			PeriodicBudgetID: b.ID,
			CategoryID:       categoryID,
			Limit:            limit,
			Used:             core.Zero(limit.Currency),
			Order:            len(existing),
		}
		if err := s.checkLineCategory(ctx, q, line); err != nil {
			return err
		}
		if err := q.InsertBudgetLine(ctx, line); err != nil {
			return err
		}
		lines := []core.BudgetLine{line}
		if err := chargeExisting(ctx, q, b.Window(), lines); err != nil {
			return err
		}
		line = lines[0]
		return nil
	})
	if err != nil {
		return core.BudgetLine{}, fmt.Errorf("set limit: %w", err)
	}
	slog.InfoContext(ctx, "Budget limit set", "category_id", categoryID, "limit", limit.String())
	return line, nil
}

// CurrentWindow returns the window containing now and its lines.
func (s *BudgetService) CurrentWindow(ctx context.Context, now time.Time) (core.PeriodicBudget, []core.BudgetLine, error) {
	b, err := s.storage.PeriodicBudgetAt(ctx, now)
	if err != nil {
		return core.PeriodicBudget{}, nil, err
	}
	lines, err := s.storage.ListBudgetLines(ctx, b.ID)
	if err != nil {
		return core.PeriodicBudget{}, nil, err
	}
	return b, lines, nil
}

// DeleteBudget removes every window and line. Transactions stay, unlinked.
func (s *BudgetService) DeleteBudget(ctx context.Context) (int64, error) {
	var removed int64
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		var err error
		removed, err = q.DeleteAllBudgets(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget deleted", "windows", removed)
	return removed, nil
}
