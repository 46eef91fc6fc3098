package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dompet/internal/core"
	"dompet/internal/storage"

	"github.com/google/uuid"
)

// lighterShadeAmount is how far a category color is mixed with white for its
// lighter variant.
const lighterShadeAmount = 0.6

// DeletePolicy decides what happens to the records that depend on a deleted
// category. It is either MergeInto or Cascade.
type DeletePolicy interface {
	isDeletePolicy()
}

// MergeInto moves transactions and budget lines to Target, which must have the
// same kind.
type MergeInto struct {
	Target uuid.UUID
}

// Cascade removes the dependent transactions, reverting their effects, and the
// category's budget lines.
type Cascade struct{}

func (MergeInto) isDeletePolicy() {}
func (Cascade) isDeletePolicy()   {}

type starterCategory struct {
	name  string
	kind  core.CategoryKind
	icon  string
	color string
}

var starterCategories = []starterCategory{
	{"Food & Drinks", core.Expense, "🍜", "#F4A261"},
	{"Groceries", core.Expense, "🛒", "#2A9D8F"},
	{"Transport", core.Expense, "🚌", "#264653"},
	{"Bills & Utilities", core.Expense, "💡", "#E9C46A"},
	{"Shopping", core.Expense, "🛍️", "#E76F51"},
	{"Health", core.Expense, "💊", "#8AB17D"},
	{"Entertainment", core.Expense, "🎬", "#9B5DE5"},
	{"Education", core.Expense, "📚", "#00BBF9"},
	{"Salary", core.Income, "💼", "#06D6A0"},
	{"Bonus", core.Income, "🎁", "#118AB2"},
	{"Other Income", core.Income, "💰", "#73D2DE"},
}

type CategoryService struct {
	storage *storage.SQLiteRepository
}

func NewCategoryService(storage *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{storage: storage}
}

func prepareCategory(c core.Category, now time.Time) (core.Category, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Color != "" && c.LighterColor == "" {
		c.LighterColor = core.LighterShade(c.Color, lighterShadeAmount)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	return c, c.Validate()
}

func (s *CategoryService) CreateCategory(ctx context.Context, c core.Category, now time.Time) (core.Category, error) {
	c, err := prepareCategory(c, now)
	if err != nil {
		return core.Category{}, err
	}
	if err := s.storage.InsertCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "category_id", c.ID, "name", c.Name, "kind", c.Kind)
	return c, nil
}

// SeedDefaults creates the starter categories when no category exists yet and
// returns how many were created.
func (s *CategoryService) SeedDefaults(ctx context.Context, now time.Time) (int, error) {
	created := 0
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		n, err := q.CountCategories(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		for _, sc := range starterCategories {
			c, err := prepareCategory(core.Category{
				Name:  sc.name,
				Kind:  sc.kind,
				Icon:  core.TextIcon(sc.icon),
				Color: sc.color,
			}, now)
			if err != nil {
				return err
			}
			if err := q.InsertCategory(ctx, c); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed categories: %w", err)
	}
	if created > 0 {
		slog.InfoContext(ctx, "Seeded starter categories", "count", created)
	}
	return created, nil
}

// TopUpCategoryName is the name of the hidden categories created for an e-wallet.
func TopUpCategoryName(method core.PaymentMethod) string {
	return "Top up " + method.Name
}

// EnsureTopUpCategories makes sure the hidden income and expense categories of
// an e-wallet exist and returns them.
func (s *CategoryService) EnsureTopUpCategories(ctx context.Context, method core.PaymentMethod, now time.Time) ([]core.Category, error) {
	name := TopUpCategoryName(method)
	var out []core.Category
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		existing, err := q.ListCategories(ctx, true)
		if err != nil {
			return err
		}
		for _, kind := range []core.CategoryKind{core.Income, core.Expense} {
			found := false
			for _, c := range existing {
				if c.Hidden && c.Kind == kind && c.Name == name {
					out = append(out, c)
					found = true
					break
				}
			}
			if found {
				continue
			}
			c, err := prepareCategory(core.Category{
				Name:   name,
				Kind:   kind,
				Icon:   core.SymbolIcon("arrow.left.arrow.right"),
				Color:  method.Color,
				Hidden: true,
			}, now)
			if err != nil {
				return err
			}
			if err := q.InsertCategory(ctx, c); err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Categories lists the visible categories.
func (s *CategoryService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx, false)
}

// DeleteCategory removes a category after resolving its dependents with policy.
func (s *CategoryService) DeleteCategory(ctx context.Context, id uuid.UUID, policy DeletePolicy) error {
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		src, err := q.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		switch p := policy.(type) {
		case MergeInto:
			if err := mergeCategory(ctx, q, src, p.Target); err != nil {
				return err
			}
		case Cascade:
			if err := cascadeCategory(ctx, q, src); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown delete policy %T", policy)
		}
		return q.DeleteCategory(ctx, src.ID)
	})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	slog.InfoContext(ctx, "Category deleted", "category_id", id, "policy", fmt.Sprintf("%T", policy))
	return nil
}

func mergeCategory(ctx context.Context, q *storage.Queries, src core.Category, targetID uuid.UUID) error {
	if targetID == src.ID {
		return fmt.Errorf("cannot merge a category into itself")
	}
	target, err := q.GetCategory(ctx, targetID)
	if err != nil {
		return fmt.Errorf("merge target: %w", err)
	}
	if target.Kind != src.Kind {
		return fmt.Errorf("%w: cannot merge %s into %s", core.ErrInvalidCategoryKind, src.Kind, target.Kind)
	}

	lines, err := q.ListBudgetLinesByCategory(ctx, src.ID)
	if err != nil {
		return err
	}
	for _, l := range lines {
		tl, err := q.BudgetLineFor(ctx, l.PeriodicBudgetID, target.ID)
		if errors.Is(err, core.ErrNotFound) {
			l.CategoryID = target.ID
			if err := q.UpdateBudgetLine(ctx, l); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if tl.Limit, err = tl.Limit.Add(l.Limit); err != nil {
			return err
		}
		if tl.Used, err = tl.Used.Add(l.Used); err != nil {
			return err
		}
		if err := q.UpdateBudgetLine(ctx, tl); err != nil {
			return err
		}
		if err := q.RepointTransactionBudgetLine(ctx, l.ID, tl.ID); err != nil {
			return err
		}
		if err := q.DeleteBudgetLine(ctx, l.ID); err != nil {
			return err
		}
	}

	moved, err := q.ReassignTransactionCategory(ctx, src.ID, target.ID)
	if err != nil {
		return err
	}
	if !src.LastUsedAt.IsZero() {
		if err := q.TouchCategory(ctx, target.ID, src.LastUsedAt); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "Merged category", "from", src.ID, "into", target.ID, "transactions", moved)
	return nil
}

func cascadeCategory(ctx context.Context, q *storage.Queries, src core.Category) error {
	txs, err := q.ListTransactionsByCategory(ctx, src.ID)
	if err != nil {
		return err
	}
	for _, t := range txs {
		if _, err := removeTransaction(ctx, q, t); err != nil {
			return err
		}
	}
	lines, err := q.ListBudgetLinesByCategory(ctx, src.ID)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if err := q.DeleteBudgetLine(ctx, l.ID); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "Cascaded category delete", "category_id", src.ID, "transactions", len(txs), "budget_lines", len(lines))
	return nil
}
