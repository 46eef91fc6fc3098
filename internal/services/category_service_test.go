package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"dompet/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_SeedDefaultsOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := f.categories.SeedDefaults(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, len(starterCategories), n)

	n, err = f.categories.SeedDefaults(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := f.categories.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(starterCategories))
	for _, c := range all {
		assert.NotEmpty(t, c.LighterColor, "lighter color derived for %s", c.Name)
	}
}

func TestCategory_CreateValidates(t *testing.T) {
	f := newFixture(t)
	_, err := f.categories.CreateCategory(context.Background(), core.Category{Name: "  ", Kind: core.Expense, Icon: core.TextIcon("x")}, time.Now())
	assert.ErrorIs(t, err, core.ErrEmptyName)

	_, err = f.categories.CreateCategory(context.Background(), core.Category{Name: "Food", Kind: core.Expense}, time.Now())
	assert.ErrorIs(t, err, core.ErrInvalidIcon)
}

func TestCategory_MergeInto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	snacks := f.category(t, "Snacks", core.Expense)
	food := f.category(t, "Food", core.Expense)
	coffee := f.category(t, "Coffee", core.Expense)
	salary := f.category(t, "Salary", core.Income)
	cash := f.method(t, "Cash", core.Cash, 1000000)
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	_, lines, err := f.budgets.CreateBudget(ctx, core.Monthly, []LineLimit{
		{CategoryID: food.ID, Limit: rp(500000)},
		{CategoryID: snacks.ID, Limit: rp(100000)},
		{CategoryID: coffee.ID, Limit: rp(50000)},
	}, now)
	require.NoError(t, err)

	tx, err := f.ledger.RecordTransaction(ctx, core.Transaction{
		Amount:          rp(20000),
		PaymentMethodID: cash.ID,
		Date:            now,
		Entry:           core.CategoryEntry{CategoryID: snacks.ID},
	})
	require.NoError(t, err)

	err = f.categories.DeleteCategory(ctx, snacks.ID, MergeInto{Target: salary.ID})
	assert.ErrorIs(t, err, core.ErrInvalidCategoryKind, "kinds must match")

	require.NoError(t, f.categories.DeleteCategory(ctx, snacks.ID, MergeInto{Target: food.ID}))

	_, err = f.repo.GetCategory(ctx, snacks.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	moved, err := f.repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	entry := moved.Entry.(core.CategoryEntry)
	assert.Equal(t, food.ID, entry.CategoryID)
	assert.Equal(t, lines[0].ID, entry.BudgetLineID)

	merged, err := f.repo.GetBudgetLine(ctx, lines[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Rp 600.000", merged.Limit.Format())
	assert.Equal(t, "Rp 20.000", merged.Used.Format())
	assert.Equal(t, "Rp 980.000", f.balance(t, cash.ID), "balance untouched by merge")

	// Merging into a category without a line moves the line itself.
	require.NoError(t, f.categories.DeleteCategory(ctx, coffee.ID, MergeInto{Target: f.category(t, "Drinks", core.Expense).ID}))
	coffeeLine, err := f.repo.GetBudgetLine(ctx, lines[2].ID)
	require.NoError(t, err)
	assert.NotEqual(t, coffee.ID, coffeeLine.CategoryID)
}

func TestCategory_Cascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food := f.category(t, "Food", core.Expense)
	cash := f.method(t, "Cash", core.Cash, 100000)
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	_, lines, err := f.budgets.CreateBudget(ctx, core.Monthly, []LineLimit{{CategoryID: food.ID, Limit: rp(500000)}}, now)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.ledger.RecordTransaction(ctx, core.Transaction{
			Amount:          rp(10000),
			PaymentMethodID: cash.ID,
			Date:            now,
			Entry:           core.CategoryEntry{CategoryID: food.ID},
		})
		require.NoError(t, err)
	}
	assert.Equal(t, "Rp 70.000", f.balance(t, cash.ID))

	require.NoError(t, f.categories.DeleteCategory(ctx, food.ID, Cascade{}))
	assert.Equal(t, "Rp 100.000", f.balance(t, cash.ID))

	txs, err := f.repo.ListTransactionsBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, txs)
	_, err = f.repo.GetBudgetLine(ctx, lines[0].ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
