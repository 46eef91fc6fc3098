package services

import (
	"context"
	"testing"
	"time"

	"dompet/internal/core"
	"dompet/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_ExportByCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food := f.category(t, "Food", core.Expense)
	fun := f.category(t, "Fun", core.Expense)
	card := f.method(t, "BCA", core.DebitCard, 1000000)
	wallet := f.method(t, "GoPay", core.EWallet, 0)
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	for _, tx := range []core.Transaction{
		{Amount: rp(30000), PaymentMethodID: card.ID, Date: day, Entry: core.CategoryEntry{CategoryID: food.ID}},
		{Amount: rp(10000), PaymentMethodID: card.ID, Date: day, Entry: core.CategoryEntry{CategoryID: fun.ID}},
	} {
		_, err := f.ledger.RecordTransaction(ctx, tx)
		require.NoError(t, err)
	}
	_, err := f.ledger.RecordTopUp(ctx, card.ID, wallet.ID, rp(5000), day, "")
	require.NoError(t, err)

	march, err := core.Monthly.WindowAt(day)
	require.NoError(t, err)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	out := memory.New()
	ref, err := NewReportService(f.repo).Export(ctx, out, GroupByCategory, march, now)
	require.NoError(t, err)
	assert.Equal(t, "mem:category 2024-03-01 - 2024-03-31", ref)

	rows, ok := out.Report("category 2024-03-01 - 2024-03-31")
	require.True(t, ok)
	require.Len(t, rows, 5)
	assert.Equal(t, []any{"Food", "Rp 30.000", 1, "60.00", "Rp 30.000", "Rp 6.000"}, rows[1])
	assert.Equal(t, []any{"Transfers", "Rp 10.000", 2, "20.00", "Rp 5.000", "Rp 2.000"}, rows[2], "ties sort by key")
	assert.Equal(t, "Fun", rows[3][0])
	assert.Equal(t, "Rp 50.000", rows[4][1])
}

func TestReport_Groupings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food := f.category(t, "Food", core.Expense)
	cash := f.method(t, "Cash", core.Cash, 0)
	for _, d := range []int{4, 5, 12} {
		_, err := f.ledger.RecordTransaction(ctx, core.Transaction{
			Amount:          rp(1000),
			PaymentMethodID: cash.ID,
			Date:            time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC),
			Entry:           core.CategoryEntry{CategoryID: food.ID},
		})
		require.NoError(t, err)
	}
	march, err := core.Monthly.WindowAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	svc := NewReportService(f.repo)
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	rows, err := svc.Rows(ctx, GroupByWeek, march, now)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2024-03-04", rows[1][0])
	assert.Equal(t, "Rp 2.000", rows[1][1])

	rows, err = svc.Rows(ctx, GroupByPaymentMethod, march, now)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Cash", rows[1][0])

	_, err = svc.Rows(ctx, GroupBy("year"), march, now)
	assert.Error(t, err)
}
