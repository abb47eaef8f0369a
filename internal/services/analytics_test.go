package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestAnalyticsService(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	cat, err := f.store.CreateCategory(ctx, core.Category{Name: "Alquiler", Type: core.Expense})
	require.NoError(t, err)

	drafts := []core.TransactionDraft{
		{Type: core.Income, Amount: core.MustParseMoney("1000.00"), Description: "Venta", TransactionDate: core.NewDate(2024, 3, 2)},
		{Type: core.Expense, Amount: core.MustParseMoney("400.00"), Description: "Local", CategoryID: core.Ref(cat.ID), TransactionDate: core.NewDate(2024, 3, 5)},
		{Type: core.Expense, Amount: core.MustParseMoney("50.00"), Description: "Varios", TransactionDate: core.NewDate(2024, 3, 6)},
		{Type: core.Income, Amount: core.MustParseMoney("500.00"), Description: "Venta", TransactionDate: core.NewDate(2024, 2, 20)},
	}
	for _, d := range drafts {
		_, err := f.ledger.CreateTransaction(ctx, f.owner.ID, d)
		require.NoError(t, err)
	}
	_, err = f.ledger.PayLoan(ctx, f.owner.ID, LoanPaymentRequest{
		FromAccountID: f.acc.ID, LoanAccountID: f.loan.ID, Amount: core.MustParseMoney("100.00"), Date: core.NewDate(2024, 3, 7),
	})
	require.NoError(t, err)

	svc := NewAnalyticsService(f.store).WithClock(func() time.Time { return fixedNow })

	summary, err := svc.Summary(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", summary.MonthlyIncome.String())
	assert.Equal(t, "450.00", summary.MonthlyExpense.String())
	assert.Equal(t, "550.00", summary.NetCashFlow.String())
	assert.Equal(t, "500.00", summary.PrevMonthIncome.String())
	assert.Equal(t, 100.0, summary.IncomeChangePercent)
	assert.Equal(t, "4900.00", summary.PendingLoans.String())

	byCat, err := svc.ExpensesByCategory(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "400.00", byCat["Alquiler"].String())
	assert.Equal(t, "50.00", byCat[core.UncategorizedLabel].String())
	assert.Len(t, byCat, 2)

	trends, err := svc.MonthlyTrends(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, "2024-02", trends[0].Month)
	assert.Equal(t, "2024-03", trends[1].Month)
	assert.Equal(t, "550.00", trends[1].Net.String())

	empty, err := svc.Summary(ctx, f.other.ID)
	require.NoError(t, err)
	assert.True(t, empty.TotalBalance.IsZero())
}
