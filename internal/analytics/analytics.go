// Package analytics aggregates already-loaded accounts and transactions
// into dashboard figures. Functions perform no I/O and take the reference
// time explicitly.
package analytics

import (
	"sort"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// MaxTrendMonths is the length of the trend series.
const MaxTrendMonths = 6

type monthTotals struct {
	income  core.Money
	expense core.Money
}

// Summary computes the overview for the calendar month containing now and
// compares it with the previous month.
func Summary(accounts []core.Account, txs []core.Transaction, now time.Time) core.Summary {
	today := core.DateOf(now.UTC())
	prevMonth := today.AddMonths(-1)

	var s core.Summary
	for _, a := range accounts {
		s.TotalBalance = s.TotalBalance.Add(a.Balance)
		if a.Type.IsDebt() {
			s.PendingLoans = s.PendingLoans.Add(a.Balance.Max(core.Zero))
		}
	}

	cur := totalsForMonth(txs, today)
	prev := totalsForMonth(txs, prevMonth)

	s.MonthlyIncome = cur.income
	s.MonthlyExpense = cur.expense
	s.PrevMonthIncome = prev.income
	s.PrevMonthExpense = prev.expense
	s.NetCashFlow = cur.income.Sub(cur.expense)
	s.IncomeChangePercent = PercentChange(cur.income, prev.income)
	s.ExpenseChangePercent = PercentChange(cur.expense, prev.expense)
	return s
}

// ExpensesByCategory sums business expenses per category name. Absent or
// dangling category references accumulate under core.UncategorizedLabel.
func ExpensesByCategory(txs []core.Transaction, categories []core.Category) core.CategoryTotals {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	out := make(core.CategoryTotals)
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.IsInternal() {
			continue
		}
		name := core.UncategorizedLabel
		if tx.CategoryID != nil {
			if n, ok := names[*tx.CategoryID]; ok {
				name = n
			}
		}
		out[name] = out[name].Add(tx.Amount)
	}
	return out
}

// MonthlyTrends groups business transactions by month and returns the last
// MaxTrendMonths months that have data, oldest first. Empty months are not
// filled in.
func MonthlyTrends(txs []core.Transaction) []core.MonthlyTrend {
	byMonth := make(map[string]*monthTotals)
	for _, tx := range txs {
		if tx.IsInternal() {
			continue
		}
		key := tx.TransactionDate.MonthKey()
		m, ok := byMonth[key]
		if !ok {
			m = &monthTotals{}
			byMonth[key] = m
		}
		m.add(tx)
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > MaxTrendMonths {
		keys = keys[len(keys)-MaxTrendMonths:]
	}

	out := make([]core.MonthlyTrend, 0, len(keys))
	for _, k := range keys {
		m := byMonth[k]
		out = append(out, core.MonthlyTrend{
			Month:   k,
			Income:  m.income,
			Expense: m.expense,
			Net:     m.income.Sub(m.expense),
		})
	}
	return out
}

// PercentChange returns (cur-prev)/prev*100 rounded to two places, and 0
// when prev is zero.
func PercentChange(cur, prev core.Money) float64 {
	if prev.IsZero() {
		return 0
	}
	pct := cur.Decimal().Sub(prev.Decimal()).
		Div(prev.Decimal()).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	f, _ := pct.Float64()
	return f
}

func totalsForMonth(txs []core.Transaction, month core.Date) monthTotals {
	var t monthTotals
	for _, tx := range txs {
		if tx.IsInternal() || !tx.TransactionDate.SameMonth(month) {
			continue
		}
		t.add(tx)
	}
	return t
}

func (m *monthTotals) add(tx core.Transaction) {
	switch tx.Type {
	case core.Income:
		m.income = m.income.Add(tx.Amount)
	case core.Expense:
		m.expense = m.expense.Add(tx.Amount)
	}
}
