package core

// UncategorizedLabel names expenses without a resolvable category.
const UncategorizedLabel = "Sin categoría"

// Summary is the dashboard overview for one owner relative to a month.
type Summary struct {
	TotalBalance         Money   `json:"totalBalance"`
	MonthlyIncome        Money   `json:"monthlyIncome"`
	MonthlyExpense       Money   `json:"monthlyExpense"`
	PendingLoans         Money   `json:"pendingLoans"`
	NetCashFlow          Money   `json:"netCashFlow"`
	IncomeChangePercent  float64 `json:"incomeChangePercent"`
	ExpenseChangePercent float64 `json:"expenseChangePercent"`
	PrevMonthIncome      Money   `json:"prevMonthIncome"`
	PrevMonthExpense     Money   `json:"prevMonthExpense"`
}

// CategoryTotals maps a category name to its accumulated expense.
type CategoryTotals map[string]Money

// MonthlyTrend is one month of the trend series.
type MonthlyTrend struct {
	Month   string `json:"month"` // YYYY-MM
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
	Net     Money  `json:"net"`
}
