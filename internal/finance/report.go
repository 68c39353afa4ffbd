package finance

import (
	"github.com/shopspring/decimal"
)

// MonthTotals is the per-direction sum for one month as read from storage.
type MonthTotals struct {
	Month   int
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// MonthlyRow is one month of the income/expense report.
type MonthlyRow struct {
	Month   int    `json:"month"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

// IncomeExpenseReport is the twelve-month series for a year.
type IncomeExpenseReport struct {
	Year         int          `json:"year"`
	Months       []MonthlyRow `json:"months"`
	TotalIncome  string       `json:"total_income"`
	TotalExpense string       `json:"total_expense"`
	TotalBalance string       `json:"total_balance"`
}

// BuildReport fills all twelve months, reporting zero where nothing was recorded.
func BuildReport(year int, totals []MonthTotals) IncomeExpenseReport {
	var income, expense [12]decimal.Decimal
	for _, t := range totals {
		if t.Month < 1 || t.Month > 12 {
			continue
		}
		income[t.Month-1] = income[t.Month-1].Add(t.Income)
		expense[t.Month-1] = expense[t.Month-1].Add(t.Expense)
	}

	report := IncomeExpenseReport{Year: year, Months: make([]MonthlyRow, 12)}
	sumIn, sumOut := decimal.Zero, decimal.Zero
	for i := 0; i < 12; i++ {
		report.Months[i] = MonthlyRow{
			Month:   i + 1,
			Income:  income[i].StringFixed(2),
			Expense: expense[i].StringFixed(2),
			Balance: income[i].Sub(expense[i]).StringFixed(2),
		}
		sumIn = sumIn.Add(income[i])
		sumOut = sumOut.Add(expense[i])
	}
	report.TotalIncome = sumIn.StringFixed(2)
	report.TotalExpense = sumOut.StringFixed(2)
	report.TotalBalance = sumIn.Sub(sumOut).StringFixed(2)
	return report
}
