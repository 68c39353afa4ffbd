package finance

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

const dashboardListLimit = 10

// Receivable is a quotation with an unpaid balance.
type Receivable struct {
	QuotationID    int64           `json:"quotation_id"`
	Number         string          `json:"number"`
	ClientName     string          `json:"client_name"`
	Date           shared.Date     `json:"date"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
}

// OpenPayable is an account payable that still needs paying.
type OpenPayable struct {
	ID             int64           `json:"id"`
	SupplierID     int64           `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name"`
	Concept        string          `json:"concept"`
	DueDate        shared.Date     `json:"due_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	Status         string          `json:"status"`
	OverdueDays    int             `json:"overdue_days"`
}

// Summary is the income/expense position of the selected window.
type Summary struct {
	Income  string  `json:"income"`
	Expense string  `json:"expense"`
	Balance string  `json:"balance"`
	Margin  float64 `json:"margin"`
}

// ReceivablesBlock lists outstanding client balances.
type ReceivablesBlock struct {
	Total string       `json:"total"`
	Count int          `json:"count"`
	Items []Receivable `json:"items"`
}

// OverdueBlock summarises the overdue subset of payables.
type OverdueBlock struct {
	Count int    `json:"count"`
	Total string `json:"total"`
}

// PayablesBlock lists open supplier balances.
type PayablesBlock struct {
	Total   string        `json:"total"`
	Count   int           `json:"count"`
	Overdue OverdueBlock  `json:"overdue"`
	Items   []OpenPayable `json:"items"`
}

// Dashboard is the aggregate returned by GetDashboard.
type Dashboard struct {
	Period          Period           `json:"period"`
	Range           *DateRange       `json:"range"`
	Summary         Summary          `json:"summary"`
	Receivables     ReceivablesBlock `json:"receivables"`
	Payables        PayablesBlock    `json:"payables"`
	RecentMovements []Movement       `json:"recent_movements"`
}

// Margin returns balance/income as a percentage rounded to two decimals, or
// zero when there is no income.
func Margin(income, expense decimal.Decimal) float64 {
	if !income.IsPositive() {
		return 0
	}
	pct := income.Sub(expense).Div(income).Mul(decimal.NewFromInt(100))
	f, _ := shared.Round2(pct).Float64()
	return f
}

// summarize builds the summary block from raw sums.
func summarize(income, expense decimal.Decimal) Summary {
	return Summary{
		Income:  income.StringFixed(2),
		Expense: expense.StringFixed(2),
		Balance: income.Sub(expense).StringFixed(2),
		Margin:  Margin(income, expense),
	}
}

func receivablesBlock(items []Receivable) ReceivablesBlock {
	total := decimal.Zero
	for _, r := range items {
		total = total.Add(r.PendingBalance)
	}
	if items == nil {
		items = []Receivable{}
	}
	return ReceivablesBlock{Total: total.StringFixed(2), Count: len(items), Items: items}
}

func payablesBlock(items []OpenPayable) PayablesBlock {
	total, overdueTotal := decimal.Zero, decimal.Zero
	overdueCount := 0
	for _, p := range items {
		total = total.Add(p.PendingBalance)
		if p.Status == "overdue" {
			overdueCount++
			overdueTotal = overdueTotal.Add(p.PendingBalance)
		}
	}
	if items == nil {
		items = []OpenPayable{}
	}
	return PayablesBlock{
		Total:   total.StringFixed(2),
		Count:   len(items),
		Overdue: OverdueBlock{Count: overdueCount, Total: overdueTotal.StringFixed(2)},
		Items:   items,
	}
}
