package payables

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

func date(t *testing.T, s string) shared.Date {
	t.Helper()
	d, err := shared.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestRecompute(t *testing.T) {
	today := date(t, "2025-03-14")

	cases := []struct {
		name    string
		total   string
		paid    string
		due     string
		status  Status
		want    Status
		balance string
		days    int
	}{
		{name: "fully paid ignores due date", total: "500", paid: "500", due: "2025-01-01", want: StatusPaid, balance: "0", days: 72},
		{name: "unpaid and not due", total: "500", paid: "0", due: "2025-03-20", want: StatusPending, balance: "500"},
		{name: "due today is not overdue", total: "500", paid: "0", due: "2025-03-14", want: StatusPending, balance: "500"},
		{name: "unpaid past due", total: "500", paid: "0", due: "2025-03-10", want: StatusOverdue, balance: "500", days: 4},
		{name: "partially paid", total: "500", paid: "200", due: "2025-04-01", want: StatusPartial, balance: "300"},
		{name: "partially paid past due", total: "500", paid: "200", due: "2025-03-13", want: StatusOverdue, balance: "300", days: 1},
		{name: "voided stays voided", total: "500", paid: "0", due: "2025-03-01", status: StatusVoided, want: StatusVoided, balance: "500", days: 13},
		{name: "partial falls back to pending", total: "500", paid: "0", due: "2025-04-01", status: StatusPartial, want: StatusPending, balance: "500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := AccountPayable{
				TotalAmount: decimal.RequireFromString(tc.total),
				PaidAmount:  decimal.RequireFromString(tc.paid),
				DueDate:     date(t, tc.due),
				Status:      tc.status,
			}
			got := Recompute(p, today)
			assert.Equal(t, tc.want, got.Status)
			assert.True(t, decimal.RequireFromString(tc.balance).Equal(got.PendingBalance), got.PendingBalance.String())
			assert.Equal(t, tc.days, got.OverdueDays)
		})
	}
}

func TestRecomputeDoesNotMutateInput(t *testing.T) {
	p := AccountPayable{
		TotalAmount: decimal.NewFromInt(100),
		DueDate:     date(t, "2025-01-01"),
		Status:      StatusPending,
	}
	_ = Recompute(p, date(t, "2025-02-01"))
	assert.Equal(t, StatusPending, p.Status)
	assert.Zero(t, p.OverdueDays)
}

func TestParseEnums(t *testing.T) {
	tp, ok := ParseExpenseType("Servicio_Tecnico")
	require.True(t, ok)
	assert.Equal(t, ExpenseType("technical_service"), tp)

	_, ok = ParseExpenseType("groceries")
	assert.False(t, ok)

	pr, ok := ParsePriority("")
	require.True(t, ok)
	assert.Equal(t, PriorityMedium, pr)

	pr, ok = ParsePriority("alta")
	require.True(t, ok)
	assert.Equal(t, PriorityHigh, pr)

	_, ok = ParsePriority("urgent")
	assert.False(t, ok)
}
