package finance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

type countingRecorder struct{ kinds map[string]int }

func (c *countingRecorder) PaymentRegistered(kind string) {
	if c.kinds == nil {
		c.kinds = map[string]int{}
	}
	c.kinds[kind]++
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, &memoryClaimer{}, &countingRecorder{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC) }
	return svc
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func acceptedQuotation(repo *memoryRepo, id int64, total string) {
	clientID := int64(3)
	repo.quotations[id] = QuotationRef{ID: id, Number: "00007", ClientID: &clientID, ClientName: "Cliente", Total: amount(total), Status: "accepted"}
}

func TestRegisterPaymentUntilFullyPaid(t *testing.T) {
	repo := newMemoryRepo()
	acceptedQuotation(repo, 1, "1000.00")
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.RegisterPayment(ctx, PaymentInput{QuotationID: 1, Type: "anticipo", Amount: amount("400.00")})
	require.NoError(t, err)
	assert.Equal(t, PaymentAdvance, first.Payment.Type)
	assert.Equal(t, "600.00", first.Summary.Balance.StringFixed(2))
	assert.Equal(t, MethodTransfer, first.Payment.Method)
	assert.Equal(t, "2025-06-15", first.Payment.PaymentDate.String())

	second, err := svc.RegisterPayment(ctx, PaymentInput{QuotationID: 1, Type: "pago_total", Amount: amount("600.00")})
	require.NoError(t, err)
	assert.True(t, second.Summary.FullyPaid)
	assert.True(t, second.Summary.Balance.IsZero())

	_, err = svc.RegisterPayment(ctx, PaymentInput{QuotationID: 1, Type: "partial", Amount: amount("0.01")})
	var over *shared.OverpaymentError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, "0.01", over.Excess.StringFixed(2))
	assert.Equal(t, "1000.00", over.AlreadyPaid.StringFixed(2))

	require.Len(t, repo.payments, 2)
	require.Len(t, repo.movements, 2)
	assert.Equal(t, CategoryAdvance, repo.movements[0].Category)
	assert.Equal(t, CategoryQuotationPayment, repo.movements[1].Category)
	for i, mv := range repo.movements {
		assert.Equal(t, DirectionIncome, mv.Direction)
		assert.True(t, mv.Amount.Equal(repo.payments[i].Amount))
		assert.Equal(t, int64(1), *mv.QuotationID)
		assert.Equal(t, repo.payments[i].ID, *mv.PaymentID)
		assert.Equal(t, int64(3), *mv.ClientID)
	}
}

func TestRegisterPaymentRequiresAcceptedQuotation(t *testing.T) {
	repo := newMemoryRepo()
	repo.quotations[1] = QuotationRef{ID: 1, Number: "00001", Total: amount("100"), Status: "sent"}
	svc := newTestService(repo)

	_, err := svc.RegisterPayment(context.Background(), PaymentInput{QuotationID: 1, Type: "full", Amount: amount("100")})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Empty(t, repo.payments)
	assert.Empty(t, repo.movements)
}

func TestRegisterPaymentMissingQuotation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.RegisterPayment(context.Background(), PaymentInput{QuotationID: 9, Type: "full", Amount: amount("1")})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRegisterPaymentValidation(t *testing.T) {
	repo := newMemoryRepo()
	acceptedQuotation(repo, 1, "100")
	svc := newTestService(repo)
	ctx := context.Background()

	cases := []PaymentInput{
		{QuotationID: 1, Type: "gift", Amount: amount("1")},
		{QuotationID: 1, Type: "full", Amount: amount("0")},
		{QuotationID: 1, Type: "full", Amount: amount("-5")},
		{QuotationID: 1, Type: "full", Amount: amount("1.005")},
		{QuotationID: 1, Type: "full", Amount: amount("1"), Method: "barter"},
		{Type: "full", Amount: amount("1")},
	}
	for _, in := range cases {
		_, err := svc.RegisterPayment(ctx, in)
		assert.ErrorIs(t, err, shared.ErrValidation, "%+v", in)
	}
}

func TestRegisterPaymentRollsBackWhenMovementFails(t *testing.T) {
	repo := newMemoryRepo()
	acceptedQuotation(repo, 1, "100")
	repo.failInsert = errBoom
	svc := newTestService(repo)

	_, err := svc.RegisterPayment(context.Background(), PaymentInput{QuotationID: 1, Type: "full", Amount: amount("100")})
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, repo.payments)
}

func TestRegisterPaymentIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	acceptedQuotation(repo, 1, "1000")
	svc := newTestService(repo)
	ctx := context.Background()

	in := PaymentInput{QuotationID: 1, Type: "partial", Amount: amount("100"), IdempotencyKey: "abc-1"}
	_, err := svc.RegisterPayment(ctx, in)
	require.NoError(t, err)
	_, err = svc.RegisterPayment(ctx, in)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, repo.payments, 1)
}

func TestGetPaymentsForQuotation(t *testing.T) {
	repo := newMemoryRepo()
	acceptedQuotation(repo, 1, "500")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RegisterPayment(ctx, PaymentInput{QuotationID: 1, Type: "advance", Amount: amount("200")})
	require.NoError(t, err)
	_, err = svc.RegisterPayment(ctx, PaymentInput{QuotationID: 1, Type: "partial", Amount: amount("50")})
	require.NoError(t, err)

	result, err := svc.GetPaymentsForQuotation(ctx, 1)
	require.NoError(t, err)
	require.Len(t, result.Payments, 2)
	assert.Equal(t, "50.00", result.Payments[0].Amount.StringFixed(2))
	assert.Equal(t, "250.00", result.Summary.TotalPaid.StringFixed(2))
	assert.Equal(t, "250.00", result.Summary.Balance.StringFixed(2))
	assert.False(t, result.Summary.FullyPaid)
}

func TestCreateMovementDefaults(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 4})

	m, err := svc.CreateMovement(ctx, MovementInput{Direction: "egreso", Category: "rent", Amount: amount("1200"), Description: "Arriendo junio"})
	require.NoError(t, err)
	assert.Equal(t, DirectionExpense, m.Direction)
	assert.Equal(t, MethodTransfer, m.Method)
	assert.Equal(t, "2025-06-15", m.Date.String())
	require.NotNil(t, m.UserID)
	assert.Equal(t, int64(4), *m.UserID)

	_, err = svc.CreateMovement(ctx, MovementInput{Direction: "sideways", Category: "x", Amount: amount("1"), Description: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestIncomeExpenseReportZeroFills(t *testing.T) {
	repo := newMemoryRepo()
	repo.movements = []Movement{
		{Direction: DirectionIncome, Amount: amount("500"), Date: shared.NewDate(time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC))},
		{Direction: DirectionExpense, Amount: amount("120.50"), Date: shared.NewDate(time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC))},
		{Direction: DirectionIncome, Amount: amount("75"), Date: shared.NewDate(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))},
	}
	svc := newTestService(repo)

	report, err := svc.GetIncomeExpenseReport(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, report.Months, 12)
	assert.Equal(t, MonthlyRow{Month: 1, Income: "0.00", Expense: "0.00", Balance: "0.00"}, report.Months[0])
	assert.Equal(t, MonthlyRow{Month: 2, Income: "500.00", Expense: "120.50", Balance: "379.50"}, report.Months[1])
	assert.Equal(t, 12, report.Months[11].Month)
	assert.Equal(t, "379.50", report.TotalBalance)

	_, err = svc.GetIncomeExpenseReport(context.Background(), 12)
	require.ErrorIs(t, err, shared.ErrValidation)
}
