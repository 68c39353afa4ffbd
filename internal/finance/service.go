package finance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

const idempotencyModule = "finance.payments"

// Claimer records idempotency keys inside the caller's transaction.
type Claimer interface {
	Claim(ctx context.Context, exec shared.Execer, module, key string) error
}

// Recorder receives business events for metrics.
type Recorder interface {
	PaymentRegistered(kind string)
}

// Service implements payment reconciliation, the ledger and its aggregates.
type Service struct {
	repo      Repository
	claimer   Claimer
	metrics   Recorder
	logger    *slog.Logger
	now       func() time.Time
	dashboard singleflight.Group
}

// NewService constructs a Service. claimer and metrics may be nil.
func NewService(repo Repository, claimer Claimer, metrics Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, claimer: claimer, metrics: metrics, logger: logger, now: time.Now}
}

// PaymentInput is the payload for RegisterPayment.
type PaymentInput struct {
	QuotationID     int64           `json:"quotation_id" validate:"omitempty,gt=0"`
	Type            string          `json:"payment_type" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     *shared.Date    `json:"payment_date"`
	Method          string          `json:"method"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Bank            string          `json:"bank" validate:"max=100"`
	Notes           string          `json:"notes"`
	IdempotencyKey  string          `json:"-"`
}

// RegisterPayment records a payment against an accepted quotation and mirrors
// it as an income movement. The quotation row is locked for the duration so
// concurrent payments cannot jointly exceed its total.
func (s *Service) RegisterPayment(ctx context.Context, in PaymentInput) (*PaymentReceipt, error) {
	if in.QuotationID <= 0 {
		return nil, shared.NewValidationError("quotation_id", "is required")
	}
	kind, ok := ParsePaymentType(in.Type)
	if !ok {
		return nil, shared.NewValidationError("payment_type", "must be one of: advance, partial, full")
	}
	method, ok := ParseMethod(in.Method)
	if !ok {
		return nil, shared.NewValidationError("method", "must be one of: cash, transfer, check, card, other")
	}
	if !in.Amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "must be greater than 0")
	}
	if !in.Amount.Equal(shared.Round2(in.Amount)) {
		return nil, shared.NewValidationError("amount", "must have at most two decimal places")
	}
	date := shared.NewDate(s.now())
	if in.PaymentDate != nil && !in.PaymentDate.IsZero() {
		date = *in.PaymentDate
	}
	var actor *int64
	if id := shared.ActorID(ctx); id != 0 {
		actor = &id
	}

	var receipt *PaymentReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if s.claimer != nil && in.IdempotencyKey != "" {
			if err := s.claimer.Claim(ctx, tx.Execer(), idempotencyModule, in.IdempotencyKey); err != nil {
				return err
			}
		}
		q, err := tx.GetQuotation(ctx, in.QuotationID, true)
		if err != nil {
			return err
		}
		if q.Status != quotationAccepted {
			return &shared.InvalidStateError{Message: fmt.Sprintf(
				"payments can only be registered on accepted quotations; quotation %s is %s", q.Number, q.Status)}
		}
		prior, err := tx.SumPayments(ctx, q.ID)
		if err != nil {
			return err
		}
		if prior.Add(in.Amount).GreaterThan(q.Total) {
			return shared.NewOverpaymentError(q.Total, prior, in.Amount)
		}

		payment := Payment{
			QuotationID:     q.ID,
			ClientID:        q.ClientID,
			Type:            kind,
			Amount:          in.Amount,
			PaymentDate:     date,
			Method:          method,
			ReferenceNumber: strings.TrimSpace(in.ReferenceNumber),
			Bank:            strings.TrimSpace(in.Bank),
			Notes:           in.Notes,
			UserID:          actor,
		}
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}

		label := "Payment"
		if kind == PaymentAdvance {
			label = "Advance"
		}
		movement := Movement{
			Direction:       DirectionIncome,
			Category:        CategoryFor(kind),
			Amount:          in.Amount,
			Date:            date,
			Description:     fmt.Sprintf("%s - Quotation %s - %s", label, q.Number, q.ClientName),
			ClientID:        q.ClientID,
			QuotationID:     &q.ID,
			PaymentID:       &payment.ID,
			Method:          method,
			ReferenceNumber: payment.ReferenceNumber,
			UserID:          actor,
		}
		if err := tx.InsertMovement(ctx, &movement); err != nil {
			return err
		}

		receipt = &PaymentReceipt{
			Payment:    payment,
			MovementID: movement.ID,
			Quotation:  q,
			Summary:    Summarize(q.Total, prior.Add(in.Amount)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentRegistered("quotation")
	}
	s.logger.Info("payment registered", append(shared.LogAttrs(ctx),
		slog.Int64("quotation_id", receipt.Quotation.ID),
		slog.String("number", receipt.Quotation.Number),
		slog.String("amount", receipt.Payment.Amount.StringFixed(2)),
		slog.String("balance", receipt.Summary.Balance.StringFixed(2)))...)
	return receipt, nil
}

// GetPaymentsForQuotation lists a quotation's payments newest first with its balance.
func (s *Service) GetPaymentsForQuotation(ctx context.Context, quotationID int64) (*QuotationPayments, error) {
	q, err := s.repo.GetQuotation(ctx, quotationID, false)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return &QuotationPayments{Quotation: q, Payments: payments, Summary: Summarize(q.Total, paid)}, nil
}

// MovementInput is the payload for CreateMovement.
type MovementInput struct {
	Direction       string          `json:"direction" validate:"required"`
	Category        string          `json:"category" validate:"required,max=100"`
	Subcategory     string          `json:"subcategory" validate:"max=100"`
	Amount          decimal.Decimal `json:"amount"`
	Date            *shared.Date    `json:"date"`
	Description     string          `json:"description" validate:"required"`
	ClientID        *int64          `json:"client_id" validate:"omitempty,gt=0"`
	QuotationID     *int64          `json:"quotation_id" validate:"omitempty,gt=0"`
	SupplierID      *int64          `json:"supplier_id" validate:"omitempty,gt=0"`
	PayableID       *int64          `json:"payable_id" validate:"omitempty,gt=0"`
	Method          string          `json:"method"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	SupplierName    string          `json:"supplier_name" validate:"max=255"`
}

// CreateMovement records a manual ledger entry attributed to the caller.
func (s *Service) CreateMovement(ctx context.Context, in MovementInput) (*Movement, error) {
	direction, ok := ParseDirection(in.Direction)
	if !ok {
		return nil, shared.NewValidationError("direction", "must be income or expense")
	}
	method, ok := ParseMethod(in.Method)
	if !ok {
		return nil, shared.NewValidationError("method", "must be one of: cash, transfer, check, card, other")
	}
	if !in.Amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "must be greater than 0")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, shared.NewValidationError("description", "is required")
	}
	m := Movement{
		Direction:       direction,
		Category:        strings.TrimSpace(in.Category),
		Subcategory:     strings.TrimSpace(in.Subcategory),
		Amount:          shared.Round2(in.Amount),
		Date:            shared.NewDate(s.now()),
		Description:     strings.TrimSpace(in.Description),
		ClientID:        in.ClientID,
		QuotationID:     in.QuotationID,
		SupplierID:      in.SupplierID,
		PayableID:       in.PayableID,
		Method:          method,
		ReferenceNumber: strings.TrimSpace(in.ReferenceNumber),
		SupplierName:    strings.TrimSpace(in.SupplierName),
	}
	if in.Date != nil && !in.Date.IsZero() {
		m.Date = *in.Date
	}
	if id := shared.ActorID(ctx); id != 0 {
		m.UserID = &id
	}
	if err := s.repo.InsertMovement(ctx, &m); err != nil {
		return nil, err
	}
	s.logger.Info("movement recorded", append(shared.LogAttrs(ctx),
		slog.Int64("movement_id", m.ID),
		slog.String("direction", string(m.Direction)),
		slog.String("amount", m.Amount.StringFixed(2)))...)
	return &m, nil
}

// ListMovements returns a filtered page of the ledger, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, shared.Pagination, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(filter.From.Time) {
		return nil, shared.Pagination{}, shared.NewValidationError("to", "must not be before from")
	}
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.PerPage)
	list, total, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// GetDashboard aggregates the selected window. Receivables, payables and
// recent movements always reflect the current outstanding position. Identical
// concurrent requests share one computation.
func (s *Service) GetDashboard(ctx context.Context, query PeriodQuery) (*Dashboard, error) {
	window, err := query.Resolve(s.now())
	if err != nil {
		return nil, err
	}
	period := query.Period
	if period == "" {
		period = PeriodAll
	}

	ch := s.dashboard.DoChan(rangeKey(window), func() (interface{}, error) {
		return s.buildDashboard(context.WithoutCancel(ctx), window)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		dash := *res.Val.(*Dashboard)
		dash.Period = period
		s.logger.Info("dashboard requested", append(shared.LogAttrs(ctx),
			slog.String("period", string(period)),
			slog.Bool("coalesced", res.Shared))...)
		return &dash, nil
	}
}

func (s *Service) buildDashboard(ctx context.Context, window *DateRange) (*Dashboard, error) {
	var (
		income, expense decimal.Decimal
		receivables     []Receivable
		payables        []OpenPayable
		recent          []Movement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, expense, err = s.repo.SumByDirection(gctx, window)
		return err
	})
	g.Go(func() error {
		var err error
		receivables, err = s.repo.Receivables(gctx, dashboardListLimit)
		return err
	})
	g.Go(func() error {
		var err error
		payables, err = s.repo.OpenPayables(gctx, dashboardListLimit)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.repo.RecentMovements(gctx, dashboardListLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []Movement{}
	}
	return &Dashboard{
		Range:           window,
		Summary:         summarize(income, expense),
		Receivables:     receivablesBlock(receivables),
		Payables:        payablesBlock(payables),
		RecentMovements: recent,
	}, nil
}

// GetIncomeExpenseReport returns twelve monthly rows for year, zero-filled.
func (s *Service) GetIncomeExpenseReport(ctx context.Context, year int) (*IncomeExpenseReport, error) {
	if year == 0 {
		year = s.now().Year()
	}
	if year < 1900 || year > 9999 {
		return nil, shared.NewValidationError("year", "must be a four digit year")
	}
	totals, err := s.repo.MonthlyTotals(ctx, year)
	if err != nil {
		return nil, err
	}
	report := BuildReport(year, totals)
	return &report, nil
}
