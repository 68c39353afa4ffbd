package payables

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/finance"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Recorder receives business events for metrics.
type Recorder interface {
	PaymentRegistered(kind string)
}

// Service implements accounts payable.
type Service struct {
	repo    Repository
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service. metrics may be nil.
func NewService(repo Repository, metrics Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, metrics: metrics, logger: logger, now: time.Now}
}

func (s *Service) today() shared.Date {
	return shared.NewDate(s.now())
}

// Create records a supplier invoice with its derived balance and status.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*AccountPayable, error) {
	expenseType, ok := ParseExpenseType(req.ExpenseType)
	if !ok {
		return nil, shared.NewValidationError("expense_type", "is not a known expense type")
	}
	priority, ok := ParsePriority(req.Priority)
	if !ok {
		return nil, shared.NewValidationError("priority", "must be one of: high, medium, low")
	}
	if err := validateAmount("total_amount", req.TotalAmount, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Concept) == "" {
		return nil, shared.NewValidationError("concept", "is required")
	}
	if req.DueDate == nil || req.DueDate.IsZero() {
		return nil, shared.NewValidationError("due_date", "is required")
	}

	p := AccountPayable{
		SupplierID:    req.SupplierID,
		ExpenseType:   expenseType,
		Concept:       strings.TrimSpace(req.Concept),
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		InvoiceDate:   s.today(),
		DueDate:       *req.DueDate,
		TotalAmount:   req.TotalAmount,
		PaidAmount:    decimal.Zero,
		Priority:      priority,
		Notes:         req.Notes,
	}
	if req.InvoiceDate != nil && !req.InvoiceDate.IsZero() {
		p.InvoiceDate = *req.InvoiceDate
	}
	if id := shared.ActorID(ctx); id != 0 {
		p.UserID = &id
	}
	p = Recompute(p, s.today())

	name, err := s.repo.SupplierName(ctx, p.SupplierID)
	if err != nil {
		return nil, err
	}
	p.SupplierName = name
	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, err
	}
	s.logger.Info("payable created", append(shared.LogAttrs(ctx),
		slog.Int64("payable_id", p.ID),
		slog.Int64("supplier_id", p.SupplierID),
		slog.String("total", p.TotalAmount.StringFixed(2)))...)
	return &p, nil
}

// Get returns a payable as stored.
func (s *Service) Get(ctx context.Context, id int64) (*AccountPayable, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of payables ordered by due date.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]AccountPayable, shared.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, shared.Pagination{}, shared.NewValidationError("status", "must be one of: pending, partial, paid, overdue, voided")
	}
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.PerPage)
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Update changes header fields and the total, then recomputes the derived fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*AccountPayable, error) {
	var updated *AccountPayable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := applyUpdate(p, req); err != nil {
			return err
		}
		if req.SupplierID != nil {
			if p.SupplierName, err = tx.SupplierName(ctx, p.SupplierID); err != nil {
				return err
			}
		}
		next := Recompute(*p, s.today())
		if err := tx.Save(ctx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payable updated", append(shared.LogAttrs(ctx),
		slog.Int64("payable_id", updated.ID),
		slog.String("status", string(updated.Status)))...)
	return updated, nil
}

func applyUpdate(p *AccountPayable, req UpdateRequest) error {
	if req.SupplierID != nil {
		p.SupplierID = *req.SupplierID
	}
	if req.ExpenseType != nil {
		t, ok := ParseExpenseType(*req.ExpenseType)
		if !ok {
			return shared.NewValidationError("expense_type", "is not a known expense type")
		}
		p.ExpenseType = t
	}
	if req.Concept != nil {
		concept := strings.TrimSpace(*req.Concept)
		if concept == "" {
			return shared.NewValidationError("concept", "is required")
		}
		p.Concept = concept
	}
	if req.InvoiceNumber != nil {
		p.InvoiceNumber = strings.TrimSpace(*req.InvoiceNumber)
	}
	if req.InvoiceDate != nil && !req.InvoiceDate.IsZero() {
		p.InvoiceDate = *req.InvoiceDate
	}
	if req.DueDate != nil && !req.DueDate.IsZero() {
		p.DueDate = *req.DueDate
	}
	if req.Priority != nil {
		priority, ok := ParsePriority(*req.Priority)
		if !ok {
			return shared.NewValidationError("priority", "must be one of: high, medium, low")
		}
		p.Priority = priority
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	if req.TotalAmount != nil {
		if err := validateAmount("total_amount", *req.TotalAmount, false); err != nil {
			return err
		}
		if req.TotalAmount.LessThan(p.PaidAmount) {
			return shared.NewValidationError("total_amount",
				fmt.Sprintf("cannot be below the amount already paid (%s)", p.PaidAmount.StringFixed(2)))
		}
		p.TotalAmount = *req.TotalAmount
	}
	return nil
}

// Void cancels a payable. Voiding is idempotent; a fully paid payable cannot be voided.
func (s *Service) Void(ctx context.Context, id int64) (*AccountPayable, error) {
	var voided *AccountPayable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == StatusPaid {
			return &shared.InvalidStateError{Message: fmt.Sprintf("payable %d is already paid and cannot be voided", p.ID)}
		}
		p.Status = StatusVoided
		next := Recompute(*p, s.today())
		if err := tx.Save(ctx, &next); err != nil {
			return err
		}
		voided = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payable voided", append(shared.LogAttrs(ctx), slog.Int64("payable_id", id))...)
	return voided, nil
}

// RegisterSupplierPayment pays part or all of a payable and records the
// matching expense movement in the same transaction.
func (s *Service) RegisterSupplierPayment(ctx context.Context, payableID int64, req PaymentRequest) (*PaymentReceipt, error) {
	if err := validateAmount("amount", req.Amount, true); err != nil {
		return nil, err
	}
	method, ok := finance.ParseMethod(req.Method)
	if !ok {
		return nil, shared.NewValidationError("method", "must be one of: cash, transfer, check, card, other")
	}
	date := s.today()
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		date = *req.PaymentDate
	}
	var actor *int64
	if id := shared.ActorID(ctx); id != 0 {
		actor = &id
	}

	var receipt *PaymentReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		p, err := tx.GetForUpdate(ctx, payableID)
		if err != nil {
			return err
		}
		current := Recompute(*p, s.today())
		switch current.Status {
		case StatusVoided:
			return &shared.InvalidStateError{Message: fmt.Sprintf("payable %d is voided", p.ID)}
		case StatusPaid:
			return &shared.InvalidStateError{Message: fmt.Sprintf("payable %d is already paid", p.ID)}
		}
		if req.Amount.GreaterThan(current.PendingBalance) {
			return shared.NewOverpaymentError(current.TotalAmount, current.PaidAmount, req.Amount)
		}

		payment := SupplierPayment{
			PayableID:       current.ID,
			SupplierID:      current.SupplierID,
			Amount:          req.Amount,
			PaymentDate:     date,
			Method:          method,
			ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
			Bank:            strings.TrimSpace(req.Bank),
			Notes:           req.Notes,
			UserID:          actor,
		}
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}

		current.PaidAmount = current.PaidAmount.Add(req.Amount)
		next := Recompute(current, s.today())
		if err := tx.Save(ctx, &next); err != nil {
			return err
		}

		movement := finance.Movement{
			Direction:         finance.DirectionExpense,
			Category:          finance.CategorySupplierPayment,
			Subcategory:       string(next.ExpenseType),
			Amount:            req.Amount,
			Date:              date,
			Description:       fmt.Sprintf("Supplier payment - %s - %s", next.SupplierName, next.Concept),
			SupplierID:        &next.SupplierID,
			SupplierName:      next.SupplierName,
			PayableID:         &next.ID,
			SupplierPaymentID: &payment.ID,
			Method:            method,
			ReferenceNumber:   payment.ReferenceNumber,
			UserID:            actor,
		}
		if err := tx.InsertMovement(ctx, &movement); err != nil {
			return err
		}

		receipt = &PaymentReceipt{Payment: payment, MovementID: movement.ID, Payable: next}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentRegistered("supplier")
	}
	s.logger.Info("supplier payment registered", append(shared.LogAttrs(ctx),
		slog.Int64("payable_id", payableID),
		slog.String("amount", req.Amount.StringFixed(2)),
		slog.String("status", string(receipt.Payable.Status)))...)
	return receipt, nil
}

// ListSupplierPayments lists a payable's payments newest first.
func (s *Service) ListSupplierPayments(ctx context.Context, payableID int64) ([]SupplierPayment, error) {
	if _, err := s.repo.Get(ctx, payableID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, payableID)
}

// RefreshOverdue recomputes every open payable as of today and returns how many changed.
func (s *Service) RefreshOverdue(ctx context.Context, today time.Time) (int, error) {
	day := shared.NewDate(today)
	changed := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		changed = 0
		open, err := tx.ListOpenForUpdate(ctx)
		if err != nil {
			return err
		}
		for _, p := range open {
			next := Recompute(p, day)
			if next.Status == p.Status && next.OverdueDays == p.OverdueDays {
				continue
			}
			if err := tx.Save(ctx, &next); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("payables overdue refreshed", append(shared.LogAttrs(ctx),
		slog.String("as_of", day.String()),
		slog.Int("changed", changed))...)
	return changed, nil
}

func validateAmount(field string, amount decimal.Decimal, positive bool) error {
	if positive && !amount.IsPositive() {
		return shared.NewValidationError(field, "must be greater than 0")
	}
	if amount.IsNegative() {
		return shared.NewValidationError(field, "must not be negative")
	}
	if !amount.Equal(shared.Round2(amount)) {
		return shared.NewValidationError(field, "must have at most two decimal places")
	}
	return nil
}
