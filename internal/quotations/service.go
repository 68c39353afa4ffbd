package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Notifier dispatches quotation emails after a send has been committed.
type Notifier interface {
	NotifyQuotationSent(ctx context.Context, req EmailRequest) error
}

// Recorder receives business events for metrics.
type Recorder interface {
	QuotationCreated()
	QuotationEmailEnqueued(ok bool)
}

// Defaults holds the configured values applied to new quotations.
type Defaults struct {
	Issuer       Issuer
	ValidityDays int
	Currency     string
	PaymentTerms string
}

// ServiceConfig tunes service behaviour.
type ServiceConfig struct {
	Defaults Defaults
	Policy   TransitionPolicy
}

// Service implements the quotation lifecycle.
type Service struct {
	repo     Repository
	cfg      ServiceConfig
	notifier Notifier
	metrics  Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. notifier and metrics may be nil.
func NewService(repo Repository, cfg ServiceConfig, notifier Notifier, metrics Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cfg: cfg, notifier: notifier, metrics: metrics, logger: logger, now: time.Now}
}

// Get returns a quotation with its items ordered by display order.
func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of quotations, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quotation, shared.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, shared.Pagination{}, shared.NewValidationError("status", "must be one of: draft, sent, accepted, rejected, voided")
	}
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.PerPage)
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// PeekNextNumber reports the number the next Create would receive. It does not reserve it.
func (s *Service) PeekNextNumber(ctx context.Context) (string, error) {
	last, err := s.repo.LastNumber(ctx)
	if err != nil {
		return "", err
	}
	return NextNumber(last)
}

// Create numbers, prices and stores a new draft quotation with its items atomically.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Quotation, error) {
	if len(req.Items) == 0 {
		return nil, shared.NewValidationError("items", "at least one item is required")
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}
	if err := validateTaxPercentage(req.TaxPercentage); err != nil {
		return nil, err
	}

	q := s.newQuotation(ctx, req)
	totals := ComputeTotals(items, q.TaxPercentage)
	if err := checkTotal(totals); err != nil {
		return nil, err
	}
	q.ApplyTotals(totals)

	if q.ClientID != nil && q.Client.IsEmpty() {
		snapshot, err := s.repo.ClientSnapshot(ctx, *q.ClientID)
		if err != nil {
			return nil, err
		}
		q.Client = snapshot
	}
	if strings.TrimSpace(q.Client.Name) == "" {
		return nil, shared.NewValidationError("client.name", "is required")
	}

	// One retry covers a writer that bypassed the advisory lock.
	for attempt := 0; ; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			if err := tx.LockNumbering(ctx); err != nil {
				return err
			}
			last, err := tx.LastNumber(ctx)
			if err != nil {
				return err
			}
			number, err := NextNumber(last)
			if err != nil {
				return err
			}
			q.Number = number
			if err := tx.Create(ctx, q); err != nil {
				return err
			}
			q.Items = cloneItems(items)
			return tx.InsertItems(ctx, q.ID, q.Items)
		})
		if errors.Is(err, ErrNumberTaken) && attempt == 0 {
			s.logger.Warn("quotation number collision, retrying", append(shared.LogAttrs(ctx), slog.String("number", q.Number))...)
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.QuotationCreated()
	}
	s.logger.Info("quotation created", append(shared.LogAttrs(ctx),
		slog.Int64("quotation_id", q.ID),
		slog.String("number", q.Number),
		slog.String("total", q.Total.StringFixed(2)))...)
	return q, nil
}

func (s *Service) newQuotation(ctx context.Context, req CreateRequest) *Quotation {
	d := s.cfg.Defaults
	q := &Quotation{
		Issuer:        d.Issuer,
		ClientID:      req.ClientID,
		Client:        req.Client.snapshot(),
		Date:          shared.NewDate(s.now()),
		ValidityDays:  d.ValidityDays,
		Currency:      d.Currency,
		PaymentTerms:  d.PaymentTerms,
		TaxPercentage: req.TaxPercentage,
		Notes:         req.Notes,
		Terms:         req.Terms,
		Status:        StatusDraft,
	}
	if req.Issuer != nil {
		q.Issuer = mergeIssuer(d.Issuer, *req.Issuer)
	}
	if req.Date != nil && !req.Date.IsZero() {
		q.Date = *req.Date
	}
	if req.ValidityDays != nil {
		q.ValidityDays = *req.ValidityDays
	}
	if req.Currency != "" {
		q.Currency = strings.ToUpper(req.Currency)
	}
	if req.PaymentTerms != nil {
		q.PaymentTerms = *req.PaymentTerms
	}
	if actor := shared.ActorID(ctx); actor != 0 {
		q.UserID = &actor
	}
	return q
}

// mergeIssuer keeps configured values for fields the caller left blank.
func mergeIssuer(base, override Issuer) Issuer {
	pick := func(a, b string) string {
		if strings.TrimSpace(b) != "" {
			return b
		}
		return a
	}
	return Issuer{
		Name:    pick(base.Name, override.Name),
		TaxID:   pick(base.TaxID, override.TaxID),
		Address: pick(base.Address, override.Address),
		Website: pick(base.Website, override.Website),
		Contact: pick(base.Contact, override.Contact),
		Email:   pick(base.Email, override.Email),
		Phone:   pick(base.Phone, override.Phone),
	}
}

// Update applies header changes and, when items are supplied, replaces all
// line items and recomputes totals in the same transaction. A tax percentage
// without items recomputes totals from the stored items.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Quotation, error) {
	var items []LineItem
	if len(req.Items) > 0 {
		built, err := buildItems(req.Items)
		if err != nil {
			return nil, err
		}
		items = built
	}
	if req.TaxPercentage != nil {
		if err := validateTaxPercentage(*req.TaxPercentage); err != nil {
			return nil, err
		}
	}

	var updated *Quotation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.applyHeader(ctx, tx, q, req); err != nil {
			return err
		}
		if req.TaxPercentage != nil {
			q.TaxPercentage = *req.TaxPercentage
		}
		if items != nil || req.TaxPercentage != nil {
			basis := items
			if basis == nil {
				basis = cloneItems(q.Items)
			}
			totals := ComputeTotals(basis, q.TaxPercentage)
			if err := checkTotal(totals); err != nil {
				return err
			}
			q.ApplyTotals(totals)
			paid, err := tx.PaidAmount(ctx, id)
			if err != nil {
				return err
			}
			if q.Total.LessThan(paid) {
				return &shared.InvalidStateError{Message: fmt.Sprintf(
					"new total %s is below the %s already paid on quotation %s",
					q.Total.StringFixed(2), paid.StringFixed(2), q.Number)}
			}
		}
		if err := tx.UpdateHeader(ctx, q); err != nil {
			return err
		}
		if items != nil {
			if err := tx.DeleteItems(ctx, id); err != nil {
				return err
			}
			q.Items = cloneItems(items)
			if err := tx.InsertItems(ctx, id, q.Items); err != nil {
				return err
			}
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("quotation updated", append(shared.LogAttrs(ctx),
		slog.Int64("quotation_id", id),
		slog.Bool("items_replaced", items != nil))...)
	return updated, nil
}

func (s *Service) applyHeader(ctx context.Context, tx Repository, q *Quotation, req UpdateRequest) error {
	if req.ClientID != nil {
		q.ClientID = req.ClientID
		if req.Client == nil {
			snapshot, err := tx.ClientSnapshot(ctx, *req.ClientID)
			if err != nil {
				return err
			}
			q.Client = snapshot
		}
	}
	if req.Client != nil {
		snapshot := req.Client.snapshot()
		if snapshot.Name == "" {
			return shared.NewValidationError("client.name", "is required")
		}
		q.Client = snapshot
	}
	if req.Issuer != nil {
		q.Issuer = mergeIssuer(q.Issuer, *req.Issuer)
	}
	if req.Date != nil && !req.Date.IsZero() {
		q.Date = *req.Date
	}
	if req.ValidityDays != nil {
		q.ValidityDays = *req.ValidityDays
	}
	if req.Currency != nil && *req.Currency != "" {
		q.Currency = strings.ToUpper(*req.Currency)
	}
	if req.PaymentTerms != nil {
		q.PaymentTerms = *req.PaymentTerms
	}
	if req.Notes != nil {
		q.Notes = *req.Notes
	}
	if req.Terms != nil {
		q.Terms = *req.Terms
	}
	return nil
}

// ChangeStatus moves a quotation to newStatus under the transition policy.
func (s *Service) ChangeStatus(ctx context.Context, id int64, newStatus, notes string) (*StatusChange, error) {
	to := Status(strings.ToLower(strings.TrimSpace(newStatus)))
	if !to.Valid() {
		return nil, shared.NewValidationError("status", "must be one of: draft, sent, accepted, rejected, voided")
	}

	var change *StatusChange
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.cfg.Policy.Check(q.Status, to); err != nil {
			return err
		}
		if q.Status != to {
			if err := tx.UpdateStatus(ctx, id, to); err != nil {
				return err
			}
		}
		change = &StatusChange{ID: q.ID, Number: q.Number, Previous: q.Status, Current: to}
		return nil
	})
	if err != nil {
		return nil, err
	}
	attrs := append(shared.LogAttrs(ctx),
		slog.Int64("quotation_id", id),
		slog.String("from", string(change.Previous)),
		slog.String("to", string(change.Current)))
	if notes != "" {
		attrs = append(attrs, slog.String("notes", notes))
	}
	s.logger.Info("quotation status changed", attrs...)
	return change, nil
}

// Send marks a draft quotation as sent, commits, and then enqueues the email.
// A quotation already sent stays sent. Notification failures never undo the commit.
func (s *Service) Send(ctx context.Context, id int64, recipient string) (*SendResult, error) {
	var (
		result *SendResult
		email  EmailRequest
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != StatusDraft && q.Status != StatusSent {
			return &shared.InvalidTransitionError{Entity: "quotation", From: string(q.Status), To: string(StatusSent)}
		}
		to := strings.TrimSpace(recipient)
		if to == "" {
			to = q.Client.Email
		}
		if to == "" {
			return shared.NewValidationError("recipient", "quotation has no client email; provide a recipient")
		}
		if q.Status == StatusDraft {
			if err := tx.UpdateStatus(ctx, id, StatusSent); err != nil {
				return err
			}
		}
		result = &SendResult{ID: q.ID, Number: q.Number, Status: StatusSent, Recipient: to}
		email = EmailRequest{
			QuotationID: q.ID,
			Number:      q.Number,
			Recipient:   to,
			ClientName:  q.Client.Name,
			Total:       q.Total,
			Currency:    q.Currency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyQuotationSent(ctx, email); err != nil {
			s.logger.Error("enqueue quotation email", append(shared.LogAttrs(ctx),
				slog.Int64("quotation_id", id), slog.Any("error", err))...)
		} else {
			result.EmailQueued = true
		}
		if s.metrics != nil {
			s.metrics.QuotationEmailEnqueued(result.EmailQueued)
		}
	}
	s.logger.Info("quotation sent", append(shared.LogAttrs(ctx),
		slog.Int64("quotation_id", id),
		slog.String("recipient", result.Recipient),
		slog.Bool("email_queued", result.EmailQueued))...)
	return result, nil
}

// Delete removes a quotation together with its items and payments.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("quotation deleted", append(shared.LogAttrs(ctx), slog.Int64("quotation_id", id))...)
	return nil
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
