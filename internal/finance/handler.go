package finance

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/rbac"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Ledger is the subset of Service used by the HTTP layer.
type Ledger interface {
	RegisterPayment(ctx context.Context, in PaymentInput) (*PaymentReceipt, error)
	GetPaymentsForQuotation(ctx context.Context, quotationID int64) (*QuotationPayments, error)
	CreateMovement(ctx context.Context, in MovementInput) (*Movement, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, shared.Pagination, error)
	GetDashboard(ctx context.Context, query PeriodQuery) (*Dashboard, error)
	GetIncomeExpenseReport(ctx context.Context, year int) (*IncomeExpenseReport, error)
}

// Handler manages finance endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Ledger
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Ledger, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator(), rbac: rbac}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermFinanceView))
		r.Get("/finance/dashboard", h.dashboard)
		r.Get("/finance/reports/income-expense", h.incomeExpense)
		r.Get("/finance/movements", h.listMovements)
		r.Get("/finance/payments/{id}", h.listPayments)
		r.Get("/quotations/{id}/payments", h.listPayments)
		r.Get("/financiero/dashboard", h.dashboard)
		r.Get("/financiero/reportes/ingresos-egresos", h.incomeExpense)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermFinanceEdit))
		r.Post("/finance/movements", h.createMovement)
		r.Post("/finance/payments", h.registerPayment)
		r.Post("/quotations/{id}/payments", h.registerPayment)
	})
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	var in PaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if chi.URLParam(r, "id") != "" {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.QuotationID = id
	}
	if err := httpx.ValidateStruct(h.validate, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	receipt, err := h.service.RegisterPayment(r.Context(), in)
	if err != nil {
		httpx.Fail(w, r, h.logger, "register payment", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "payment registered", receipt)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.GetPaymentsForQuotation(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list payments", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", payments)
}

func (h *Handler) createMovement(w http.ResponseWriter, r *http.Request) {
	var in MovementInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.CreateMovement(r.Context(), in)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create movement", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "movement recorded", m)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := MovementFilter{
		Category: strings.TrimSpace(firstOf(q.Get("category"), q.Get("categoria"))),
		Search:   strings.TrimSpace(q.Get("search")),
		Page:     page,
	}
	if raw := firstOf(q.Get("direction"), q.Get("tipo")); raw != "" {
		d, ok := ParseDirection(raw)
		if !ok {
			httpx.RespondError(w, shared.NewValidationError("direction", "must be income or expense"))
			return
		}
		filter.Direction = &d
	}
	if filter.From, err = dateQuery(firstOf(q.Get("from"), q.Get("fecha_inicio")), "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = dateQuery(firstOf(q.Get("to"), q.Get("fecha_fin")), "to"); err != nil {
		httpx.RespondError(w, err)
		return
	}

	list, pagination, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list movements", err)
		return
	}
	httpx.Page(w, list, pagination)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := ParsePeriod(firstOf(q.Get("period"), q.Get("periodo")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	month, err := intQuery(firstOf(q.Get("month"), q.Get("mes")), "month")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, err := intQuery(firstOf(q.Get("year"), q.Get("anio"), q.Get("año")), "year")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dash, err := h.service.GetDashboard(r.Context(), PeriodQuery{Period: period, Month: month, Year: year})
	if err != nil {
		httpx.Fail(w, r, h.logger, "finance dashboard", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", dash)
}

func (h *Handler) incomeExpense(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := intQuery(firstOf(q.Get("year"), q.Get("anio"), q.Get("año")), "year")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.GetIncomeExpenseReport(r.Context(), year)
	if err != nil {
		httpx.Fail(w, r, h.logger, "income expense report", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", report)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func intQuery(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.NewValidationError(field, "must be an integer")
	}
	return v, nil
}

func dateQuery(raw, field string) (*shared.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := shared.ParseDate(raw)
	if err != nil {
		return nil, shared.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return &d, nil
}
