package payables

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
	Create(ctx context.Context, req CreateRequest) (*AccountPayable, error)
	Get(ctx context.Context, id int64) (*AccountPayable, error)
	List(ctx context.Context, filter ListFilter) ([]AccountPayable, shared.Pagination, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*AccountPayable, error)
	Void(ctx context.Context, id int64) (*AccountPayable, error)
	RegisterSupplierPayment(ctx context.Context, payableID int64, req PaymentRequest) (*PaymentReceipt, error)
	ListSupplierPayments(ctx context.Context, payableID int64) ([]SupplierPayment, error)
}

// Handler manages accounts payable endpoints.
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

// MountRoutes registers payables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/payables", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermPayablesView))
			r.Get("/", h.list)
			r.Get("/{id}", h.show)
			r.Get("/{id}/payments", h.listPayments)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(rbac.PermPayablesEdit))
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Post("/{id}/void", h.void)
			r.Post("/{id}/payments", h.registerPayment)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{Page: page}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := Status(strings.ToLower(raw))
		filter.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("supplier_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, shared.NewValidationError("supplier_id", "must be a positive integer"))
			return
		}
		filter.SupplierID = &id
	}
	list, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list payables", err)
		return
	}
	httpx.Page(w, list, pagination)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, "get payable", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create payable", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "payable created", p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update payable", err)
		return
	}
	httpx.Data(w, http.StatusOK, "payable updated", p)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Void(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, "void payable", err)
		return
	}
	httpx.Data(w, http.StatusOK, "payable voided", p)
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipt, err := h.service.RegisterSupplierPayment(r.Context(), id, req)
	if err != nil {
		httpx.Fail(w, r, h.logger, "register supplier payment", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "supplier payment registered", receipt)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.ListSupplierPayments(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list supplier payments", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", payments)
}
