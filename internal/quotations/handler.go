package quotations

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/rbac"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Lifecycle is the subset of Service used by the HTTP layer.
type Lifecycle interface {
	Get(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, shared.Pagination, error)
	PeekNextNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, req CreateRequest) (*Quotation, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*Quotation, error)
	ChangeStatus(ctx context.Context, id int64, status, notes string) (*StatusChange, error)
	Send(ctx context.Context, id int64, recipient string) (*SendResult, error)
	Delete(ctx context.Context, id int64) error
}

// Handler manages quotation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Lifecycle
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Lifecycle, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator(), rbac: rbac}
}

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermQuotationsView))
		r.Get("/quotations", h.list)
		r.Get("/quotations/next-number", h.nextNumber)
		r.Get("/quotations/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotationsEdit))
		r.Post("/quotations", h.create)
		r.Put("/quotations/{id}", h.update)
		r.Post("/quotations/{id}/send", h.send)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotationsDelete))
		r.Delete("/quotations/{id}", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermFinanceEdit))
		r.Put("/quotations/{id}/status", h.changeStatus)
		r.Put("/finance/quotations/{id}/status", h.changeStatus)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   page,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := Status(strings.ToLower(raw))
		filter.Status = &status
	}
	list, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list quotations", err)
		return
	}
	httpx.Page(w, list, pagination)
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.service.PeekNextNumber(r.Context())
	if err != nil {
		httpx.Fail(w, r, h.logger, "peek quotation number", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", map[string]string{"next_number": number})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, "get quotation", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", q)
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
	q, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create quotation", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "quotation created", q)
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
	q, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update quotation", err)
		return
	}
	httpx.Data(w, http.StatusOK, "quotation updated", q)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	change, err := h.service.ChangeStatus(r.Context(), id, req.Status, req.Notes)
	if err != nil {
		httpx.Fail(w, r, h.logger, "change quotation status", err)
		return
	}
	httpx.Data(w, http.StatusOK, "status updated", change)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SendRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := httpx.ValidateStruct(h.validate, req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	result, err := h.service.Send(r.Context(), id, req.Recipient)
	if err != nil {
		httpx.Fail(w, r, h.logger, "send quotation", err)
		return
	}
	httpx.Data(w, http.StatusOK, "quotation sent", result)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, r, h.logger, "delete quotation", err)
		return
	}
	httpx.Data(w, http.StatusOK, "quotation deleted", map[string]int64{"id": id})
}
