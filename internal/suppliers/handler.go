package suppliers

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

// Directory is the subset of Service used by the HTTP layer.
type Directory interface {
	Get(ctx context.Context, id int64) (*Detail, error)
	List(ctx context.Context, filter ListFilter) ([]Supplier, shared.Pagination, error)
	Create(ctx context.Context, in Input) (*Supplier, error)
	Update(ctx context.Context, id int64, in Input) (*Supplier, error)
	Delete(ctx context.Context, id int64) error
}

// Handler manages supplier endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Directory
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Directory, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator(), rbac: rbac}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/suppliers", func(r chi.Router) {
		r.With(h.rbac.RequireAny(rbac.PermSuppliersView)).Get("/", h.list)
		r.With(h.rbac.RequireAny(rbac.PermSuppliersView)).Get("/{id}", h.show)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(rbac.PermSuppliersEdit))
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.delete)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: strings.TrimSpace(q.Get("category")),
		Page:     page,
	}
	if raw := strings.TrimSpace(q.Get("kind")); raw != "" {
		kind, ok := ParseKind(raw)
		if !ok {
			httpx.RespondError(w, shared.NewValidationError("kind", "is not a known supplier kind"))
			return
		}
		filter.Kind = &kind
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			httpx.RespondError(w, shared.NewValidationError("status", "must be active or inactive"))
			return
		}
		filter.Status = &status
	}
	list, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list suppliers", err)
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
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, "get supplier", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", detail)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return in, false
	}
	if err := httpx.ValidateStruct(h.validate, in); err != nil {
		httpx.RespondError(w, err)
		return in, false
	}
	return in, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	sup, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create supplier", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "supplier created", sup)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	sup, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update supplier", err)
		return
	}
	httpx.Data(w, http.StatusOK, "supplier updated", sup)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, r, h.logger, "delete supplier", err)
		return
	}
	httpx.Data(w, http.StatusOK, "supplier deleted", map[string]int64{"id": id})
}
