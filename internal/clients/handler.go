package clients

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
	List(ctx context.Context, filter ListFilter) ([]Client, shared.Pagination, error)
	Create(ctx context.Context, in Input) (*Client, error)
	Update(ctx context.Context, id int64, in Input) (*Client, error)
	Delete(ctx context.Context, id int64) error
	Export(ctx context.Context, filter ListFilter) ([]ExportRow, error)

	AddContact(ctx context.Context, clientID int64, in ContactInput) (*Contact, error)
	RemoveContact(ctx context.Context, clientID, contactID int64) error
	ListInteractions(ctx context.Context, filter InteractionFilter) ([]Interaction, shared.Pagination, error)
	RecordInteraction(ctx context.Context, clientID int64, in InteractionInput) (*Interaction, error)
	DeleteInteraction(ctx context.Context, clientID, interactionID int64) error
}

// Handler manages client endpoints.
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

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermClientsView))
			r.Get("/", h.list)
			r.Get("/export", h.export)
			r.Get("/{id}", h.show)
			r.Get("/{id}/interactions", h.listInteractions)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(rbac.PermClientsEdit))
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.delete)
			r.Post("/{id}/contacts", h.addContact)
			r.Delete("/{id}/contacts/{contactID}", h.removeContact)
			r.Post("/{id}/interactions", h.recordInteraction)
			r.Delete("/{id}/interactions/{interactionID}", h.deleteInteraction)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Page = page
	list, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list clients", err)
		return
	}
	httpx.Page(w, list, pagination)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Sector: strings.TrimSpace(q.Get("sector")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			return ListFilter{}, shared.NewValidationError("status", "must be one of: prospect, active, inactive")
		}
		filter.Status = &status
	}
	return filter, nil
}

// export writes every matching client with its primary contact. format=csv
// returns an attachment, anything else the JSON envelope.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format != "" && format != "csv" && format != "json" {
		httpx.RespondError(w, shared.NewValidationError("format", "must be csv or json"))
		return
	}
	rows, err := h.service.Export(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "export clients", err)
		return
	}
	if format != "csv" {
		httpx.Data(w, http.StatusOK, "", rows)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="clients.csv"`)
	if err := writeExportCSV(w, rows); err != nil {
		h.logger.Error("write clients csv", append(shared.LogAttrs(r.Context()), slog.Any("error", err))...)
	}
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, "get client", err)
		return
	}
	httpx.Data(w, http.StatusOK, "", detail)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create client", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "client created", c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update client", err)
		return
	}
	httpx.Data(w, http.StatusOK, "client updated", c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, r, h.logger, "delete client", err)
		return
	}
	httpx.Data(w, http.StatusOK, "client deleted", map[string]int64{"id": id})
}

func (h *Handler) addContact(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ContactInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.AddContact(r.Context(), id, in)
	if err != nil {
		httpx.Fail(w, r, h.logger, "add client contact", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "contact added", c)
}

func (h *Handler) removeContact(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	contactID, err := httpx.IDParam(r, "contactID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveContact(r.Context(), id, contactID); err != nil {
		httpx.Fail(w, r, h.logger, "remove client contact", err)
		return
	}
	httpx.Data(w, http.StatusOK, "contact removed", map[string]int64{"id": contactID})
}

func (h *Handler) listInteractions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := InteractionFilter{ClientID: id, Page: page}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind, ok := ParseInteractionKind(raw)
		if !ok {
			httpx.RespondError(w, shared.NewValidationError("kind", "must be one of: "+interactionKinds))
			return
		}
		filter.Kind = &kind
	}
	list, pagination, err := h.service.ListInteractions(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list client interactions", err)
		return
	}
	httpx.Page(w, list, pagination)
}

func (h *Handler) recordInteraction(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in InteractionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validate, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	it, err := h.service.RecordInteraction(r.Context(), id, in)
	if err != nil {
		httpx.Fail(w, r, h.logger, "record client interaction", err)
		return
	}
	httpx.Data(w, http.StatusCreated, "interaction recorded", it)
}

func (h *Handler) deleteInteraction(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	interactionID, err := httpx.IDParam(r, "interactionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteInteraction(r.Context(), id, interactionID); err != nil {
		httpx.Fail(w, r, h.logger, "delete client interaction", err)
		return
	}
	httpx.Data(w, http.StatusOK, "interaction deleted", map[string]int64{"id": interactionID})
}
