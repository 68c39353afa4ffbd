package clients

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/rbac"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

func (m *memoryRepo) Contacts(_ context.Context, clientID int64) ([]Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Contact{}
	for _, c := range m.contacts {
		if c.ClientID == clientID && c.IsActive {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memoryRepo) AddContact(_ context.Context, c *Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ClientID]; !ok {
		return &shared.NotFoundError{Entity: entity, ID: c.ClientID}
	}
	if c.IsPrimary {
		for i := range m.contacts {
			if m.contacts[i].ClientID == c.ClientID {
				m.contacts[i].IsPrimary = false
			}
		}
	}
	m.nextChildID++
	c.ID = m.nextChildID
	c.CreatedAt = time.Now()
	m.contacts = append(m.contacts, *c)
	return nil
}

func (m *memoryRepo) DeleteContact(_ context.Context, clientID, contactID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.contacts)
	m.contacts = slices.DeleteFunc(m.contacts, func(c Contact) bool { return c.ID == contactID && c.ClientID == clientID })
	if len(m.contacts) == before {
		return &shared.NotFoundError{Entity: contactEntity, ID: contactID}
	}
	return nil
}

func (m *memoryRepo) Interactions(_ context.Context, filter InteractionFilter) ([]Interaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Interaction
	for _, it := range m.interactions {
		if it.ClientID != filter.ClientID {
			continue
		}
		if filter.Kind != nil && it.Kind != *filter.Kind {
			continue
		}
		matched = append(matched, it)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	start := min(filter.Page.Offset(), total)
	end := min(start+filter.Page.PerPage, total)
	return append([]Interaction{}, matched[start:end]...), total, nil
}

func (m *memoryRepo) quotationExists(id int64) bool {
	for _, list := range m.quotations {
		for _, q := range list {
			if q.ID == id {
				return true
			}
		}
	}
	return false
}

func (m *memoryRepo) RecordInteraction(_ context.Context, it *Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[it.ClientID]
	if !ok {
		return &shared.NotFoundError{Entity: entity, ID: it.ClientID}
	}
	if it.QuotationID != nil && !m.quotationExists(*it.QuotationID) {
		return &shared.NotFoundError{Entity: "quotation", ID: *it.QuotationID}
	}
	if c.LastContactAt == nil || it.OccurredAt.After(*c.LastContactAt) {
		at := it.OccurredAt
		c.LastContactAt = &at
		m.clients[c.ID] = c
	}
	m.nextChildID++
	it.ID = m.nextChildID
	it.CreatedAt = time.Now()
	m.interactions = append(m.interactions, *it)
	return nil
}

func (m *memoryRepo) DeleteInteraction(_ context.Context, clientID, interactionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.interactions)
	m.interactions = slices.DeleteFunc(m.interactions, func(it Interaction) bool {
		return it.ID == interactionID && it.ClientID == clientID
	})
	if len(m.interactions) == before {
		return &shared.NotFoundError{Entity: interactionEntity, ID: interactionID}
	}
	return nil
}

func (m *memoryRepo) Export(ctx context.Context, filter ListFilter) ([]ExportRow, error) {
	filter.Page = shared.NewPageRequest(1, 100)
	list, _, err := m.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ExportRow{}
	for _, c := range list {
		row := ExportRow{Client: c}
		for _, contact := range m.contacts {
			if contact.ClientID == c.ID && contact.IsPrimary && contact.IsActive {
				row.PrimaryContact = &contact
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func TestParseInteractionKind(t *testing.T) {
	cases := map[string]InteractionKind{
		"call":     InteractionCall,
		"Llamada":  InteractionCall,
		"whatsapp": InteractionWhatsApp,
		"correo":   InteractionEmail,
		" visita ": InteractionVisit,
		"nota":     InteractionNote,
		"reunión":  InteractionMeeting,
		"MEETING":  InteractionMeeting,
	}
	for raw, want := range cases {
		got, ok := ParseInteractionKind(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseInteractionKind("fax")
	assert.False(t, ok)
}

func TestAddContactKeepsSinglePrimary(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil)
	c, err := svc.Create(ctx, validInput("890"))
	require.NoError(t, err)

	first, err := svc.AddContact(ctx, c.ID, ContactInput{Name: "Ana Perez", Position: "Compras", IsPrimary: true})
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	_, err = svc.AddContact(ctx, c.ID, ContactInput{Name: "Bruno Diaz"})
	require.NoError(t, err)
	third, err := svc.AddContact(ctx, c.ID, ContactInput{Name: "Carla Ruiz", Email: "carla@santaana.co", IsPrimary: true})
	require.NoError(t, err)

	detail, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, detail.Contacts, 3)
	assert.Equal(t, third.ID, detail.Contacts[0].ID)
	primaries := 0
	for _, contact := range detail.Contacts {
		if contact.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)

	_, err = svc.AddContact(ctx, c.ID, ContactInput{Name: "  "})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.AddContact(ctx, 999, ContactInput{Name: "Nadie"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	other, err := svc.Create(ctx, validInput("891"))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.RemoveContact(ctx, other.ID, first.ID), shared.ErrNotFound)
	require.NoError(t, svc.RemoveContact(ctx, c.ID, first.ID))

	detail, err = svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Contacts, 2)
}

func TestRecordInteractionAdvancesLastContact(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 7, Role: shared.RoleUser})

	c, err := svc.Create(ctx, validInput("890"))
	require.NoError(t, err)
	assert.Nil(t, c.LastContactAt)

	call, err := svc.RecordInteraction(ctx, c.ID, InteractionInput{Kind: "llamada", Description: "Seguimiento de cotizacion", DurationMinutes: 15})
	require.NoError(t, err)
	assert.Equal(t, InteractionCall, call.Kind)
	assert.True(t, now.Equal(call.OccurredAt))
	require.NotNil(t, call.UserID)
	assert.Equal(t, int64(7), *call.UserID)

	earlier := now.Add(-48 * time.Hour)
	_, err = svc.RecordInteraction(ctx, c.ID, InteractionInput{Kind: "visit", Description: "Visita previa", OccurredAt: &earlier})
	require.NoError(t, err)
	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastContactAt)
	assert.True(t, now.Equal(*got.LastContactAt))

	later := now.Add(2 * time.Hour)
	_, err = svc.RecordInteraction(ctx, c.ID, InteractionInput{Kind: "email", Description: "Envio de propuesta", OccurredAt: &later})
	require.NoError(t, err)
	got, err = repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(*got.LastContactAt))

	detail, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, detail.Interactions, 3)
	assert.Equal(t, InteractionEmail, detail.Interactions[0].Kind)
	assert.Equal(t, InteractionVisit, detail.Interactions[2].Kind)

	_, err = svc.RecordInteraction(ctx, c.ID, InteractionInput{Kind: "fax", Description: "x"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordInteraction(ctx, c.ID, InteractionInput{Kind: "note", Description: "   "})
	assert.ErrorIs(t, err, shared.ErrValidation)
	missing := int64(42)
	_, err = svc.RecordInteraction(ctx, c.ID, InteractionInput{Kind: "note", Description: "x", QuotationID: &missing})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.RecordInteraction(ctx, 999, InteractionInput{Kind: "note", Description: "x"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListInteractionsPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil)
	c, err := svc.Create(ctx, validInput("890"))
	require.NoError(t, err)

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	for i, kind := range []string{"call", "visit", "call"} {
		at := base.Add(time.Duration(i) * time.Hour)
		_, err := svc.RecordInteraction(ctx, c.ID, InteractionInput{Kind: kind, Description: "contacto", OccurredAt: &at})
		require.NoError(t, err)
	}

	list, page, err := svc.ListInteractions(ctx, InteractionFilter{ClientID: c.ID, Page: shared.PageRequest{Page: 1, PerPage: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, list, 2)
	assert.True(t, list[0].OccurredAt.After(list[1].OccurredAt))

	kind := InteractionCall
	list, page, err = svc.ListInteractions(ctx, InteractionFilter{ClientID: c.ID, Kind: &kind})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, list, 2)

	_, _, err = svc.ListInteractions(ctx, InteractionFilter{ClientID: 999})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteInteraction(ctx, 999, list[0].ID), shared.ErrNotFound)
	require.NoError(t, svc.DeleteInteraction(ctx, c.ID, list[0].ID))
}

func TestWriteExportCSV(t *testing.T) {
	last := time.Date(2026, 2, 1, 12, 30, 0, 0, time.UTC)
	rows := []ExportRow{
		{
			Client: Client{ID: 1, Kind: "company", Name: "Clinica, Santa Ana", TaxID: "890", Status: StatusActive,
				LastContactAt: &last, CreatedAt: last},
			PrimaryContact: &Contact{Name: "Ana Perez", Position: "Compras", Email: "ana@santaana.co"},
		},
		{Client: Client{ID: 2, Kind: "person", Name: "Luis Gomez", TaxID: "101", Status: StatusProspect, CreatedAt: last}},
	}
	var sb strings.Builder
	require.NoError(t, writeExportCSV(&sb, rows))
	assert.Contains(t, sb.String(), "\r\n")

	records, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, "Clinica, Santa Ana", records[1][2])
	assert.Equal(t, "2026-02-01T12:30:00Z", records[1][12])
	assert.Equal(t, "Ana Perez", records[1][13])
	assert.Equal(t, "", records[2][12])
	assert.Equal(t, "", records[2][13])
}

func TestClientCRMRoutes(t *testing.T) {
	repo := newMemoryRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo, logger), rbac.Middleware{Service: rbac.NewService(nil), Logger: logger})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleUser})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
		return rec
	}

	rec := send(http.MethodPost, "/clients", `{"name": "Clinica Santa Ana", "tax_id": "890", "phone": "3000000000", "email": "compras@santaana.co", "address": "Cra 10", "status": "active"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(http.MethodPost, "/clients/1/contacts", `{"name": "Ana Perez", "position": "Compras", "is_primary": true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"is_primary":true`)

	rec = send(http.MethodPost, "/clients/1/contacts", `{"name": "Sin correo", "email": "not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = send(http.MethodPost, "/clients/9/contacts", `{"name": "Nadie"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = send(http.MethodPost, "/clients/1/interactions", `{"kind": "visita", "description": "Demostracion de equipo", "duration_minutes": 45}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"kind":"visit"`)
	assert.Contains(t, rec.Body.String(), `"user_id":1`)

	rec = send(http.MethodPost, "/clients/1/interactions", `{"kind": "visit", "description": "x", "duration_minutes": -5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodGet, "/clients/1/interactions?kind=visit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	rec = send(http.MethodGet, "/clients/1/interactions?kind=fax", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodGet, "/clients/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ana Perez"`)
	assert.NotContains(t, rec.Body.String(), `"last_contact_at":null`)

	rec = send(http.MethodGet, "/clients/export?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="clients.csv"`)
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Clinica Santa Ana", records[1][2])
	assert.Equal(t, "Ana Perez", records[1][13])

	rec = send(http.MethodGet, "/clients/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"primary_contact":{`)
	rec = send(http.MethodGet, "/clients/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodDelete, "/clients/1/interactions/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = send(http.MethodDelete, "/clients/1/contacts/1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
