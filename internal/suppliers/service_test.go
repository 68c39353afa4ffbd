package suppliers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/rbac"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateAppliesDefaultsAndLegacyNames(t *testing.T) {
	svc := NewService(newMemoryRepo(), discardLogger())
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 4})

	sup, err := svc.Create(ctx, Input{Name: " Tecnicos del Valle ", TaxID: "900123456-1", Kind: "tecnico_externo", AccountType: "ahorros"})
	require.NoError(t, err)
	assert.Equal(t, "Tecnicos del Valle", sup.Name)
	assert.Equal(t, KindExternalTechnician, sup.Kind)
	assert.Equal(t, StatusActive, sup.Status)
	require.NotNil(t, sup.AccountType)
	assert.Equal(t, AccountSavings, *sup.AccountType)
	require.NotNil(t, sup.UserID)
	assert.Equal(t, int64(4), *sup.UserID)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), discardLogger())

	_, err := svc.Create(context.Background(), Input{Name: "A", TaxID: "1", Kind: "robot"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(context.Background(), Input{Name: "A", TaxID: "1", AccountType: "gold"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(context.Background(), Input{Name: "  ", TaxID: "1"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDuplicateTaxIDConflicts(t *testing.T) {
	svc := NewService(newMemoryRepo(), discardLogger())
	_, err := svc.Create(context.Background(), Input{Name: "A", TaxID: "800"})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), Input{Name: "B", TaxID: "801"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Input{Name: "C", TaxID: "800"})
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Update(context.Background(), second.ID, Input{Name: "B", TaxID: "800"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeleteBlockedByPayables(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, discardLogger())
	sup, err := svc.Create(context.Background(), Input{Name: "A", TaxID: "800"})
	require.NoError(t, err)
	repo.balances[sup.ID] = Balance{OpenPayables: 1, Pending: decimal.NewFromInt(90), Overdue: decimal.Zero}

	detail, err := svc.Get(context.Background(), sup.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Balance.OpenPayables)

	assert.ErrorIs(t, svc.Delete(context.Background(), sup.ID), shared.ErrConflict)

	delete(repo.balances, sup.ID)
	require.NoError(t, svc.Delete(context.Background(), sup.ID))
	_, err = svc.Get(context.Background(), sup.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func newTestRouter(t *testing.T, repo *memoryRepo, role string) http.Handler {
	t.Helper()
	logger := discardLogger()
	h := NewHandler(logger, NewService(repo, logger), rbac.Middleware{Service: rbac.NewService(nil), Logger: logger})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestSupplierRoutes(t *testing.T) {
	h := newTestRouter(t, newMemoryRepo(), shared.RoleUser)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
		return rec
	}

	rec := send(http.MethodPost, "/suppliers", `{"name": "Cableados SAS", "tax_id": "901", "email": "ventas@cableados.co", "category": "redes"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(http.MethodPost, "/suppliers", `{"name": "Otro", "tax_id": "901"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(http.MethodPost, "/suppliers", `{"name": "Sin nit", "email": "not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Errors, "tax_id")
	assert.Contains(t, problem.Errors, "email")

	rec = send(http.MethodGet, "/suppliers?search=cable&status=activo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = send(http.MethodGet, "/suppliers?kind=robot", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodGet, "/suppliers/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":{"open_payables":0`)

	rec = send(http.MethodPut, "/suppliers/1", `{"name": "Cableados S.A.S.", "tax_id": "901", "status": "inactive"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"inactive"`)

	rec = send(http.MethodDelete, "/suppliers/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = send(http.MethodDelete, "/suppliers/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
