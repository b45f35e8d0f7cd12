package products

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	core "github.com/stockroom-erp/stockroom/internal/shared"
)

func newTestHandler(t *testing.T, repo Repository) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo), validator.New())
	r := chi.NewRouter()
	h.MountRoutes(r, nil)
	return r
}

func TestListResponseCarriesPagination(t *testing.T) {
	repo := newFakeRepo()
	for _, sku := range []string{"A-1", "A-2", "A-3"} {
		_, err := repo.Create(context.Background(), Product{SKU: sku, Name: "p " + sku, Unit: "pcs"})
		require.NoError(t, err)
	}
	router := newTestHandler(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/products/?page=2&limit=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items      []Product       `json:"items"`
		Pagination core.Pagination `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, 2, body.Pagination.Page)
	require.Equal(t, 2, body.Pagination.PerPage)
	require.Equal(t, 3, body.Pagination.Total)
	require.Equal(t, 2, body.Pagination.TotalPages)
}

func TestListResponseEmpty(t *testing.T) {
	router := newTestHandler(t, newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/products/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items      []Product       `json:"items"`
		Pagination core.Pagination `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Items)
	require.Zero(t, body.Pagination.Total)
	require.Equal(t, 1, body.Pagination.Page)
}
