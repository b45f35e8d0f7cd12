package products

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockroom-erp/stockroom/internal/catalog/shared"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	core "github.com/stockroom-erp/stockroom/internal/shared"
)

// Handler wires product CRUD endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers the product endpoints. Deletes go through adminOnly
// when provided.
func (h *Handler) MountRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Get("/products/", h.List)
	r.Get("/products/{id}/", h.Show)
	r.Post("/products/", h.Create)
	r.Put("/products/{id}/", h.Update)
	if adminOnly != nil {
		r.With(adminOnly).Delete("/products/{id}/", h.Delete)
	} else {
		r.Delete("/products/{id}/", h.Delete)
	}
}

type productRequest struct {
	SKU               string  `json:"sku" validate:"required,max=100"`
	Name              string  `json:"name" validate:"required,max=150"`
	Unit              string  `json:"unit" validate:"required,max=50"`
	CategoryID        int64   `json:"category_id" validate:"gte=0"`
	LowStockThreshold float64 `json:"low_stock_threshold" validate:"gte=0"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

type listResponse struct {
	Items      []Product       `json:"items"`
	Pagination core.Pagination `json:"pagination"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.ListFilters{
		Page:    shared.DefaultPage,
		Limit:   shared.DefaultLimit,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort_by"),
		SortDir: r.URL.Query().Get("sort_dir"),
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filters.Page = page
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 1000 {
			filters.Limit = limit
		}
	}
	if v := r.URL.Query().Get("category"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.CategoryID = &id
		}
	}

	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Product{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: core.NewPagination(filters.Page, filters.Limit, total)})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.Create(r.Context(), Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Unit:              req.Unit,
		CategoryID:        req.CategoryID,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	err = h.service.Update(r.Context(), id, Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Unit:              req.Unit,
		CategoryID:        req.CategoryID,
		LowStockThreshold: req.LowStockThreshold,
		IsActive:          active,
	})
	if err != nil {
		h.logger.Error("update product", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete product", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
