package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

// Handler exposes the dashboard read endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard/stats/", h.Stats)
	r.Get("/dashboard/operations-overview/", h.OperationsOverview)
	r.Get("/dashboard/inventory-composition/", h.InventoryComposition)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("dashboard stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) OperationsOverview(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.OperationsOverview(r.Context())
	if err != nil {
		h.logger.Error("dashboard operations overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func (h *Handler) InventoryComposition(w http.ResponseWriter, r *http.Request) {
	shares, err := h.service.InventoryComposition(r.Context())
	if err != nil {
		h.logger.Error("dashboard inventory composition", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shares)
}
