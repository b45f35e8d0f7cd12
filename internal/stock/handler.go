package stock

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

// Handler wires the stock and ledger read endpoints.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers stock and ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/", h.listStock)
	r.Get("/ledger/", h.listLedger)
	r.Get("/ledger/export/", h.exportLedger)
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	filter := LineFilter{}
	q := r.URL.Query()
	if v := q.Get("warehouse"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse must be an id")
			return
		}
		filter.WarehouseID = id
	}
	if v := q.Get("product"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product must be an id")
			return
		}
		filter.ProductID = id
	}
	filter.LowOnly = q.Get("low") == "true"

	lines, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) listLedger(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseLedgerFilter(w, r)
	if !ok {
		return
	}
	entries, err := h.repo.QueryLedger(r.Context(), filter)
	if err != nil {
		h.logger.Error("query ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) exportLedger(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseLedgerFilter(w, r)
	if !ok {
		return
	}
	filter.OldestFirst = true
	entries, err := h.repo.QueryLedger(r.Context(), filter)
	if err != nil {
		h.logger.Error("export ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="move-history.csv"`)
	if err := WriteLedgerCSV(w, entries); err != nil {
		h.logger.Error("write ledger csv", slog.Any("error", err))
	}
}

func (h *Handler) parseLedgerFilter(w http.ResponseWriter, r *http.Request) (LedgerFilter, bool) {
	filter := LedgerFilter{}
	q := r.URL.Query()
	if v := q.Get("product"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product must be an id")
			return filter, false
		}
		filter.ProductID = id
	}
	if v := q.Get("warehouse"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse must be an id")
			return filter, false
		}
		filter.WarehouseID = id
	}
	if v := q.Get("type"); v != "" {
		filter.SourceType = SourceType(v)
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return filter, false
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return filter, false
		}
		// End of day.
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a positive integer")
			return filter, false
		}
		filter.Limit = n
	}
	filter.OldestFirst = q.Get("order") == "asc"
	return filter, true
}
