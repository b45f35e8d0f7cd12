package operations

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

// Handler exposes the document endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.ListReceipts)
		r.Post("/", h.CreateReceipt)
		r.Get("/{id}/", h.ShowReceipt)
		r.Post("/{id}/items/", h.AddReceiptItem)
		r.Post("/{id}/validate/", h.ValidateReceipt)
		r.Post("/{id}/cancel/", h.CancelReceipt)
	})
	r.Route("/deliveries", func(r chi.Router) {
		r.Get("/", h.ListDeliveries)
		r.Post("/", h.CreateDelivery)
		r.Get("/{id}/", h.ShowDelivery)
		r.Post("/{id}/items/", h.AddDeliveryItem)
		r.Post("/{id}/validate/", h.ValidateDelivery)
		r.Post("/{id}/cancel/", h.CancelDelivery)
	})
	r.Route("/transfers", func(r chi.Router) {
		r.Get("/", h.ListTransfers)
		r.Post("/", h.CreateTransfer)
		r.Get("/{id}/", h.ShowTransfer)
		r.Post("/{id}/items/", h.AddTransferItem)
		r.Post("/{id}/validate/", h.ValidateTransfer)
		r.Post("/{id}/cancel/", h.CancelTransfer)
	})
	r.Route("/adjustments", func(r chi.Router) {
		r.Get("/", h.ListAdjustments)
		r.Post("/", h.CreateAdjustment)
		r.Get("/{id}/", h.ShowAdjustment)
	})
}

type receiptRequest struct {
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Supplier    string `json:"supplier" validate:"max=255"`
	Reference   string `json:"reference" validate:"max=100"`
}

type deliveryRequest struct {
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Customer    string `json:"customer" validate:"max=255"`
	Reference   string `json:"reference" validate:"max=100"`
}

type transferRequest struct {
	FromWarehouseID int64  `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID   int64  `json:"to_warehouse_id" validate:"required,gt=0"`
	Reference       string `json:"reference" validate:"max=100"`
}

type itemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

type adjustmentRequest struct {
	ProductID       int64   `json:"product_id" validate:"required,gt=0"`
	WarehouseID     int64   `json:"warehouse_id" validate:"required,gt=0"`
	CountedQuantity float64 `json:"counted_quantity" validate:"gte=0"`
	Reason          string  `json:"reason" validate:"max=255"`
}

type listResponse[T any] struct {
	Items      []T               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	receipt, err := h.service.CreateReceipt(r.Context(), Receipt{
		WarehouseID: req.WarehouseID,
		Supplier:    req.Supplier,
		Reference:   req.Reference,
	})
	if err != nil {
		h.fail(w, r, "create receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) ShowReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	items, total, err := h.service.ListReceipts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list receipts", err)
		return
	}
	if items == nil {
		items = []Receipt{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[Receipt]{Items: items, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)})
}

func (h *Handler) AddReceiptItem(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.AddReceiptItem(r.Context(), id, Item{ProductID: req.ProductID, Quantity: req.Quantity})
	if err != nil {
		h.fail(w, r, "add receipt item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) ValidateReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.ValidateReceipt(r.Context(), id)
	if err != nil {
		h.fail(w, r, "validate receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) CancelReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.CancelReceipt(r.Context(), id)
	if err != nil {
		h.fail(w, r, "cancel receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if !h.decode(w, r, &req) {
		return
	}
	delivery, err := h.service.CreateDelivery(r.Context(), Delivery{
		WarehouseID: req.WarehouseID,
		Customer:    req.Customer,
		Reference:   req.Reference,
	})
	if err != nil {
		h.fail(w, r, "create delivery", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, delivery)
}

func (h *Handler) ShowDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	delivery, err := h.service.GetDelivery(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, delivery)
}

func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	items, total, err := h.service.ListDeliveries(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list deliveries", err)
		return
	}
	if items == nil {
		items = []Delivery{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[Delivery]{Items: items, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)})
}

func (h *Handler) AddDeliveryItem(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.AddDeliveryItem(r.Context(), id, Item{ProductID: req.ProductID, Quantity: req.Quantity})
	if err != nil {
		h.fail(w, r, "add delivery item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) ValidateDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	delivery, err := h.service.ValidateDelivery(r.Context(), id)
	if err != nil {
		h.fail(w, r, "validate delivery", err)
		return
	}
	httpx.JSON(w, http.StatusOK, delivery)
}

func (h *Handler) CancelDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	delivery, err := h.service.CancelDelivery(r.Context(), id)
	if err != nil {
		h.fail(w, r, "cancel delivery", err)
		return
	}
	httpx.JSON(w, http.StatusOK, delivery)
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	transfer, err := h.service.CreateTransfer(r.Context(), Transfer{
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Reference:       req.Reference,
	})
	if err != nil {
		h.fail(w, r, "create transfer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transfer)
}

func (h *Handler) ShowTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	transfer, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transfer)
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	items, total, err := h.service.ListTransfers(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list transfers", err)
		return
	}
	if items == nil {
		items = []Transfer{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[Transfer]{Items: items, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)})
}

func (h *Handler) AddTransferItem(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.AddTransferItem(r.Context(), id, Item{ProductID: req.ProductID, Quantity: req.Quantity})
	if err != nil {
		h.fail(w, r, "add transfer item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) ValidateTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	transfer, err := h.service.ValidateTransfer(r.Context(), id)
	if err != nil {
		h.fail(w, r, "validate transfer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, transfer)
}

func (h *Handler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	transfer, err := h.service.CancelTransfer(r.Context(), id)
	if err != nil {
		h.fail(w, r, "cancel transfer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, transfer)
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	adjustment, err := h.service.CreateAdjustment(r.Context(), Adjustment{
		ProductID:       req.ProductID,
		WarehouseID:     req.WarehouseID,
		CountedQuantity: req.CountedQuantity,
		Reason:          req.Reason,
	})
	if err != nil {
		h.fail(w, r, "create adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adjustment)
}

func (h *Handler) ShowAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	adjustment, err := h.service.GetAdjustment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, adjustment)
}

func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	items, total, err := h.service.ListAdjustments(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list adjustments", err)
		return
	}
	if items == nil {
		items = []Adjustment{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[Adjustment]{Items: items, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := httpx.DecodeJSON(r, req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.logger.Error(action, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func docID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return 0, false
	}
	return id, true
}

func listFilter(r *http.Request) ListFilter {
	filter := ListFilter{Page: 1, Limit: 50}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = Status(v)
	}
	if v := r.URL.Query().Get("warehouse"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			filter.WarehouseID = id
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		}
	}
	return filter
}
