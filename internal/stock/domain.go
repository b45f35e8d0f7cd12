package stock

import (
	"errors"
	"time"
)

// SourceType enumerates the operation kinds that produce ledger entries.
type SourceType string

const (
	// SourceReceipt represents an inbound movement from a supplier receipt.
	SourceReceipt SourceType = "RECEIPT"
	// SourceDelivery represents an outbound movement to a customer.
	SourceDelivery SourceType = "DELIVERY"
	// SourceTransferOut is the outbound half of a warehouse transfer.
	SourceTransferOut SourceType = "TRANSFER_OUT"
	// SourceTransferIn is the inbound half of a warehouse transfer.
	SourceTransferIn SourceType = "TRANSFER_IN"
	// SourceAdjustment represents a reconciliation against a physical count.
	SourceAdjustment SourceType = "ADJUSTMENT"
)

// LedgerEntry is an immutable signed quantity change tied to one committed
// operation line. Balance is the resulting quantity, computed at write time.
type LedgerEntry struct {
	ID          int64      `json:"id"`
	ProductID   int64      `json:"product_id"`
	WarehouseID int64      `json:"warehouse_id"`
	Change      float64    `json:"change"`
	Balance     float64    `json:"balance"`
	SourceType  SourceType `json:"source_type"`
	SourceID    int64      `json:"source_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Movement describes one quantity delta an operation wants to apply.
type Movement struct {
	ProductID   int64
	WarehouseID int64
	Change      float64
	SourceType  SourceType
	SourceID    int64
}

// Line is the projection row for one (product, warehouse) pair.
type Line struct {
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	Quantity    float64   `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LineView joins the projection row with catalog data for list responses.
type LineView struct {
	Line
	ProductName   string  `json:"product_name"`
	SKU           string  `json:"sku"`
	WarehouseName string  `json:"warehouse_name"`
	Threshold     float64 `json:"low_stock_threshold"`
	IsLowStock    bool    `json:"is_low_stock"`
}

// EntryView joins a ledger entry with catalog names for list responses.
type EntryView struct {
	LedgerEntry
	ProductName   string `json:"product_name"`
	WarehouseName string `json:"warehouse_name"`
}

// LedgerFilter narrows ledger queries.
type LedgerFilter struct {
	ProductID   int64
	WarehouseID int64
	SourceType  SourceType
	From        time.Time
	To          time.Time
	OldestFirst bool
	Limit       int
}

// LineFilter narrows projection listings.
type LineFilter struct {
	WarehouseID int64
	ProductID   int64
	LowOnly     bool
}

// ErrLineNotFound indicates a missing projection row.
var ErrLineNotFound = errors.New("stock line not found")
