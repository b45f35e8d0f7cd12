// Package operations holds the document workflow around the stock ledger:
// receipts, deliveries, transfers and adjustments. Documents start as drafts,
// collect lines, and commit their movements exactly once on validate.
package operations

import (
	"time"
)

// Kind names a document type.
type Kind string

const (
	KindReceipt    Kind = "receipt"
	KindDelivery   Kind = "delivery"
	KindTransfer   Kind = "transfer"
	KindAdjustment Kind = "adjustment"
)

// Status is the document lifecycle state. done is terminal.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// Item is one product line on a draft document.
type Item struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

// Receipt is an inbound document from a supplier.
type Receipt struct {
	ID          int64      `json:"id"`
	WarehouseID int64      `json:"warehouse_id"`
	Supplier    string     `json:"supplier"`
	Reference   string     `json:"reference"`
	Status      Status     `json:"status"`
	Items       []Item     `json:"items"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}

// Delivery is an outbound document to a customer.
type Delivery struct {
	ID          int64      `json:"id"`
	WarehouseID int64      `json:"warehouse_id"`
	Customer    string     `json:"customer"`
	Reference   string     `json:"reference"`
	Status      Status     `json:"status"`
	Items       []Item     `json:"items"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}

// Transfer moves stock between two warehouses as one atomic unit.
type Transfer struct {
	ID              int64      `json:"id"`
	FromWarehouseID int64      `json:"from_warehouse_id"`
	ToWarehouseID   int64      `json:"to_warehouse_id"`
	Reference       string     `json:"reference"`
	Status          Status     `json:"status"`
	Items           []Item     `json:"items"`
	CreatedBy       int64      `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	ValidatedAt     *time.Time `json:"validated_at,omitempty"`
}

// Adjustment reconciles one stock line against a physical count. It has no
// draft stage: creation commits the computed change in the same transaction.
type Adjustment struct {
	ID              int64     `json:"id"`
	ProductID       int64     `json:"product_id"`
	WarehouseID     int64     `json:"warehouse_id"`
	CountedQuantity float64   `json:"counted_quantity"`
	Change          float64   `json:"change"`
	Reason          string    `json:"reason"`
	Status          Status    `json:"status"`
	CreatedBy       int64     `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListFilter narrows document listings.
type ListFilter struct {
	Status      Status
	WarehouseID int64
	Page        int
	Limit       int
}
