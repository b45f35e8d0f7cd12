// Package dashboard aggregates catalog, stock and operation data into the
// summary payloads the frontend polls.
package dashboard

// Stats is the headline counters payload.
type Stats struct {
	TotalProducts     int `json:"total_products"`
	LowStockItems     int `json:"low_stock_items"`
	PendingReceipts   int `json:"pending_receipts"`
	PendingDeliveries int `json:"pending_deliveries"`
	PendingTransfers  int `json:"pending_transfers"`
}

// MonthBucket is one month of validated operation counts.
type MonthBucket struct {
	Month      string `json:"month"`
	Receipts   int    `json:"receipts"`
	Deliveries int    `json:"deliveries"`
}

// CategoryShare is the on-hand quantity attributed to one category.
type CategoryShare struct {
	Category string  `json:"category"`
	Quantity float64 `json:"quantity"`
}
