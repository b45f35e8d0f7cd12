package stock

import (
	"context"
	"errors"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

// ApplyCount reconciles one (product, warehouse) pair against a physical
// count. The change is computed against the locked current quantity, so two
// concurrent counts cannot both apply against the same stale balance.
func (e *Engine) ApplyCount(ctx context.Context, store TxStore, productID, warehouseID int64, counted float64, sourceID int64) (LedgerEntry, float64, error) {
	if counted < 0 {
		return LedgerEntry{}, 0, shared.NewValidationError("counted_quantity", "must be >= 0")
	}
	if productID == 0 {
		return LedgerEntry{}, 0, shared.NewValidationError("product_id", "required")
	}
	if warehouseID == 0 {
		return LedgerEntry{}, 0, shared.NewValidationError("warehouse_id", "required")
	}

	line, err := store.GetLineForUpdate(ctx, productID, warehouseID)
	if err != nil && !errors.Is(err, ErrLineNotFound) {
		return LedgerEntry{}, 0, err
	}
	change := counted - line.Quantity

	entries, err := e.Apply(ctx, store, []Movement{{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Change:      change,
		SourceType:  SourceAdjustment,
		SourceID:    sourceID,
	}})
	if err != nil {
		return LedgerEntry{}, 0, err
	}
	if len(entries) == 0 {
		// Zero-delta count with LogZeroChanges disabled: projection untouched,
		// nothing written.
		return LedgerEntry{}, change, nil
	}
	return entries[0], change, nil
}
