package stock

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

// TxStore exposes the writes the engine needs inside one transaction.
type TxStore interface {
	GetLineForUpdate(ctx context.Context, productID, warehouseID int64) (Line, error)
	UpsertLine(ctx context.Context, line Line) error
	InsertEntry(ctx context.Context, entry LedgerEntry) (int64, error)
}

// EngineConfig groups commit policy settings.
type EngineConfig struct {
	// AllowNegativeStock disables the oversell guard on outbound movements.
	AllowNegativeStock bool
	// LogZeroChanges keeps zero-delta adjustment entries as confirmed-count events.
	LogZeroChanges bool
}

// Engine applies validated movement sets to the ledger and projection.
// One Apply call is all-or-nothing: the caller supplies the transaction
// boundary and the engine never leaves a prefix behind on failure.
type Engine struct {
	cfg EngineConfig
}

// NewEngine builds an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{cfg: cfg}
}

type pairKey struct {
	productID   int64
	warehouseID int64
}

// Apply writes one ledger entry per movement and keeps the projection in step.
// Rows are locked in deterministic (product, warehouse) order so concurrent
// commits touching the same pairs serialize instead of deadlocking.
func (e *Engine) Apply(ctx context.Context, store TxStore, movements []Movement) ([]LedgerEntry, error) {
	if len(movements) == 0 {
		return nil, &shared.InvalidOperationError{Reason: "no movements to apply"}
	}
	for _, m := range movements {
		if m.ProductID == 0 {
			return nil, shared.NewValidationError("product_id", "required")
		}
		if m.WarehouseID == 0 {
			return nil, shared.NewValidationError("warehouse_id", "required")
		}
		if m.Change == 0 && m.SourceType != SourceAdjustment {
			return nil, shared.NewValidationError("quantity", "must be non zero")
		}
		if m.SourceType == "" {
			return nil, shared.NewValidationError("source_type", "required")
		}
	}

	pairs := make([]pairKey, 0, len(movements))
	seen := make(map[pairKey]struct{}, len(movements))
	for _, m := range movements {
		key := pairKey{m.ProductID, m.WarehouseID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pairs = append(pairs, key)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].productID != pairs[j].productID {
			return pairs[i].productID < pairs[j].productID
		}
		return pairs[i].warehouseID < pairs[j].warehouseID
	})

	balances := make(map[pairKey]float64, len(pairs))
	for _, key := range pairs {
		line, err := store.GetLineForUpdate(ctx, key.productID, key.warehouseID)
		if err != nil && !errors.Is(err, ErrLineNotFound) {
			return nil, err
		}
		balances[key] = line.Quantity
	}

	// First pass: walk the balances and reject before anything is written,
	// so a failed Apply never leaves a prefix of entries behind.
	now := time.Now().UTC()
	staged := make([]LedgerEntry, 0, len(movements))
	for _, m := range movements {
		key := pairKey{m.ProductID, m.WarehouseID}
		balance := balances[key]
		next := balance + m.Change
		if math.Abs(next) < 1e-9 {
			next = 0
		}
		if m.Change < 0 && next < 0 && !e.cfg.AllowNegativeStock {
			return nil, &shared.InsufficientStockError{
				ProductID:   m.ProductID,
				WarehouseID: m.WarehouseID,
				Requested:   -m.Change,
				Available:   balance,
			}
		}
		balances[key] = next

		if m.Change == 0 && !e.cfg.LogZeroChanges {
			continue
		}
		staged = append(staged, LedgerEntry{
			ProductID:   m.ProductID,
			WarehouseID: m.WarehouseID,
			Change:      m.Change,
			Balance:     next,
			SourceType:  m.SourceType,
			SourceID:    m.SourceID,
			CreatedAt:   now,
		})
	}

	entries := make([]LedgerEntry, 0, len(staged))
	for _, entry := range staged {
		id, err := store.InsertEntry(ctx, entry)
		if err != nil {
			return nil, err
		}
		entry.ID = id
		entries = append(entries, entry)
	}

	for _, key := range pairs {
		line := Line{
			ProductID:   key.productID,
			WarehouseID: key.warehouseID,
			Quantity:    balances[key],
			UpdatedAt:   now,
		}
		if err := store.UpsertLine(ctx, line); err != nil {
			return nil, err
		}
	}

	return entries, nil
}
