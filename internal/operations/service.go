package operations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/stockroom-erp/stockroom/internal/shared"
	"github.com/stockroom-erp/stockroom/internal/stock"
)

// RefChecker answers whether referenced catalog rows exist.
type RefChecker interface {
	ProductExists(ctx context.Context, id int64) error
	WarehouseExists(ctx context.Context, id int64) error
}

type auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator is notified after a successful ledger commit so cached
// aggregates can drop stale payloads.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service drives the document lifecycle and hands committed movements to the
// stock engine.
type Service struct {
	logger     *slog.Logger
	store      Store
	engine     *stock.Engine
	refs       RefChecker
	audit      auditor
	invalidate Invalidator
}

func NewService(logger *slog.Logger, store Store, engine *stock.Engine, refs RefChecker, audit auditor) *Service {
	return &Service{logger: logger, store: store, engine: engine, refs: refs, audit: audit}
}

// WithInvalidator registers the cache invalidation hook.
func (s *Service) WithInvalidator(inv Invalidator) *Service {
	s.invalidate = inv
	return s
}

func (s *Service) bumpCaches(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	if err := s.invalidate.Bump(ctx); err != nil {
		s.logger.Warn("cache bump failed", slog.Any("error", err))
	}
}

// Receipts.

func (s *Service) CreateReceipt(ctx context.Context, r Receipt) (Receipt, error) {
	if err := s.refs.WarehouseExists(ctx, r.WarehouseID); err != nil {
		return Receipt{}, err
	}
	r.CreatedBy = shared.ActorID(ctx)
	created, err := s.store.CreateReceipt(ctx, r)
	if err != nil {
		return Receipt{}, err
	}
	s.record(ctx, "receipt.create", KindReceipt, created.ID, nil)
	return created, nil
}

func (s *Service) AddReceiptItem(ctx context.Context, receiptID int64, item Item) (Item, error) {
	if err := s.checkItem(ctx, item); err != nil {
		return Item{}, err
	}
	return s.store.AddReceiptItem(ctx, receiptID, item)
}

func (s *Service) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return s.store.GetReceipt(ctx, id)
}

func (s *Service) ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, int, error) {
	return s.store.ListReceipts(ctx, filter)
}

// ValidateReceipt commits all receipt lines as inbound movements and flips
// the document to done, exactly once.
func (s *Service) ValidateReceipt(ctx context.Context, id int64) (Receipt, error) {
	var out Receipt
	err := s.store.Commit(ctx, func(tx CommitTx) error {
		r, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireDraft(KindReceipt, r.Status); err != nil {
			return err
		}
		if len(r.Items) == 0 {
			return &shared.InvalidOperationError{Reason: "receipt has no items"}
		}
		if err := tx.ClaimKey(ctx, validateKey(KindReceipt, id)); err != nil {
			return err
		}
		movements := make([]stock.Movement, 0, len(r.Items))
		for _, item := range r.Items {
			movements = append(movements, stock.Movement{
				ProductID:   item.ProductID,
				WarehouseID: r.WarehouseID,
				Change:      item.Quantity,
				SourceType:  stock.SourceReceipt,
				SourceID:    r.ID,
			})
		}
		if _, err := s.engine.Apply(ctx, tx.Stock(), movements); err != nil {
			return err
		}
		now := time.Now()
		if err := tx.SetStatus(ctx, KindReceipt, id, StatusDone, &now); err != nil {
			return err
		}
		r.Status = StatusDone
		r.ValidatedAt = &now
		out = r
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	s.bumpCaches(ctx)
	s.record(ctx, "receipt.validate", KindReceipt, id, map[string]any{"items": len(out.Items)})
	return out, nil
}

func (s *Service) CancelReceipt(ctx context.Context, id int64) (Receipt, error) {
	var out Receipt
	err := s.store.Commit(ctx, func(tx CommitTx) error {
		r, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireDraft(KindReceipt, r.Status); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, KindReceipt, id, StatusCancelled, nil); err != nil {
			return err
		}
		r.Status = StatusCancelled
		out = r
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	s.record(ctx, "receipt.cancel", KindReceipt, id, nil)
	return out, nil
}

// Deliveries.

func (s *Service) CreateDelivery(ctx context.Context, d Delivery) (Delivery, error) {
	if err := s.refs.WarehouseExists(ctx, d.WarehouseID); err != nil {
		return Delivery{}, err
	}
	d.CreatedBy = shared.ActorID(ctx)
	created, err := s.store.CreateDelivery(ctx, d)
	if err != nil {
		return Delivery{}, err
	}
	s.record(ctx, "delivery.create", KindDelivery, created.ID, nil)
	return created, nil
}

func (s *Service) AddDeliveryItem(ctx context.Context, deliveryID int64, item Item) (Item, error) {
	if err := s.checkItem(ctx, item); err != nil {
		return Item{}, err
	}
	return s.store.AddDeliveryItem(ctx, deliveryID, item)
}

func (s *Service) GetDelivery(ctx context.Context, id int64) (Delivery, error) {
	return s.store.GetDelivery(ctx, id)
}

func (s *Service) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	return s.store.ListDeliveries(ctx, filter)
}

// ValidateDelivery commits outbound movements. The engine rejects the whole
// delivery when any line would push a stock line negative.
func (s *Service) ValidateDelivery(ctx context.Context, id int64) (Delivery, error) {
	var out Delivery
	err := s.store.Commit(ctx, func(tx CommitTx) error {
		d, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireDraft(KindDelivery, d.Status); err != nil {
			return err
		}
		if len(d.Items) == 0 {
			return &shared.InvalidOperationError{Reason: "delivery has no items"}
		}
		if err := tx.ClaimKey(ctx, validateKey(KindDelivery, id)); err != nil {
			return err
		}
		movements := make([]stock.Movement, 0, len(d.Items))
		for _, item := range d.Items {
			movements = append(movements, stock.Movement{
				ProductID:   item.ProductID,
				WarehouseID: d.WarehouseID,
				Change:      -item.Quantity,
				SourceType:  stock.SourceDelivery,
				SourceID:    d.ID,
			})
		}
		if _, err := s.engine.Apply(ctx, tx.Stock(), movements); err != nil {
			return err
		}
		now := time.Now()
		if err := tx.SetStatus(ctx, KindDelivery, id, StatusDone, &now); err != nil {
			return err
		}
		d.Status = StatusDone
		d.ValidatedAt = &now
		out = d
		return nil
	})
	if err != nil {
		return Delivery{}, err
	}
	s.bumpCaches(ctx)
	s.record(ctx, "delivery.validate", KindDelivery, id, map[string]any{"items": len(out.Items)})
	return out, nil
}

func (s *Service) CancelDelivery(ctx context.Context, id int64) (Delivery, error) {
	var out Delivery
	err := s.store.Commit(ctx, func(tx CommitTx) error {
		d, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireDraft(KindDelivery, d.Status); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, KindDelivery, id, StatusCancelled, nil); err != nil {
			return err
		}
		d.Status = StatusCancelled
		out = d
		return nil
	})
	if err != nil {
		return Delivery{}, err
	}
	s.record(ctx, "delivery.cancel", KindDelivery, id, nil)
	return out, nil
}

// Transfers.

func (s *Service) CreateTransfer(ctx context.Context, t Transfer) (Transfer, error) {
	if t.FromWarehouseID == t.ToWarehouseID {
		return Transfer{}, &shared.InvalidOperationError{Reason: "transfer source and destination warehouses must differ"}
	}
	if err := s.refs.WarehouseExists(ctx, t.FromWarehouseID); err != nil {
		return Transfer{}, err
	}
	if err := s.refs.WarehouseExists(ctx, t.ToWarehouseID); err != nil {
		return Transfer{}, err
	}
	t.CreatedBy = shared.ActorID(ctx)
	created, err := s.store.CreateTransfer(ctx, t)
	if err != nil {
		return Transfer{}, err
	}
	s.record(ctx, "transfer.create", KindTransfer, created.ID, nil)
	return created, nil
}

func (s *Service) AddTransferItem(ctx context.Context, transferID int64, item Item) (Item, error) {
	if err := s.checkItem(ctx, item); err != nil {
		return Item{}, err
	}
	return s.store.AddTransferItem(ctx, transferID, item)
}

func (s *Service) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	return s.store.GetTransfer(ctx, id)
}

func (s *Service) ListTransfers(ctx context.Context, filter ListFilter) ([]Transfer, int, error) {
	return s.store.ListTransfers(ctx, filter)
}

// ValidateTransfer commits a paired out/in movement per line. Both halves
// land or neither does.
func (s *Service) ValidateTransfer(ctx context.Context, id int64) (Transfer, error) {
	var out Transfer
	err := s.store.Commit(ctx, func(tx CommitTx) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireDraft(KindTransfer, t.Status); err != nil {
			return err
		}
		if len(t.Items) == 0 {
			return &shared.InvalidOperationError{Reason: "transfer has no items"}
		}
		if t.FromWarehouseID == t.ToWarehouseID {
			return &shared.InvalidOperationError{Reason: "transfer source and destination warehouses must differ"}
		}
		if err := tx.ClaimKey(ctx, validateKey(KindTransfer, id)); err != nil {
			return err
		}
		movements := make([]stock.Movement, 0, 2*len(t.Items))
		for _, item := range t.Items {
			movements = append(movements,
				stock.Movement{
					ProductID:   item.ProductID,
					WarehouseID: t.FromWarehouseID,
					Change:      -item.Quantity,
					SourceType:  stock.SourceTransferOut,
					SourceID:    t.ID,
				},
				stock.Movement{
					ProductID:   item.ProductID,
					WarehouseID: t.ToWarehouseID,
					Change:      item.Quantity,
					SourceType:  stock.SourceTransferIn,
					SourceID:    t.ID,
				})
		}
		if _, err := s.engine.Apply(ctx, tx.Stock(), movements); err != nil {
			return err
		}
		now := time.Now()
		if err := tx.SetStatus(ctx, KindTransfer, id, StatusDone, &now); err != nil {
			return err
		}
		t.Status = StatusDone
		t.ValidatedAt = &now
		out = t
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	s.bumpCaches(ctx)
	s.record(ctx, "transfer.validate", KindTransfer, id, map[string]any{"items": len(out.Items)})
	return out, nil
}

func (s *Service) CancelTransfer(ctx context.Context, id int64) (Transfer, error) {
	var out Transfer
	err := s.store.Commit(ctx, func(tx CommitTx) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireDraft(KindTransfer, t.Status); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, KindTransfer, id, StatusCancelled, nil); err != nil {
			return err
		}
		t.Status = StatusCancelled
		out = t
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	s.record(ctx, "transfer.cancel", KindTransfer, id, nil)
	return out, nil
}

// Adjustments.

// CreateAdjustment records a physical count and commits the resulting change
// in the same transaction. The delta is computed against the locked current
// quantity, not whatever the caller last saw.
func (s *Service) CreateAdjustment(ctx context.Context, a Adjustment) (Adjustment, error) {
	if a.CountedQuantity < 0 {
		return Adjustment{}, shared.NewValidationError("counted_quantity", "must be >= 0")
	}
	if err := s.refs.ProductExists(ctx, a.ProductID); err != nil {
		return Adjustment{}, err
	}
	if err := s.refs.WarehouseExists(ctx, a.WarehouseID); err != nil {
		return Adjustment{}, err
	}
	a.CreatedBy = shared.ActorID(ctx)

	var out Adjustment
	err := s.store.Commit(ctx, func(tx CommitTx) error {
		created, err := tx.InsertAdjustment(ctx, a)
		if err != nil {
			return err
		}
		_, change, err := s.engine.ApplyCount(ctx, tx.Stock(), created.ProductID, created.WarehouseID, created.CountedQuantity, created.ID)
		if err != nil {
			return err
		}
		if err := tx.SetAdjustmentChange(ctx, created.ID, change); err != nil {
			return err
		}
		created.Change = change
		out = created
		return nil
	})
	if err != nil {
		return Adjustment{}, err
	}
	s.bumpCaches(ctx)
	s.record(ctx, "adjustment.create", KindAdjustment, out.ID, map[string]any{"change": out.Change})
	return out, nil
}

func (s *Service) GetAdjustment(ctx context.Context, id int64) (Adjustment, error) {
	return s.store.GetAdjustment(ctx, id)
}

func (s *Service) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, int, error) {
	return s.store.ListAdjustments(ctx, filter)
}

func (s *Service) checkItem(ctx context.Context, item Item) error {
	if item.Quantity <= 0 {
		return shared.NewValidationError("quantity", "must be > 0")
	}
	return s.refs.ProductExists(ctx, item.ProductID)
}

func (s *Service) record(ctx context.Context, action string, kind Kind, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   string(kind),
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func requireDraft(kind Kind, status Status) error {
	switch status {
	case StatusDraft:
		return nil
	case StatusDone:
		return &shared.InvalidOperationError{Reason: string(kind) + " is already validated"}
	case StatusCancelled:
		return &shared.InvalidOperationError{Reason: string(kind) + " is cancelled"}
	default:
		return &shared.InvalidOperationError{Reason: fmt.Sprintf("%s has unknown status %q", kind, status)}
	}
}

func validateKey(kind Kind, id int64) string {
	return "validate:" + string(kind) + ":" + strconv.FormatInt(id, 10)
}
