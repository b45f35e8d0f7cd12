package operations

import (
	"context"
	"time"

	"github.com/stockroom-erp/stockroom/internal/stock"
)

// Store is the persistence surface for operation documents. Commit opens the
// transactional scope a validate or cancel runs inside.
type Store interface {
	CreateReceipt(ctx context.Context, r Receipt) (Receipt, error)
	AddReceiptItem(ctx context.Context, receiptID int64, item Item) (Item, error)
	GetReceipt(ctx context.Context, id int64) (Receipt, error)
	ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, int, error)

	CreateDelivery(ctx context.Context, d Delivery) (Delivery, error)
	AddDeliveryItem(ctx context.Context, deliveryID int64, item Item) (Item, error)
	GetDelivery(ctx context.Context, id int64) (Delivery, error)
	ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int, error)

	CreateTransfer(ctx context.Context, t Transfer) (Transfer, error)
	AddTransferItem(ctx context.Context, transferID int64, item Item) (Item, error)
	GetTransfer(ctx context.Context, id int64) (Transfer, error)
	ListTransfers(ctx context.Context, filter ListFilter) ([]Transfer, int, error)

	GetAdjustment(ctx context.Context, id int64) (Adjustment, error)
	ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, int, error)

	Commit(ctx context.Context, fn func(CommitTx) error) error
}

// CommitTx bundles the writes available inside one commit transaction.
type CommitTx interface {
	GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error)
	GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error)
	GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error)
	SetStatus(ctx context.Context, kind Kind, id int64, status Status, validatedAt *time.Time) error
	InsertAdjustment(ctx context.Context, a Adjustment) (Adjustment, error)
	SetAdjustmentChange(ctx context.Context, id int64, change float64) error
	ClaimKey(ctx context.Context, key string) error
	Stock() stock.TxStore
}
