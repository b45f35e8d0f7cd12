package operations

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-erp/stockroom/internal/platform/db"
	"github.com/stockroom-erp/stockroom/internal/shared"
	"github.com/stockroom-erp/stockroom/internal/stock"
)

// PGStore implements Store on Postgres.
type PGStore struct {
	pool *pgxpool.Pool
	idem *shared.IdempotencyStore
}

func NewPGStore(pool *pgxpool.Pool, idem *shared.IdempotencyStore) *PGStore {
	return &PGStore{pool: pool, idem: idem}
}

func (s *PGStore) CreateReceipt(ctx context.Context, r Receipt) (Receipt, error) {
	now := time.Now()
	err := s.pool.QueryRow(ctx, `INSERT INTO receipts (warehouse_id, supplier, reference, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		r.WarehouseID, r.Supplier, r.Reference, StatusDraft, r.CreatedBy, now).Scan(&r.ID)
	if err != nil {
		return Receipt{}, err
	}
	r.Status = StatusDraft
	r.CreatedAt = now
	r.Items = []Item{}
	return r, nil
}

func (s *PGStore) AddReceiptItem(ctx context.Context, receiptID int64, item Item) (Item, error) {
	return s.addItem(ctx, `INSERT INTO receipt_items (receipt_id, product_id, quantity)
SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM receipts WHERE id=$1 AND status='draft')
RETURNING id`, receiptID, item)
}

func (s *PGStore) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	var r Receipt
	err := s.pool.QueryRow(ctx, `SELECT id, warehouse_id, supplier, reference, status, created_by, created_at, validated_at
FROM receipts WHERE id=$1`, id).
		Scan(&r.ID, &r.WarehouseID, &r.Supplier, &r.Reference, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.ValidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, shared.ErrNotFound
		}
		return Receipt{}, err
	}
	r.Items, err = loadItems(ctx, s.pool, "receipt_items", "receipt_id", id)
	return r, err
}

func (s *PGStore) ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, int, error) {
	query := `SELECT id, warehouse_id, supplier, reference, status, created_by, created_at, validated_at FROM receipts`
	where, args := listWhere(filter, "warehouse_id")
	total, err := s.countDocs(ctx, `SELECT COUNT(*) FROM receipts`+where, args)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, query+where+listTail(filter, len(args)), listArgs(filter, args)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(&r.ID, &r.WarehouseID, &r.Supplier, &r.Reference, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.ValidatedAt); err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, r)
	}
	return receipts, total, rows.Err()
}

func (s *PGStore) CreateDelivery(ctx context.Context, d Delivery) (Delivery, error) {
	now := time.Now()
	err := s.pool.QueryRow(ctx, `INSERT INTO deliveries (warehouse_id, customer, reference, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		d.WarehouseID, d.Customer, d.Reference, StatusDraft, d.CreatedBy, now).Scan(&d.ID)
	if err != nil {
		return Delivery{}, err
	}
	d.Status = StatusDraft
	d.CreatedAt = now
	d.Items = []Item{}
	return d, nil
}

func (s *PGStore) AddDeliveryItem(ctx context.Context, deliveryID int64, item Item) (Item, error) {
	return s.addItem(ctx, `INSERT INTO delivery_items (delivery_id, product_id, quantity)
SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM deliveries WHERE id=$1 AND status='draft')
RETURNING id`, deliveryID, item)
}

func (s *PGStore) GetDelivery(ctx context.Context, id int64) (Delivery, error) {
	var d Delivery
	err := s.pool.QueryRow(ctx, `SELECT id, warehouse_id, customer, reference, status, created_by, created_at, validated_at
FROM deliveries WHERE id=$1`, id).
		Scan(&d.ID, &d.WarehouseID, &d.Customer, &d.Reference, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.ValidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, shared.ErrNotFound
		}
		return Delivery{}, err
	}
	d.Items, err = loadItems(ctx, s.pool, "delivery_items", "delivery_id", id)
	return d, err
}

func (s *PGStore) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	query := `SELECT id, warehouse_id, customer, reference, status, created_by, created_at, validated_at FROM deliveries`
	where, args := listWhere(filter, "warehouse_id")
	total, err := s.countDocs(ctx, `SELECT COUNT(*) FROM deliveries`+where, args)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, query+where+listTail(filter, len(args)), listArgs(filter, args)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.WarehouseID, &d.Customer, &d.Reference, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.ValidatedAt); err != nil {
			return nil, 0, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, total, rows.Err()
}

func (s *PGStore) CreateTransfer(ctx context.Context, t Transfer) (Transfer, error) {
	now := time.Now()
	err := s.pool.QueryRow(ctx, `INSERT INTO transfers (from_warehouse_id, to_warehouse_id, reference, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		t.FromWarehouseID, t.ToWarehouseID, t.Reference, StatusDraft, t.CreatedBy, now).Scan(&t.ID)
	if err != nil {
		return Transfer{}, err
	}
	t.Status = StatusDraft
	t.CreatedAt = now
	t.Items = []Item{}
	return t, nil
}

func (s *PGStore) AddTransferItem(ctx context.Context, transferID int64, item Item) (Item, error) {
	return s.addItem(ctx, `INSERT INTO transfer_items (transfer_id, product_id, quantity)
SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM transfers WHERE id=$1 AND status='draft')
RETURNING id`, transferID, item)
}

func (s *PGStore) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	var t Transfer
	err := s.pool.QueryRow(ctx, `SELECT id, from_warehouse_id, to_warehouse_id, reference, status, created_by, created_at, validated_at
FROM transfers WHERE id=$1`, id).
		Scan(&t.ID, &t.FromWarehouseID, &t.ToWarehouseID, &t.Reference, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.ValidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, shared.ErrNotFound
		}
		return Transfer{}, err
	}
	t.Items, err = loadItems(ctx, s.pool, "transfer_items", "transfer_id", id)
	return t, err
}

func (s *PGStore) ListTransfers(ctx context.Context, filter ListFilter) ([]Transfer, int, error) {
	query := `SELECT id, from_warehouse_id, to_warehouse_id, reference, status, created_by, created_at, validated_at FROM transfers`
	where, args := listWhere(filter, "from_warehouse_id")
	total, err := s.countDocs(ctx, `SELECT COUNT(*) FROM transfers`+where, args)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, query+where+listTail(filter, len(args)), listArgs(filter, args)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.FromWarehouseID, &t.ToWarehouseID, &t.Reference, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.ValidatedAt); err != nil {
			return nil, 0, err
		}
		transfers = append(transfers, t)
	}
	return transfers, total, rows.Err()
}

func (s *PGStore) GetAdjustment(ctx context.Context, id int64) (Adjustment, error) {
	var a Adjustment
	err := s.pool.QueryRow(ctx, `SELECT id, product_id, warehouse_id, counted_quantity, change, reason, status, created_by, created_at
FROM adjustments WHERE id=$1`, id).
		Scan(&a.ID, &a.ProductID, &a.WarehouseID, &a.CountedQuantity, &a.Change, &a.Reason, &a.Status, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Adjustment{}, shared.ErrNotFound
		}
		return Adjustment{}, err
	}
	return a, nil
}

func (s *PGStore) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, int, error) {
	query := `SELECT id, product_id, warehouse_id, counted_quantity, change, reason, status, created_by, created_at FROM adjustments`
	where, args := listWhere(filter, "warehouse_id")
	total, err := s.countDocs(ctx, `SELECT COUNT(*) FROM adjustments`+where, args)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, query+where+listTail(filter, len(args)), listArgs(filter, args)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var adjustments []Adjustment
	for rows.Next() {
		var a Adjustment
		if err := rows.Scan(&a.ID, &a.ProductID, &a.WarehouseID, &a.CountedQuantity, &a.Change, &a.Reason, &a.Status, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, total, rows.Err()
}

// Commit runs fn inside one RepeatableRead transaction.
func (s *PGStore) Commit(ctx context.Context, fn func(CommitTx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgCommitTx{tx: tx, idem: s.idem})
	})
}

type pgCommitTx struct {
	tx   pgx.Tx
	idem *shared.IdempotencyStore
}

func (c *pgCommitTx) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	var r Receipt
	err := c.tx.QueryRow(ctx, `SELECT id, warehouse_id, supplier, reference, status, created_by, created_at, validated_at
FROM receipts WHERE id=$1 FOR UPDATE`, id).
		Scan(&r.ID, &r.WarehouseID, &r.Supplier, &r.Reference, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.ValidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, shared.ErrNotFound
		}
		return Receipt{}, err
	}
	r.Items, err = loadItems(ctx, c.tx, "receipt_items", "receipt_id", id)
	return r, err
}

func (c *pgCommitTx) GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error) {
	var d Delivery
	err := c.tx.QueryRow(ctx, `SELECT id, warehouse_id, customer, reference, status, created_by, created_at, validated_at
FROM deliveries WHERE id=$1 FOR UPDATE`, id).
		Scan(&d.ID, &d.WarehouseID, &d.Customer, &d.Reference, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.ValidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, shared.ErrNotFound
		}
		return Delivery{}, err
	}
	d.Items, err = loadItems(ctx, c.tx, "delivery_items", "delivery_id", id)
	return d, err
}

func (c *pgCommitTx) GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error) {
	var t Transfer
	err := c.tx.QueryRow(ctx, `SELECT id, from_warehouse_id, to_warehouse_id, reference, status, created_by, created_at, validated_at
FROM transfers WHERE id=$1 FOR UPDATE`, id).
		Scan(&t.ID, &t.FromWarehouseID, &t.ToWarehouseID, &t.Reference, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.ValidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, shared.ErrNotFound
		}
		return Transfer{}, err
	}
	t.Items, err = loadItems(ctx, c.tx, "transfer_items", "transfer_id", id)
	return t, err
}

func (c *pgCommitTx) SetStatus(ctx context.Context, kind Kind, id int64, status Status, validatedAt *time.Time) error {
	table := ""
	switch kind {
	case KindReceipt:
		table = "receipts"
	case KindDelivery:
		table = "deliveries"
	case KindTransfer:
		table = "transfers"
	default:
		return errors.New("operations: no status table for kind " + string(kind))
	}
	tag, err := c.tx.Exec(ctx, `UPDATE `+table+` SET status=$1, validated_at=$2 WHERE id=$3`, status, validatedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (c *pgCommitTx) InsertAdjustment(ctx context.Context, a Adjustment) (Adjustment, error) {
	now := time.Now()
	err := c.tx.QueryRow(ctx, `INSERT INTO adjustments (product_id, warehouse_id, counted_quantity, change, reason, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		a.ProductID, a.WarehouseID, a.CountedQuantity, a.Change, a.Reason, StatusDone, a.CreatedBy, now).Scan(&a.ID)
	if err != nil {
		return Adjustment{}, err
	}
	a.Status = StatusDone
	a.CreatedAt = now
	return a, nil
}

func (c *pgCommitTx) SetAdjustmentChange(ctx context.Context, id int64, change float64) error {
	_, err := c.tx.Exec(ctx, `UPDATE adjustments SET change=$1 WHERE id=$2`, change, id)
	return err
}

func (c *pgCommitTx) ClaimKey(ctx context.Context, key string) error {
	return c.idem.CheckAndInsertTx(ctx, c.tx, key, "operations")
}

func (c *pgCommitTx) Stock() stock.TxStore {
	return stock.NewPGTxStore(c.tx)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PGStore) addItem(ctx context.Context, query string, docID int64, item Item) (Item, error) {
	err := s.pool.QueryRow(ctx, query, docID, item.ProductID, item.Quantity).Scan(&item.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, &shared.InvalidOperationError{Reason: "document is not a draft"}
		}
		return Item{}, err
	}
	return item, nil
}

func (s *PGStore) countDocs(ctx context.Context, query string, args []any) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func loadItems(ctx context.Context, q queryer, table, fk string, docID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, product_id, quantity FROM `+table+` WHERE `+fk+`=$1 ORDER BY id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func listWhere(filter ListFilter, warehouseCol string) (string, []any) {
	where := ""
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += clause(where) + `status=$` + strconv.Itoa(len(args))
	}
	if filter.WarehouseID != 0 {
		args = append(args, filter.WarehouseID)
		where += clause(where) + warehouseCol + `=$` + strconv.Itoa(len(args))
	}
	return where, args
}

func listTail(filter ListFilter, argCount int) string {
	tail := ` ORDER BY id DESC`
	if filter.Limit > 0 {
		tail += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
	}
	return tail
}

func listArgs(filter ListFilter, args []any) []any {
	if filter.Limit > 0 {
		args = append(args, filter.Limit, shared.Pagination{Page: filter.Page, PerPage: filter.Limit}.Offset())
	}
	return args
}

func clause(where string) string {
	if where == "" {
		return ` WHERE `
	}
	return ` AND `
}
