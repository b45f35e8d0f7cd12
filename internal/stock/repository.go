package stock

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository serves the read side: ledger queries and projection listings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the current quantity for one (product, warehouse) pair.
// A missing projection row reads as zero stock.
func (r *Repository) Get(ctx context.Context, productID, warehouseID int64) (Line, error) {
	var line Line
	err := r.pool.QueryRow(ctx, `SELECT product_id, warehouse_id, quantity, updated_at
FROM stock_lines WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID).
		Scan(&line.ProductID, &line.WarehouseID, &line.Quantity, &line.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{ProductID: productID, WarehouseID: warehouseID}, nil
		}
		return Line{}, err
	}
	return line, nil
}

// List returns projection rows joined with catalog data and low-stock flags.
func (r *Repository) List(ctx context.Context, filter LineFilter) ([]LineView, error) {
	query := `SELECT s.product_id, s.warehouse_id, s.quantity, s.updated_at,
p.name, p.sku, w.name, p.low_stock_threshold,
(s.quantity <= p.low_stock_threshold) AS is_low
FROM stock_lines s
JOIN products p ON p.id = s.product_id
JOIN warehouses w ON w.id = s.warehouse_id
WHERE 1=1`
	args := []any{}
	argCount := 0
	if filter.WarehouseID != 0 {
		argCount++
		query += ` AND s.warehouse_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.WarehouseID)
	}
	if filter.ProductID != 0 {
		argCount++
		query += ` AND s.product_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ProductID)
	}
	if filter.LowOnly {
		query += ` AND s.quantity <= p.low_stock_threshold`
	}
	query += ` ORDER BY p.name ASC, w.name ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []LineView{}
	for rows.Next() {
		var v LineView
		if err := rows.Scan(&v.ProductID, &v.WarehouseID, &v.Quantity, &v.UpdatedAt,
			&v.ProductName, &v.SKU, &v.WarehouseName, &v.Threshold, &v.IsLowStock); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// QueryLedger lists ledger entries, newest first unless OldestFirst is set.
func (r *Repository) QueryLedger(ctx context.Context, filter LedgerFilter) ([]EntryView, error) {
	query := `SELECT l.id, l.product_id, l.warehouse_id, l.change, l.balance, l.source_type, l.source_id, l.created_at,
p.name, w.name
FROM stock_ledger l
JOIN products p ON p.id = l.product_id
JOIN warehouses w ON w.id = l.warehouse_id
WHERE 1=1`
	args := []any{}
	argCount := 0
	if filter.ProductID != 0 {
		argCount++
		query += ` AND l.product_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ProductID)
	}
	if filter.WarehouseID != 0 {
		argCount++
		query += ` AND l.warehouse_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.WarehouseID)
	}
	if filter.SourceType != "" {
		argCount++
		if filter.SourceType == "TRANSFER" {
			// Both halves of a transfer.
			query += ` AND l.source_type LIKE $` + strconv.Itoa(argCount)
			args = append(args, "TRANSFER%")
		} else {
			query += ` AND l.source_type = $` + strconv.Itoa(argCount)
			args = append(args, string(filter.SourceType))
		}
	}
	if !filter.From.IsZero() {
		argCount++
		query += ` AND l.created_at >= $` + strconv.Itoa(argCount)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		argCount++
		query += ` AND l.created_at <= $` + strconv.Itoa(argCount)
		args = append(args, filter.To)
	}
	if filter.OldestFirst {
		query += ` ORDER BY l.created_at ASC, l.id ASC`
	} else {
		query += ` ORDER BY l.created_at DESC, l.id DESC`
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []EntryView{}
	for rows.Next() {
		var v EntryView
		if err := rows.Scan(&v.ID, &v.ProductID, &v.WarehouseID, &v.Change, &v.Balance,
			&v.SourceType, &v.SourceID, &v.CreatedAt, &v.ProductName, &v.WarehouseName); err != nil {
			return nil, err
		}
		entries = append(entries, v)
	}
	return entries, rows.Err()
}

// SumChanges folds ledger changes per (product, warehouse) pair. The integrity
// job compares the result against the projection.
func (r *Repository) SumChanges(ctx context.Context) (map[[2]int64]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, warehouse_id, COALESCE(SUM(change), 0)
FROM stock_ledger GROUP BY product_id, warehouse_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[[2]int64]float64)
	for rows.Next() {
		var productID, warehouseID int64
		var total float64
		if err := rows.Scan(&productID, &warehouseID, &total); err != nil {
			return nil, err
		}
		sums[[2]int64{productID, warehouseID}] = total
	}
	return sums, rows.Err()
}

// AllLines reads every projection row, used by the integrity job.
func (r *Repository) AllLines(ctx context.Context) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, warehouse_id, quantity, updated_at FROM stock_lines`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ProductID, &line.WarehouseID, &line.Quantity, &line.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// LowStock lists projection rows at or below their product threshold.
func (r *Repository) LowStock(ctx context.Context) ([]LineView, error) {
	return r.List(ctx, LineFilter{LowOnly: true})
}
