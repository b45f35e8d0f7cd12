package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// PGTxStore implements TxStore on top of an open pgx transaction.
type PGTxStore struct {
	tx pgx.Tx
}

// NewPGTxStore wraps a transaction for engine use.
func NewPGTxStore(tx pgx.Tx) *PGTxStore {
	return &PGTxStore{tx: tx}
}

func (s *PGTxStore) GetLineForUpdate(ctx context.Context, productID, warehouseID int64) (Line, error) {
	var line Line
	err := s.tx.QueryRow(ctx, `SELECT product_id, warehouse_id, quantity, updated_at
FROM stock_lines WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`, productID, warehouseID).
		Scan(&line.ProductID, &line.WarehouseID, &line.Quantity, &line.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{ProductID: productID, WarehouseID: warehouseID}, ErrLineNotFound
		}
		return Line{}, err
	}
	return line, nil
}

func (s *PGTxStore) UpsertLine(ctx context.Context, line Line) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_lines (product_id, warehouse_id, quantity, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=NOW()`,
		line.ProductID, line.WarehouseID, line.Quantity)
	return err
}

func (s *PGTxStore) InsertEntry(ctx context.Context, entry LedgerEntry) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_ledger (product_id, warehouse_id, change, balance, source_type, source_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		entry.ProductID, entry.WarehouseID, entry.Change, entry.Balance, string(entry.SourceType), entry.SourceID, entry.CreatedAt).Scan(&id)
	return id, err
}
