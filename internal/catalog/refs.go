// Package catalog exposes the referential checks other modules run
// before writing rows that point at products or warehouses.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

// Refs answers existence questions against the catalog tables.
type Refs struct {
	pool *pgxpool.Pool
}

func NewRefs(pool *pgxpool.Pool) *Refs {
	return &Refs{pool: pool}
}

func (r *Refs) ProductExists(ctx context.Context, id int64) error {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1 AND is_active)`, "product", id)
}

func (r *Refs) WarehouseExists(ctx context.Context, id int64) error {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM warehouses WHERE id=$1 AND is_active)`, "warehouse", id)
}

func (r *Refs) exists(ctx context.Context, query, entity string, id int64) error {
	var ok bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return fmt.Errorf("check %s %d: %w", entity, id, err)
	}
	if !ok {
		return &shared.ReferentialError{Entity: entity, ID: id}
	}
	return nil
}
