package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-erp/stockroom/internal/catalog/shared"
	core "github.com/stockroom-erp/stockroom/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT p.id, p.sku, p.name, p.unit, COALESCE(p.category_id, 0), COALESCE(c.name, ''),
p.low_stock_threshold, p.is_active, p.created_at, p.updated_at
FROM products p LEFT JOIN product_categories c ON c.id = p.category_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products p WHERE 1=1`
	args := []any{}
	countArgs := []any{}
	argCount := 0
	countArgCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (p.name ILIKE $` + strconv.Itoa(argCount) + ` OR p.sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
		countArgCount++
		countQuery += ` AND (p.name ILIKE $` + strconv.Itoa(countArgCount) + ` OR p.sku ILIKE $` + strconv.Itoa(countArgCount) + `)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.CategoryID != nil {
		argCount++
		query += ` AND p.category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.CategoryID)
		countArgCount++
		countQuery += ` AND p.category_id = $` + strconv.Itoa(countArgCount)
		countArgs = append(countArgs, *filters.CategoryID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, core.Pagination{Page: filters.Page, PerPage: filters.Limit}.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.CategoryID, &p.CategoryName,
			&p.LowStockThreshold, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT p.id, p.sku, p.name, p.unit, COALESCE(p.category_id, 0), COALESCE(c.name, ''),
p.low_stock_threshold, p.is_active, p.created_at, p.updated_at
FROM products p LEFT JOIN product_categories c ON c.id = p.category_id WHERE p.id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.CategoryID, &p.CategoryName,
			&p.LowStockThreshold, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, unit, category_id, low_stock_threshold, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		product.SKU, product.Name, product.Unit, nullID(product.CategoryID),
		product.LowStockThreshold, true, now, now).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, shared.ErrDuplicate
		}
		return Product{}, err
	}
	product.IsActive = true
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET sku=$1, name=$2, unit=$3, category_id=$4,
low_stock_threshold=$5, is_active=$6, updated_at=NOW() WHERE id=$7`,
		product.SKU, product.Name, product.Unit, nullID(product.CategoryID),
		product.LowStockThreshold, product.IsActive, id)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	return total, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "p.sku " + dir
	case "name":
		return "p.name " + dir
	default:
		return "p.name " + dir
	}
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
