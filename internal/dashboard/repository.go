package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregate queries behind the dashboard payloads.
type Repository interface {
	CountProducts(ctx context.Context) (int, error)
	CountLowStock(ctx context.Context) (int, error)
	CountDrafts(ctx context.Context, table string) (int, error)
	MonthlyValidated(ctx context.Context, table string, since time.Time) (map[string]int, error)
	CategoryComposition(ctx context.Context) ([]CategoryShare, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE is_active`).Scan(&n)
	return n, err
}

func (r *repository) CountLowStock(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_lines sl
JOIN products p ON p.id = sl.product_id
WHERE sl.quantity <= p.low_stock_threshold`).Scan(&n)
	return n, err
}

func (r *repository) CountDrafts(ctx context.Context, table string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE status='draft'`).Scan(&n)
	return n, err
}

func (r *repository) MonthlyValidated(ctx context.Context, table string, since time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT to_char(date_trunc('month', validated_at), 'YYYY-MM'), COUNT(*)
FROM `+table+` WHERE status='done' AND validated_at >= $1
GROUP BY 1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var month string
		var n int
		if err := rows.Scan(&month, &n); err != nil {
			return nil, err
		}
		counts[month] = n
	}
	return counts, rows.Err()
}

func (r *repository) CategoryComposition(ctx context.Context) ([]CategoryShare, error) {
	rows, err := r.pool.Query(ctx, `SELECT COALESCE(c.name, 'Uncategorized'), SUM(sl.quantity)
FROM stock_lines sl
JOIN products p ON p.id = sl.product_id
LEFT JOIN product_categories c ON c.id = p.category_id
GROUP BY 1
HAVING SUM(sl.quantity) > 0
ORDER BY 2 DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shares := []CategoryShare{}
	for rows.Next() {
		var s CategoryShare
		if err := rows.Scan(&s.Category, &s.Quantity); err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, rows.Err()
}
