package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	products   int
	lowStock   int
	drafts     map[string]int
	monthly    map[string]map[string]int
	shares     []CategoryShare
	statsCalls int
}

func (f *fakeRepo) CountProducts(ctx context.Context) (int, error) {
	f.statsCalls++
	return f.products, nil
}

func (f *fakeRepo) CountLowStock(ctx context.Context) (int, error) {
	return f.lowStock, nil
}

func (f *fakeRepo) CountDrafts(ctx context.Context, table string) (int, error) {
	return f.drafts[table], nil
}

func (f *fakeRepo) MonthlyValidated(ctx context.Context, table string, since time.Time) (map[string]int, error) {
	return f.monthly[table], nil
}

func (f *fakeRepo) CategoryComposition(ctx context.Context) ([]CategoryShare, error) {
	return f.shares, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &fakeRepo{
		products: 12,
		lowStock: 3,
		drafts:   map[string]int{"receipts": 2, "deliveries": 1, "transfers": 4},
		monthly:  map[string]map[string]int{},
	}
	svc := NewService(repo, NewCache(client, time.Minute))
	return svc, repo, mr
}

func TestStatsFansOutAndCaches(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, stats.TotalProducts)
	require.Equal(t, 3, stats.LowStockItems)
	require.Equal(t, 2, stats.PendingReceipts)
	require.Equal(t, 1, stats.PendingDeliveries)
	require.Equal(t, 4, stats.PendingTransfers)
	require.Equal(t, 1, repo.statsCalls)

	// Second read is served from redis.
	repo.products = 999
	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, stats.TotalProducts)
	require.Equal(t, 1, repo.statsCalls)
}

func TestBumpInvalidates(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Stats(ctx)
	require.NoError(t, err)

	repo.products = 13
	require.NoError(t, svc.Bump(ctx))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 13, stats.TotalProducts)
	require.Equal(t, 2, repo.statsCalls)
}

func TestOperationsOverviewZeroFills(t *testing.T) {
	svc, repo, _ := newTestService(t)
	svc.now = func() time.Time {
		return time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	}
	repo.monthly = map[string]map[string]int{
		"receipts":   {"2026-06": 5, "2026-03": 2},
		"deliveries": {"2026-05": 7},
	}

	buckets, err := svc.OperationsOverview(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 6)
	require.Equal(t, "2026-01", buckets[0].Month)
	require.Equal(t, "2026-06", buckets[5].Month)
	require.Equal(t, 2, buckets[2].Receipts)
	require.Equal(t, 7, buckets[4].Deliveries)
	require.Equal(t, 0, buckets[1].Receipts)
	require.Equal(t, 5, buckets[5].Receipts)
}

func TestInventoryComposition(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.shares = []CategoryShare{
		{Category: "Electronics", Quantity: 120},
		{Category: "Uncategorized", Quantity: 30},
	}

	shares, err := svc.InventoryComposition(context.Background())
	require.NoError(t, err)
	require.Len(t, shares, 2)
	require.Equal(t, "Electronics", shares[0].Category)
	require.InDelta(t, 120, shares[0].Quantity, 1e-9)
}

func TestInventoryCompositionOmitsEmptyCategories(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.shares = []CategoryShare{
		{Category: "Electronics", Quantity: 120},
		{Category: "Packaging", Quantity: 0},
		{Category: "Returns", Quantity: -5},
	}

	shares, err := svc.InventoryComposition(context.Background())
	require.NoError(t, err)
	require.Len(t, shares, 1)
	require.Equal(t, "Electronics", shares[0].Category)
}

func TestCacheDisabled(t *testing.T) {
	repo := &fakeRepo{products: 7, drafts: map[string]int{}}
	svc := NewService(repo, NewCache(nil, 0))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, stats.TotalProducts)

	repo.products = 8
	stats, err = svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8, stats.TotalProducts)
}
