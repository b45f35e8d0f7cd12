package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const overviewMonths = 6

// Service builds the dashboard payloads, caching them behind a versioned
// redis key and collapsing concurrent rebuilds.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
	now   func() time.Time
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Stats returns the headline counters, fanning the five counts out in
// parallel on a rebuild.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := s.cached(ctx, "dashboard:stats", &out, func(ctx context.Context) (interface{}, error) {
		var stats Stats
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			stats.TotalProducts, err = s.repo.CountProducts(ctx)
			return
		})
		g.Go(func() (err error) {
			stats.LowStockItems, err = s.repo.CountLowStock(ctx)
			return
		})
		g.Go(func() (err error) {
			stats.PendingReceipts, err = s.repo.CountDrafts(ctx, "receipts")
			return
		})
		g.Go(func() (err error) {
			stats.PendingDeliveries, err = s.repo.CountDrafts(ctx, "deliveries")
			return
		})
		g.Go(func() (err error) {
			stats.PendingTransfers, err = s.repo.CountDrafts(ctx, "transfers")
			return
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return stats, nil
	})
	return out, err
}

// OperationsOverview returns validated receipt and delivery counts for the
// last six months, oldest first, with empty months zero-filled.
func (s *Service) OperationsOverview(ctx context.Context) ([]MonthBucket, error) {
	var out []MonthBucket
	err := s.cached(ctx, "dashboard:overview", &out, func(ctx context.Context) (interface{}, error) {
		now := s.now().UTC()
		since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(overviewMonths - 1), 0)

		var receipts, deliveries map[string]int
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			receipts, err = s.repo.MonthlyValidated(ctx, "receipts", since)
			return
		})
		g.Go(func() (err error) {
			deliveries, err = s.repo.MonthlyValidated(ctx, "deliveries", since)
			return
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		buckets := make([]MonthBucket, 0, overviewMonths)
		for i := 0; i < overviewMonths; i++ {
			month := since.AddDate(0, i, 0).Format("2006-01")
			buckets = append(buckets, MonthBucket{
				Month:      month,
				Receipts:   receipts[month],
				Deliveries: deliveries[month],
			})
		}
		return buckets, nil
	})
	return out, err
}

// InventoryComposition returns total on-hand quantity per category. Categories
// whose stock nets out to zero are omitted from the breakdown.
func (s *Service) InventoryComposition(ctx context.Context) ([]CategoryShare, error) {
	var out []CategoryShare
	err := s.cached(ctx, "dashboard:composition", &out, func(ctx context.Context) (interface{}, error) {
		shares, err := s.repo.CategoryComposition(ctx)
		if err != nil {
			return nil, err
		}
		kept := shares[:0]
		for _, share := range shares {
			if share.Quantity > 0 {
				kept = append(kept, share)
			}
		}
		return kept, nil
	})
	return out, err
}

// Bump invalidates all cached payloads. Called after ledger commits.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) cached(ctx context.Context, name string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, name)
	if err != nil {
		return err
	}
	raw, err, _ := s.group.Do(key, func() (interface{}, error) {
		var buf json.RawMessage
		err := s.cache.FetchJSON(ctx, key, &buf, loader)
		return buf, err
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.(json.RawMessage), dest)
}
