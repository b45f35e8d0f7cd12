package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	catshared "github.com/stockroom-erp/stockroom/internal/catalog/shared"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

type fakeRepo struct {
	items  map[int64]Product
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[int64]Product{}, nextID: 1}
}

func (f *fakeRepo) List(_ context.Context, filters catshared.ListFilters) ([]Product, int, error) {
	out := make([]Product, 0, len(f.items))
	for _, p := range f.items {
		if filters.CategoryID != nil && p.CategoryID != *filters.CategoryID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := f.items[id]
	if !ok {
		return Product{}, catshared.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) Create(_ context.Context, p Product) (Product, error) {
	for _, existing := range f.items {
		if existing.SKU == p.SKU {
			return Product{}, catshared.ErrDuplicate
		}
	}
	p.ID = f.nextID
	f.nextID++
	f.items[p.ID] = p
	return p, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, p Product) error {
	if _, ok := f.items[id]; !ok {
		return catshared.ErrNotFound
	}
	p.ID = id
	f.items[id] = p
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return catshared.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) Count(_ context.Context) (int, error) {
	return len(f.items), nil
}

func TestCreateAndGet(t *testing.T) {
	svc := NewService(newFakeRepo())

	created, err := svc.Create(context.Background(), Product{
		SKU:  "RM-0001",
		Name: "Steel Sheet 2mm",
		Unit: "kg",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "RM-0001", got.SKU)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeRepo())

	cases := []struct {
		name    string
		product Product
		field   string
	}{
		{"missing sku", Product{Name: "x", Unit: "pcs"}, "sku"},
		{"missing name", Product{SKU: "A-1", Unit: "pcs"}, "name"},
		{"missing unit", Product{SKU: "A-1", Name: "x"}, "unit"},
		{"negative threshold", Product{SKU: "A-1", Name: "x", Unit: "pcs", LowStockThreshold: -1}, "low_stock_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.product)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCreateDuplicateSKU(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), Product{SKU: "A-1", Name: "first", Unit: "pcs"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Product{SKU: "A-1", Name: "second", Unit: "pcs"})
	require.ErrorIs(t, err, catshared.ErrDuplicate)
}

func TestUpdateRejectsInvalidID(t *testing.T) {
	svc := NewService(newFakeRepo())

	err := svc.Update(context.Background(), 0, Product{SKU: "A-1", Name: "x", Unit: "pcs"})
	require.ErrorIs(t, err, catshared.ErrInvalidID)
}

func TestDeleteMissing(t *testing.T) {
	svc := NewService(newFakeRepo())

	err := svc.Delete(context.Background(), 42)
	require.ErrorIs(t, err, catshared.ErrNotFound)
}

func TestListFiltersByCategory(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Product{SKU: "A-1", Name: "a", Unit: "pcs", CategoryID: 1})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Product{SKU: "B-1", Name: "b", Unit: "pcs", CategoryID: 2})
	require.NoError(t, err)

	cat := int64(2)
	items, total, err := svc.List(context.Background(), catshared.ListFilters{CategoryID: &cat})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "B-1", items[0].SKU)
}
