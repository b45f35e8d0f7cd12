package operations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockroom-erp/stockroom/internal/shared"
	"github.com/stockroom-erp/stockroom/internal/stock"
)

// memStore keeps all documents, the ledger and the projection in maps and
// rolls everything back when a Commit callback fails.
type memStore struct {
	receipts    map[int64]Receipt
	deliveries  map[int64]Delivery
	transfers   map[int64]Transfer
	adjustments map[int64]Adjustment
	keys        map[string]bool
	lines       map[string]stock.Line
	ledger      []stock.LedgerEntry
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		receipts:    make(map[int64]Receipt),
		deliveries:  make(map[int64]Delivery),
		transfers:   make(map[int64]Transfer),
		adjustments: make(map[int64]Adjustment),
		keys:        make(map[string]bool),
		lines:       make(map[string]stock.Line),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func lineKey(productID, warehouseID int64) string {
	return fmt.Sprintf("%d:%d", productID, warehouseID)
}

func (s *memStore) CreateReceipt(ctx context.Context, r Receipt) (Receipt, error) {
	r.ID = s.id()
	r.Status = StatusDraft
	r.CreatedAt = time.Now()
	r.Items = []Item{}
	s.receipts[r.ID] = r
	return r, nil
}

func (s *memStore) AddReceiptItem(ctx context.Context, receiptID int64, item Item) (Item, error) {
	r, ok := s.receipts[receiptID]
	if !ok || r.Status != StatusDraft {
		return Item{}, &shared.InvalidOperationError{Reason: "document is not a draft"}
	}
	item.ID = s.id()
	r.Items = append(r.Items, item)
	s.receipts[receiptID] = r
	return item, nil
}

func (s *memStore) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	r, ok := s.receipts[id]
	if !ok {
		return Receipt{}, shared.ErrNotFound
	}
	return r, nil
}

func (s *memStore) ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, int, error) {
	var out []Receipt
	for _, r := range s.receipts {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (s *memStore) CreateDelivery(ctx context.Context, d Delivery) (Delivery, error) {
	d.ID = s.id()
	d.Status = StatusDraft
	d.CreatedAt = time.Now()
	d.Items = []Item{}
	s.deliveries[d.ID] = d
	return d, nil
}

func (s *memStore) AddDeliveryItem(ctx context.Context, deliveryID int64, item Item) (Item, error) {
	d, ok := s.deliveries[deliveryID]
	if !ok || d.Status != StatusDraft {
		return Item{}, &shared.InvalidOperationError{Reason: "document is not a draft"}
	}
	item.ID = s.id()
	d.Items = append(d.Items, item)
	s.deliveries[deliveryID] = d
	return item, nil
}

func (s *memStore) GetDelivery(ctx context.Context, id int64) (Delivery, error) {
	d, ok := s.deliveries[id]
	if !ok {
		return Delivery{}, shared.ErrNotFound
	}
	return d, nil
}

func (s *memStore) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	var out []Delivery
	for _, d := range s.deliveries {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func (s *memStore) CreateTransfer(ctx context.Context, t Transfer) (Transfer, error) {
	t.ID = s.id()
	t.Status = StatusDraft
	t.CreatedAt = time.Now()
	t.Items = []Item{}
	s.transfers[t.ID] = t
	return t, nil
}

func (s *memStore) AddTransferItem(ctx context.Context, transferID int64, item Item) (Item, error) {
	t, ok := s.transfers[transferID]
	if !ok || t.Status != StatusDraft {
		return Item{}, &shared.InvalidOperationError{Reason: "document is not a draft"}
	}
	item.ID = s.id()
	t.Items = append(t.Items, item)
	s.transfers[transferID] = t
	return item, nil
}

func (s *memStore) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	t, ok := s.transfers[id]
	if !ok {
		return Transfer{}, shared.ErrNotFound
	}
	return t, nil
}

func (s *memStore) ListTransfers(ctx context.Context, filter ListFilter) ([]Transfer, int, error) {
	var out []Transfer
	for _, t := range s.transfers {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (s *memStore) GetAdjustment(ctx context.Context, id int64) (Adjustment, error) {
	a, ok := s.adjustments[id]
	if !ok {
		return Adjustment{}, shared.ErrNotFound
	}
	return a, nil
}

func (s *memStore) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, int, error) {
	var out []Adjustment
	for _, a := range s.adjustments {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (s *memStore) Commit(ctx context.Context, fn func(CommitTx) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) snapshot() *memStore {
	snap := newMemStore()
	snap.nextID = s.nextID
	for k, v := range s.receipts {
		v.Items = append([]Item(nil), v.Items...)
		snap.receipts[k] = v
	}
	for k, v := range s.deliveries {
		v.Items = append([]Item(nil), v.Items...)
		snap.deliveries[k] = v
	}
	for k, v := range s.transfers {
		v.Items = append([]Item(nil), v.Items...)
		snap.transfers[k] = v
	}
	for k, v := range s.adjustments {
		snap.adjustments[k] = v
	}
	for k, v := range s.keys {
		snap.keys[k] = v
	}
	for k, v := range s.lines {
		snap.lines[k] = v
	}
	snap.ledger = append([]stock.LedgerEntry(nil), s.ledger...)
	return snap
}

func (s *memStore) restore(snap *memStore) {
	s.receipts = snap.receipts
	s.deliveries = snap.deliveries
	s.transfers = snap.transfers
	s.adjustments = snap.adjustments
	s.keys = snap.keys
	s.lines = snap.lines
	s.ledger = snap.ledger
	s.nextID = snap.nextID
}

// CommitTx on the same struct; Commit handles rollback.

func (s *memStore) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	return s.GetReceipt(ctx, id)
}

func (s *memStore) GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error) {
	return s.GetDelivery(ctx, id)
}

func (s *memStore) GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error) {
	return s.GetTransfer(ctx, id)
}

func (s *memStore) SetStatus(ctx context.Context, kind Kind, id int64, status Status, validatedAt *time.Time) error {
	switch kind {
	case KindReceipt:
		r := s.receipts[id]
		r.Status = status
		r.ValidatedAt = validatedAt
		s.receipts[id] = r
	case KindDelivery:
		d := s.deliveries[id]
		d.Status = status
		d.ValidatedAt = validatedAt
		s.deliveries[id] = d
	case KindTransfer:
		t := s.transfers[id]
		t.Status = status
		t.ValidatedAt = validatedAt
		s.transfers[id] = t
	}
	return nil
}

func (s *memStore) InsertAdjustment(ctx context.Context, a Adjustment) (Adjustment, error) {
	a.ID = s.id()
	a.Status = StatusDone
	a.CreatedAt = time.Now()
	s.adjustments[a.ID] = a
	return a, nil
}

func (s *memStore) SetAdjustmentChange(ctx context.Context, id int64, change float64) error {
	a := s.adjustments[id]
	a.Change = change
	s.adjustments[id] = a
	return nil
}

func (s *memStore) ClaimKey(ctx context.Context, key string) error {
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *memStore) Stock() stock.TxStore {
	return s
}

func (s *memStore) GetLineForUpdate(ctx context.Context, productID, warehouseID int64) (stock.Line, error) {
	if line, ok := s.lines[lineKey(productID, warehouseID)]; ok {
		return line, nil
	}
	return stock.Line{ProductID: productID, WarehouseID: warehouseID}, stock.ErrLineNotFound
}

func (s *memStore) UpsertLine(ctx context.Context, line stock.Line) error {
	s.lines[lineKey(line.ProductID, line.WarehouseID)] = line
	return nil
}

func (s *memStore) InsertEntry(ctx context.Context, entry stock.LedgerEntry) (int64, error) {
	entry.ID = s.id()
	s.ledger = append(s.ledger, entry)
	return entry.ID, nil
}

func (s *memStore) quantity(productID, warehouseID int64) float64 {
	return s.lines[lineKey(productID, warehouseID)].Quantity
}

func (s *memStore) sumChanges(productID, warehouseID int64) float64 {
	var total float64
	for _, e := range s.ledger {
		if e.ProductID == productID && e.WarehouseID == warehouseID {
			total += e.Change
		}
	}
	return total
}

type fakeRefs struct {
	products   map[int64]bool
	warehouses map[int64]bool
}

func (f *fakeRefs) ProductExists(ctx context.Context, id int64) error {
	if !f.products[id] {
		return &shared.ReferentialError{Entity: "product", ID: id}
	}
	return nil
}

func (f *fakeRefs) WarehouseExists(ctx context.Context, id int64) error {
	if !f.warehouses[id] {
		return &shared.ReferentialError{Entity: "warehouse", ID: id}
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	refs := &fakeRefs{
		products:   map[int64]bool{1: true, 2: true},
		warehouses: map[int64]bool{1: true, 2: true},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := stock.NewEngine(stock.EngineConfig{LogZeroChanges: true})
	return NewService(logger, store, engine, refs, nil), store
}

func receiptWithStock(t *testing.T, svc *Service, warehouseID, productID int64, qty float64) {
	t.Helper()
	ctx := context.Background()
	r, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: warehouseID})
	require.NoError(t, err)
	_, err = svc.AddReceiptItem(ctx, r.ID, Item{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	_, err = svc.ValidateReceipt(ctx, r.ID)
	require.NoError(t, err)
}

func TestReceiptLifecycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: 1, Supplier: "Acme"})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, r.Status)

	_, err = svc.AddReceiptItem(ctx, r.ID, Item{ProductID: 1, Quantity: 100})
	require.NoError(t, err)
	_, err = svc.AddReceiptItem(ctx, r.ID, Item{ProductID: 2, Quantity: 25})
	require.NoError(t, err)

	done, err := svc.ValidateReceipt(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, done.Status)
	require.NotNil(t, done.ValidatedAt)

	require.InDelta(t, 100, store.quantity(1, 1), 1e-9)
	require.InDelta(t, 25, store.quantity(2, 1), 1e-9)
	require.Len(t, store.ledger, 2)
	require.Equal(t, stock.SourceReceipt, store.ledger[0].SourceType)
	require.Equal(t, r.ID, store.ledger[0].SourceID)
}

func TestValidateIsExactlyOnce(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: 1})
	require.NoError(t, err)
	_, err = svc.AddReceiptItem(ctx, r.ID, Item{ProductID: 1, Quantity: 10})
	require.NoError(t, err)
	_, err = svc.ValidateReceipt(ctx, r.ID)
	require.NoError(t, err)

	_, err = svc.ValidateReceipt(ctx, r.ID)
	var ioe *shared.InvalidOperationError
	require.ErrorAs(t, err, &ioe)
	require.InDelta(t, 10, store.quantity(1, 1), 1e-9)
	require.Len(t, store.ledger, 1)
}

func TestValidateEmptyReceipt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: 1})
	require.NoError(t, err)
	_, err = svc.ValidateReceipt(ctx, r.ID)
	var ioe *shared.InvalidOperationError
	require.ErrorAs(t, err, &ioe)

	got, err := svc.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)
}

func TestDeliveryRejectsOversell(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	receiptWithStock(t, svc, 1, 1, 10)

	d, err := svc.CreateDelivery(ctx, Delivery{WarehouseID: 1, Customer: "Globex"})
	require.NoError(t, err)
	_, err = svc.AddDeliveryItem(ctx, d.ID, Item{ProductID: 1, Quantity: 15})
	require.NoError(t, err)

	_, err = svc.ValidateDelivery(ctx, d.ID)
	var ise *shared.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.InDelta(t, 15, ise.Requested, 1e-9)
	require.InDelta(t, 10, ise.Available, 1e-9)

	got, err := svc.GetDelivery(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)
	require.Len(t, store.ledger, 1)
	require.InDelta(t, 10, store.quantity(1, 1), 1e-9)

	// The failed validate released its idempotency key, so topping the
	// stock up lets the same delivery go through.
	receiptWithStock(t, svc, 1, 1, 5)
	done, err := svc.ValidateDelivery(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, done.Status)
	require.InDelta(t, 0, store.quantity(1, 1), 1e-9)
}

func TestTransferMovesStockBetweenWarehouses(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	receiptWithStock(t, svc, 1, 1, 100)

	tr, err := svc.CreateTransfer(ctx, Transfer{FromWarehouseID: 1, ToWarehouseID: 2})
	require.NoError(t, err)
	_, err = svc.AddTransferItem(ctx, tr.ID, Item{ProductID: 1, Quantity: 30})
	require.NoError(t, err)
	_, err = svc.ValidateTransfer(ctx, tr.ID)
	require.NoError(t, err)

	require.InDelta(t, 70, store.quantity(1, 1), 1e-9)
	require.InDelta(t, 30, store.quantity(1, 2), 1e-9)

	// Two paired entries, summing to zero, system total unchanged.
	var outEntry, inEntry *stock.LedgerEntry
	for i := range store.ledger {
		switch store.ledger[i].SourceType {
		case stock.SourceTransferOut:
			outEntry = &store.ledger[i]
		case stock.SourceTransferIn:
			inEntry = &store.ledger[i]
		}
	}
	require.NotNil(t, outEntry)
	require.NotNil(t, inEntry)
	require.InDelta(t, 0, outEntry.Change+inEntry.Change, 1e-9)
	require.InDelta(t, 100, store.quantity(1, 1)+store.quantity(1, 2), 1e-9)

	// Deliver 50 from warehouse 1, then 30 more must bounce off the
	// remaining 20.
	d, err := svc.CreateDelivery(ctx, Delivery{WarehouseID: 1})
	require.NoError(t, err)
	_, err = svc.AddDeliveryItem(ctx, d.ID, Item{ProductID: 1, Quantity: 50})
	require.NoError(t, err)
	_, err = svc.ValidateDelivery(ctx, d.ID)
	require.NoError(t, err)
	require.InDelta(t, 20, store.quantity(1, 1), 1e-9)

	d2, err := svc.CreateDelivery(ctx, Delivery{WarehouseID: 1})
	require.NoError(t, err)
	_, err = svc.AddDeliveryItem(ctx, d2.ID, Item{ProductID: 1, Quantity: 30})
	require.NoError(t, err)
	_, err = svc.ValidateDelivery(ctx, d2.ID)
	var ise *shared.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.InDelta(t, 20, store.quantity(1, 1), 1e-9)
	require.InDelta(t, store.sumChanges(1, 1), store.quantity(1, 1), 1e-9)
}

func TestTransferSameWarehouseRejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateTransfer(context.Background(), Transfer{FromWarehouseID: 1, ToWarehouseID: 1})
	var ioe *shared.InvalidOperationError
	require.ErrorAs(t, err, &ioe)
}

func TestTransferFailureLeavesNothing(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	receiptWithStock(t, svc, 1, 1, 10)

	tr, err := svc.CreateTransfer(ctx, Transfer{FromWarehouseID: 1, ToWarehouseID: 2})
	require.NoError(t, err)
	_, err = svc.AddTransferItem(ctx, tr.ID, Item{ProductID: 1, Quantity: 50})
	require.NoError(t, err)

	_, err = svc.ValidateTransfer(ctx, tr.ID)
	var ise *shared.InsufficientStockError
	require.ErrorAs(t, err, &ise)

	require.Len(t, store.ledger, 1)
	require.InDelta(t, 10, store.quantity(1, 1), 1e-9)
	require.InDelta(t, 0, store.quantity(1, 2), 1e-9)
	got, err := svc.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)
}

func TestCancelDraft(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: 1})
	require.NoError(t, err)
	cancelled, err := svc.CancelReceipt(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Empty(t, store.ledger)

	_, err = svc.ValidateReceipt(ctx, r.ID)
	var ioe *shared.InvalidOperationError
	require.ErrorAs(t, err, &ioe)

	// Items cannot be attached to a cancelled document either.
	_, err = svc.AddReceiptItem(ctx, r.ID, Item{ProductID: 1, Quantity: 1})
	require.ErrorAs(t, err, &ioe)
}

func TestCancelDoneRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: 1})
	require.NoError(t, err)
	_, err = svc.AddReceiptItem(ctx, r.ID, Item{ProductID: 1, Quantity: 5})
	require.NoError(t, err)
	_, err = svc.ValidateReceipt(ctx, r.ID)
	require.NoError(t, err)

	_, err = svc.CancelReceipt(ctx, r.ID)
	var ioe *shared.InvalidOperationError
	require.ErrorAs(t, err, &ioe)
}

func TestAdjustmentCommitsOnCreate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	receiptWithStock(t, svc, 1, 1, 50)

	a, err := svc.CreateAdjustment(ctx, Adjustment{ProductID: 1, WarehouseID: 1, CountedQuantity: 42, Reason: "cycle count"})
	require.NoError(t, err)
	require.Equal(t, StatusDone, a.Status)
	require.InDelta(t, -8, a.Change, 1e-9)
	require.InDelta(t, 42, store.quantity(1, 1), 1e-9)

	last := store.ledger[len(store.ledger)-1]
	require.Equal(t, stock.SourceAdjustment, last.SourceType)
	require.Equal(t, a.ID, last.SourceID)
	require.InDelta(t, 42, last.Balance, 1e-9)
}

func TestAdjustmentZeroDeltaStillLogged(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	receiptWithStock(t, svc, 1, 1, 30)
	before := len(store.ledger)

	a, err := svc.CreateAdjustment(ctx, Adjustment{ProductID: 1, WarehouseID: 1, CountedQuantity: 30})
	require.NoError(t, err)
	require.InDelta(t, 0, a.Change, 1e-9)
	require.Len(t, store.ledger, before+1)
	require.InDelta(t, 0, store.ledger[len(store.ledger)-1].Change, 1e-9)
}

func TestAdjustmentRejectsNegativeCount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateAdjustment(context.Background(), Adjustment{ProductID: 1, WarehouseID: 1, CountedQuantity: -1})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestUnknownReferencesRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var re *shared.ReferentialError
	_, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: 99})
	require.ErrorAs(t, err, &re)
	require.Equal(t, "warehouse", re.Entity)

	r, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: 1})
	require.NoError(t, err)
	_, err = svc.AddReceiptItem(ctx, r.ID, Item{ProductID: 99, Quantity: 1})
	require.ErrorAs(t, err, &re)
	require.Equal(t, "product", re.Entity)
}

func TestListByStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	receiptWithStock(t, svc, 1, 1, 10)
	_, err := svc.CreateReceipt(ctx, Receipt{WarehouseID: 1})
	require.NoError(t, err)

	drafts, total, err := svc.ListReceipts(ctx, ListFilter{Status: StatusDraft})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, drafts, 1)

	done, total, err := svc.ListReceipts(ctx, ListFilter{Status: StatusDone})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, StatusDone, done[0].Status)
}
