package jobs

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockroom-erp/stockroom/internal/observability"
	"github.com/stockroom-erp/stockroom/internal/shared"
	"github.com/stockroom-erp/stockroom/internal/stock"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes the ledger fold and compares it to the
	// projection.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskLowStockScan audit-logs products at or below their threshold.
	TaskLowStockScan = "stock:lowscan"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

const idempotencyRetention = 7 * 24 * time.Hour

// Tasks bundles the dependencies the maintenance handlers need.
type Tasks struct {
	logger  *slog.Logger
	stock   *stock.Repository
	idem    *shared.IdempotencyStore
	audit   *shared.AuditLogger
	metrics *observability.Metrics
}

// NewTasks constructs the handler set.
func NewTasks(logger *slog.Logger, stockRepo *stock.Repository, idem *shared.IdempotencyStore, audit *shared.AuditLogger, metrics *observability.Metrics) *Tasks {
	return &Tasks{logger: logger, stock: stockRepo, idem: idem, audit: audit, metrics: metrics}
}

// Handlers returns the asynq registrations for all maintenance tasks.
func (t *Tasks) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLedgerIntegrity, Handler: t.HandleLedgerIntegrity},
		{Type: TaskLowStockScan, Handler: t.HandleLowStockScan},
		{Type: TaskIdempotencyCleanup, Handler: t.HandleIdempotencyCleanup},
	}
}

// CronEntries returns the default schedule for the maintenance tasks.
func CronEntries() []CronRegistration {
	return []CronRegistration{
		{Spec: "*/30 * * * *", Task: asynq.NewTask(TaskLedgerIntegrity, nil)},
		{Spec: "0 * * * *", Task: asynq.NewTask(TaskLowStockScan, nil)},
		{Spec: "15 3 * * *", Task: asynq.NewTask(TaskIdempotencyCleanup, nil)},
	}
}

// HandleLedgerIntegrity folds every ledger change per (product, warehouse)
// pair and reports projections that drifted from the fold.
func (t *Tasks) HandleLedgerIntegrity(ctx context.Context, _ *asynq.Task) error {
	sums, err := t.stock.SumChanges(ctx)
	if err != nil {
		t.metrics.RecordJob(TaskLedgerIntegrity, "error")
		return err
	}
	lines, err := t.stock.AllLines(ctx)
	if err != nil {
		t.metrics.RecordJob(TaskLedgerIntegrity, "error")
		return err
	}

	drift := 0
	seen := make(map[[2]int64]bool, len(lines))
	for _, line := range lines {
		pair := [2]int64{line.ProductID, line.WarehouseID}
		seen[pair] = true
		if math.Abs(sums[pair]-line.Quantity) > 1e-6 {
			drift++
			t.logger.Error("ledger drift",
				slog.Int64("product_id", line.ProductID),
				slog.Int64("warehouse_id", line.WarehouseID),
				slog.Float64("projection", line.Quantity),
				slog.Float64("ledger_sum", sums[pair]))
		}
	}
	for pair, sum := range sums {
		if !seen[pair] && math.Abs(sum) > 1e-6 {
			drift++
			t.logger.Error("ledger drift without projection row",
				slog.Int64("product_id", pair[0]),
				slog.Int64("warehouse_id", pair[1]),
				slog.Float64("ledger_sum", sum))
		}
	}

	if drift > 0 {
		t.metrics.RecordJob(TaskLedgerIntegrity, "drift")
		return nil
	}
	t.logger.Info("ledger integrity check passed", slog.Int("pairs", len(sums)))
	t.metrics.RecordJob(TaskLedgerIntegrity, "ok")
	return nil
}

// HandleLowStockScan records an audit entry for every line at or below
// its product threshold.
func (t *Tasks) HandleLowStockScan(ctx context.Context, _ *asynq.Task) error {
	lines, err := t.stock.LowStock(ctx)
	if err != nil {
		t.metrics.RecordJob(TaskLowStockScan, "error")
		return err
	}
	for _, line := range lines {
		err := t.audit.Record(ctx, shared.AuditLog{
			Action:   "stock.low",
			Entity:   "stock_line",
			EntityID: strconv.FormatInt(line.ProductID, 10) + ":" + strconv.FormatInt(line.WarehouseID, 10),
			Meta: map[string]any{
				"sku":       line.SKU,
				"quantity":  line.Quantity,
				"threshold": line.Threshold,
			},
		})
		if err != nil {
			t.metrics.RecordJob(TaskLowStockScan, "error")
			return err
		}
	}
	t.logger.Info("low stock scan", slog.Int("flagged", len(lines)))
	t.metrics.RecordJob(TaskLowStockScan, "ok")
	return nil
}

// HandleIdempotencyCleanup prunes keys past retention.
func (t *Tasks) HandleIdempotencyCleanup(ctx context.Context, _ *asynq.Task) error {
	if err := t.idem.Cleanup(ctx, idempotencyRetention); err != nil {
		t.metrics.RecordJob(TaskIdempotencyCleanup, "error")
		return err
	}
	t.metrics.RecordJob(TaskIdempotencyCleanup, "ok")
	return nil
}
