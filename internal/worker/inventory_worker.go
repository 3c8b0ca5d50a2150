package worker

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/observability/metrics"
)

// InventoryWorker periodically refreshes the unused-key gauges and warns when
// a product's key pool runs low. It never touches the redemption path; the
// request-handling core stays worker-free.
type InventoryWorker struct {
	keys              domain.KeyRepository
	logger            *slog.Logger
	interval          time.Duration
	lowStockThreshold int64
}

// NewInventoryWorker creates a new inventory worker
func NewInventoryWorker(
	keys domain.KeyRepository,
	logger *slog.Logger,
	interval time.Duration,
	lowStockThreshold int64,
) *InventoryWorker {
	return &InventoryWorker{
		keys:              keys,
		logger:            logger,
		interval:          interval,
		lowStockThreshold: lowStockThreshold,
	}
}

// Start runs the refresh loop until the context is cancelled
func (w *InventoryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("inventory worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inventory worker stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *InventoryWorker) refresh(ctx context.Context) {
	counts, err := w.keys.CountUnused(ctx)
	if err != nil {
		w.logger.Error("failed to count unused keys", slog.String("error", err.Error()))
		return
	}

	for productID, count := range counts {
		metrics.SetUnusedKeys(strconv.FormatInt(productID, 10), count)

		if count <= w.lowStockThreshold {
			w.logger.Warn("product key pool running low",
				slog.Int64("product_id", productID),
				slog.Int64("unused_keys", count),
			)
		}
	}
}
