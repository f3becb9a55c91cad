package worker

import (
	"context"

	"figmist-store/internal/broker"
	"figmist-store/internal/models"
	"figmist-store/internal/util"

	"go.uber.org/zap"
)

// PageCacheInvalidator drops cached listing pages
type PageCacheInvalidator interface {
	InvalidatePageCache(ctx context.Context) (int, error)
}

// ProductEventWorker keeps cached listing pages in step with catalog writes
type ProductEventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        PageCacheInvalidator
	logger       *zap.Logger
}

// NewProductEventWorker creates a new product event worker
func NewProductEventWorker(consumer *broker.Consumer, cache PageCacheInvalidator) *ProductEventWorker {
	w := &ProductEventWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		cache:        cache,
		logger:       util.ComponentLogger("worker"),
	}
	w.eventHandler.OnProductChanged(w.HandleProductChanged)
	return w
}

// HandleProductChanged invalidates every cached page; a single product
// change can shift the contents of all later pages. Changes saved only
// locally leave the pages alone since they are the listing's last copy
// while the remote store is down.
func (w *ProductEventWorker) HandleProductChanged(ctx context.Context, event *models.ProductChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "ProductEventWorker.HandleProductChanged")
	defer span.End()

	if !event.ChangedRemotely() {
		w.logger.Info("Product changed locally, keeping cached pages",
			zap.String("event_type", event.EventType),
			zap.String("product_id", event.ProductID))
		return nil
	}

	removed, err := w.cache.InvalidatePageCache(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("Product changed",
		zap.String("event_type", event.EventType),
		zap.String("product_id", event.ProductID),
		zap.String("source", event.Source),
		zap.Int("pages_invalidated", removed))
	return nil
}

// Start starts the worker
func (w *ProductEventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting product event worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ProductEventWorker) Stop() error {
	w.logger.Info("Stopping product event worker")
	return w.consumer.Close()
}
