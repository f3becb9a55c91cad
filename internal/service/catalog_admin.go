package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"figmist-store/internal/imaging"
	"figmist-store/internal/localstore"
	"figmist-store/internal/models"
	"figmist-store/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	warnSavedLocally = "Database unavailable - change saved locally"
	probeKey         = "figmist_products_test"
)

// AddProduct creates a product. When the remote store rejects the write the
// product is prepended to the local fallback collection instead.
func (s *CatalogService) AddProduct(ctx context.Context, auth Authorizer, in *models.ProductInput) *MutationResult {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddProduct")
	defer span.End()

	if err := auth.RequireAdmin(ctx); err != nil {
		return s.mutationFailed("add", OutcomeRejected, err)
	}
	if err := validateInput(in); err != nil {
		return s.mutationFailed("add", OutcomeValidationFailed, err)
	}

	var p models.Product
	in.Apply(&p)
	p.ID = uuid.New().String()

	err := s.repo.CreateProduct(ctx, &p)
	if err == nil {
		return s.mutationDone(ctx, "add", models.EventTypeProductCreated, &p, SourceDatabase)
	}
	s.logger.Warn("Database error, falling back to local storage", zap.Error(err))

	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	err = s.fallback.Mutate(ctx, func(products []models.Product) ([]models.Product, error) {
		return append([]models.Product{p}, products...), nil
	})
	if err != nil {
		return s.mutationFailed("add", OutcomeOf(err), err)
	}
	return s.mutationDone(ctx, "add", models.EventTypeProductCreated, &p, SourceFallback)
}

// UpdateProduct overwrites a product. Products unknown to the remote store
// are looked up in the fallback collection.
func (s *CatalogService) UpdateProduct(ctx context.Context, auth Authorizer, id string, in *models.ProductInput) *MutationResult {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if err := auth.RequireAdmin(ctx); err != nil {
		return s.mutationFailed("update", OutcomeRejected, err)
	}
	if err := validateInput(in); err != nil {
		return s.mutationFailed("update", OutcomeValidationFailed, err)
	}

	var p models.Product
	in.Apply(&p)

	err := s.repo.UpdateProduct(ctx, id, &p)
	if err == nil {
		return s.mutationDone(ctx, "update", models.EventTypeProductUpdated, &p, SourceDatabase)
	}
	s.logger.Warn("Database error, falling back to local storage", zap.String("id", id), zap.Error(err))

	err = s.fallback.Mutate(ctx, func(products []models.Product) ([]models.Product, error) {
		for i := range products {
			if products[i].ID != id {
				continue
			}
			p.ID = id
			p.CreatedAt = products[i].CreatedAt
			p.UpdatedAt = s.now()
			products[i] = p
			return products, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
	if err != nil {
		return s.mutationFailed("update", OutcomeOf(err), err)
	}
	return s.mutationDone(ctx, "update", models.EventTypeProductUpdated, &p, SourceFallback)
}

// DeleteProduct removes a product from the remote store, or from the
// fallback collection when the remote store is unreachable.
func (s *CatalogService) DeleteProduct(ctx context.Context, auth Authorizer, id string) *MutationResult {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if err := auth.RequireAdmin(ctx); err != nil {
		return s.mutationFailed("delete", OutcomeRejected, err)
	}

	deleted := models.Product{ID: id}
	err := s.repo.DeleteProduct(ctx, id)
	if err == nil {
		return s.mutationDone(ctx, "delete", models.EventTypeProductDeleted, &deleted, SourceDatabase)
	}
	s.logger.Warn("Database error, falling back to local storage", zap.String("id", id), zap.Error(err))

	err = s.fallback.Mutate(ctx, func(products []models.Product) ([]models.Product, error) {
		kept := make([]models.Product, 0, len(products))
		for _, p := range products {
			if p.ID == id {
				deleted = p
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == len(products) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return kept, nil
	})
	if err != nil {
		return s.mutationFailed("delete", OutcomeOf(err), err)
	}
	return s.mutationDone(ctx, "delete", models.EventTypeProductDeleted, &deleted, SourceFallback)
}

func validateInput(in *models.ProductInput) error {
	if in == nil {
		return fmt.Errorf("%w: missing product", ErrValidation)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return nil
}

func (s *CatalogService) mutationFailed(op string, outcome Outcome, err error) *MutationResult {
	util.ProductMutationsTotal.WithLabelValues(op, outcome.String()).Inc()
	s.logger.Warn("Product mutation failed",
		zap.String("operation", op),
		zap.String("outcome", outcome.String()),
		zap.Error(err))
	return &MutationResult{Outcome: outcome, Source: SourceNone, Err: err}
}

func (s *CatalogService) mutationDone(ctx context.Context, op, eventType string, p *models.Product, source Source) *MutationResult {
	util.ProductMutationsTotal.WithLabelValues(op, OutcomeOK.String()).Inc()
	s.logger.Info("Product mutation applied",
		zap.String("operation", op),
		zap.String("id", p.ID),
		zap.String("source", string(source)))

	s.announce(ctx, eventType, p, source)

	result := &MutationResult{Outcome: OutcomeOK, ID: p.ID, Source: source}
	if source == SourceFallback {
		result.Warning = warnSavedLocally
	}
	return result
}

// announce publishes the change, or drops cached pages directly when no
// publisher is configured. Cached pages survive local-only writes.
func (s *CatalogService) announce(ctx context.Context, eventType string, p *models.Product, source Source) {
	if s.publisher == nil {
		if source != SourceDatabase {
			return
		}
		if _, err := s.InvalidatePageCache(ctx); err != nil {
			s.logger.Warn("Failed to invalidate cached pages", zap.Error(err))
		}
		return
	}

	event := &models.ProductChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		ProductID: p.ID,
		Category:  p.Category,
		Featured:  p.Featured,
		Source:    string(source),
	}
	if err := s.publisher.PublishProductChanged(ctx, event); err != nil {
		s.logger.Warn("Failed to publish product event",
			zap.String("event_type", eventType),
			zap.String("id", p.ID),
			zap.Error(err))
	}
}

// InvalidatePageCache drops every cached listing page
func (s *CatalogService) InvalidatePageCache(ctx context.Context) (int, error) {
	removed, err := dropPageCache(ctx, s.storage)
	if err == nil && removed > 0 {
		s.logger.Info("Cached pages invalidated", zap.Int("removed", removed))
	}
	return removed, err
}

// UploadProductImage shrinks an uploaded image into an inline JPEG data URI
func (s *CatalogService) UploadProductImage(ctx context.Context, auth Authorizer, data []byte, productID string) *UploadResult {
	ctx, span := util.StartSpan(ctx, "CatalogService.UploadProductImage")
	defer span.End()

	if err := auth.RequireAdmin(ctx); err != nil {
		util.ImageUploadsTotal.WithLabelValues("rejected").Inc()
		return &UploadResult{Outcome: OutcomeRejected, Err: err}
	}

	if err := s.CheckImageSize(int64(len(data))); err != nil {
		return &UploadResult{Outcome: OutcomeValidationFailed, Err: err}
	}

	res, err := imaging.Compress(data, imaging.Options{
		MaxDimension: s.cfg.MaxImageDimension,
		Quality:      s.cfg.JPEGQuality,
		MaxPixels:    s.cfg.MaxImagePixels,
	})
	if err != nil {
		util.ImageUploadsTotal.WithLabelValues("invalid").Inc()
		return &UploadResult{Outcome: OutcomeValidationFailed, Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}

	if err := s.probeCapacity(ctx, res.DataURI); err != nil {
		util.ImageUploadsTotal.WithLabelValues("quota").Inc()
		return &UploadResult{Outcome: OutcomeOf(err), Err: err}
	}

	util.ImageUploadsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Product image compressed",
		zap.String("product_id", productID),
		zap.Int("original_bytes", len(data)),
		zap.Int("compressed_bytes", res.Bytes),
		zap.Int("width", res.Width),
		zap.Int("height", res.Height))
	return &UploadResult{Outcome: OutcomeOK, URL: res.DataURI, Bytes: res.Bytes}
}

// MaxImageBytes is the largest accepted upload, or 0 when unlimited
func (s *CatalogService) MaxImageBytes() int {
	return s.cfg.MaxImageBytes
}

// CheckImageSize rejects uploads over the configured byte limit
func (s *CatalogService) CheckImageSize(size int64) error {
	limit := int64(s.cfg.MaxImageBytes)
	if limit <= 0 || size <= limit {
		return nil
	}
	util.ImageUploadsTotal.WithLabelValues("too_large").Inc()
	return fmt.Errorf("%w (%.2fMB). Please use an image smaller than %dKB",
		ErrImageTooLarge, float64(size)/1024/1024, limit/1024)
}

// probeCapacity checks that the fallback collection could still grow by the
// image without exceeding the local storage quota
func (s *CatalogService) probeCapacity(ctx context.Context, dataURI string) error {
	current, _, err := s.storage.Get(ctx, localstore.KeyProducts)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, probeKey, current+dataURI); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return fmt.Errorf("%w: please delete some products or use smaller images", ErrQuotaExceeded)
		}
		return err
	}
	return s.storage.Remove(ctx, probeKey)
}

// DiagnoseConnection pings the remote store and reports latency and size
func (s *CatalogService) DiagnoseConnection(ctx context.Context) *Diagnostics {
	ctx, span := util.StartSpan(ctx, "CatalogService.DiagnoseConnection")
	defer span.End()

	d := &Diagnostics{Timestamp: s.now(), Status: "success"}
	if local, err := s.fallback.Load(ctx); err == nil {
		d.FallbackProducts = len(local)
	}

	start := time.Now()
	err := s.repo.Ping(ctx)
	if err == nil {
		d.Count, err = s.repo.CountProducts(ctx)
	}
	d.ResponseTime = time.Since(start)

	if err != nil {
		d.Status = "failed"
		d.Error = err.Error()
		s.logger.Warn("Connection diagnostics failed", zap.Error(err))
		return d
	}
	s.logger.Info("Connection diagnostics completed",
		zap.Duration("response_time", d.ResponseTime),
		zap.Int("count", d.Count))
	return d
}
