package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"figmist-store/internal/localstore"
	"figmist-store/internal/models"
	"figmist-store/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fallbackCollection is the locally persisted product list used while the
// remote store is unreachable. Newest products come first.
type fallbackCollection struct {
	storage localstore.Storage
	keep    int
	logger  *zap.Logger
}

func (f *fallbackCollection) Load(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	found, err := localstore.GetJSON(ctx, f.storage, localstore.KeyProducts, &products)
	if err != nil {
		return nil, err
	}
	if !found || products == nil {
		return []models.Product{}, nil
	}
	for i := range products {
		products[i].NormalizeImages()
		if products[i].Sizes == nil {
			products[i].Sizes = []string{}
		}
	}
	return products, nil
}

func (f *fallbackCollection) Save(ctx context.Context, products []models.Product) error {
	return localstore.SetJSON(ctx, f.storage, localstore.KeyProducts, products)
}

// Find returns the product with the given id or ErrNotFound
func (f *fallbackCollection) Find(ctx context.Context, id string) (*models.Product, error) {
	products, err := f.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Mutate applies fn to the stored collection and saves the result. When the
// write does not fit, the collection is truncated to the most recent entries
// and the mutation is applied once more.
func (f *fallbackCollection) Mutate(ctx context.Context, fn func([]models.Product) ([]models.Product, error)) error {
	err := f.mutateOnce(ctx, fn)
	if !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	f.logger.Warn("Local storage quota exceeded, cleaning up fallback collection", zap.Int("keep", f.keep))
	f.cleanup(ctx)

	if err := f.mutateOnce(ctx, fn); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return fmt.Errorf("%w: please delete some products first", ErrQuotaExceeded)
		}
		return err
	}
	return nil
}

func (f *fallbackCollection) mutateOnce(ctx context.Context, fn func([]models.Product) ([]models.Product, error)) error {
	products, err := f.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(products)
	if err != nil {
		return err
	}
	return f.Save(ctx, next)
}

// cleanup keeps the most recent products. If even that write fails the
// cached listing pages are dropped to free space.
func (f *fallbackCollection) cleanup(ctx context.Context) {
	util.LocalStorageCleanupsTotal.Inc()

	products, err := f.Load(ctx)
	if err == nil && len(products) <= f.keep {
		return
	}
	if err == nil {
		if err = f.Save(ctx, products[:f.keep]); err == nil {
			f.logger.Warn("Cleaned up local storage", zap.Int("kept_products", f.keep))
			return
		}
	}

	f.logger.Error("Fallback cleanup failed, dropping cached pages", zap.Error(err))
	if _, err := dropPageCache(ctx, f.storage); err != nil {
		f.logger.Error("Failed to drop cached pages", zap.Error(err))
	}
}

// Seed stores the starter product when no fallback collection exists yet
func (f *fallbackCollection) Seed(ctx context.Context, now time.Time) error {
	_, found, err := f.storage.Get(ctx, localstore.KeyProducts)
	if err != nil || found {
		return err
	}
	return f.Save(ctx, []models.Product{defaultProduct(now)})
}

func defaultProduct(now time.Time) models.Product {
	return models.Product{
		ID:                 "1",
		Name:               "Naruto T-Shirt",
		Price:              decimal.NewFromInt(2499),
		Category:           models.CategoryClothing,
		Description:        "Premium cotton t-shirt featuring Naruto characters.",
		Image:              "/549e0e7ad7e492ba4766f0bbdfe5e0c8.jpg",
		Images:             []string{"/549e0e7ad7e492ba4766f0bbdfe5e0c8.jpg"},
		Sizes:              []string{"S", "M", "L", "XL", "XXL"},
		InStock:            true,
		DiscountPercentage: decimal.Zero,
		Details:            "Made with high-quality cotton for maximum comfort.",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// dropPageCache removes every cached listing page and returns how many were removed
func dropPageCache(ctx context.Context, s localstore.Storage) (int, error) {
	keys, err := s.Keys(ctx, localstore.KeyPagePrefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, localstore.KeyPagePrefix) {
			continue
		}
		if err := s.Remove(ctx, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
