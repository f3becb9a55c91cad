package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"figmist-store/internal/localstore"
	"figmist-store/internal/models"

	"github.com/shopspring/decimal"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

// fakeRepo is an in-memory product store that can be switched offline
type fakeRepo struct {
	mu       sync.Mutex
	products map[string]models.Product
	down     bool
	calls    map[string]int
}

func newFakeRepo(products ...models.Product) *fakeRepo {
	r := &fakeRepo{products: make(map[string]models.Product), calls: make(map[string]int)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeRepo) enter(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
	if r.down {
		return errConnRefused
	}
	return nil
}

func (r *fakeRepo) callCount(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *fakeRepo) sorted(keep func(models.Product) bool) []models.Product {
	out := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeRepo) ListProducts(_ context.Context, category string, offset, limit int) ([]models.Product, int, error) {
	if err := r.enter("list"); err != nil {
		return nil, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(func(p models.Product) bool { return category == "" || p.Category == category })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *fakeRepo) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	if err := r.enter("get"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &p, nil
}

func (r *fakeRepo) GetFeaturedProducts(_ context.Context) ([]models.Product, error) {
	if err := r.enter("featured"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(p models.Product) bool { return p.Featured }), nil
}

func (r *fakeRepo) CreateProduct(_ context.Context, p *models.Product) error {
	if err := r.enter("create"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.products[p.ID] = *p
	return nil
}

func (r *fakeRepo) UpdateProduct(_ context.Context, id string, p *models.Product) error {
	if err := r.enter("update"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.ID = id
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now()
	r.products[id] = *p
	return nil
}

func (r *fakeRepo) DeleteProduct(_ context.Context, id string) error {
	if err := r.enter("delete"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

func (r *fakeRepo) CountProducts(_ context.Context) (int, error) {
	if err := r.enter("count"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products), nil
}

func (r *fakeRepo) Ping(_ context.Context) error {
	return r.enter("ping")
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.ProductChangedEvent
}

func (p *fakePublisher) PublishProductChanged(_ context.Context, e *models.ProductChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type staticAuth struct{ err error }

func (a staticAuth) RequireAdmin(context.Context) error { return a.err }

var (
	asAdmin     = staticAuth{}
	asAnonymous = staticAuth{err: ErrUnauthorized}
)

func testProduct(id, category string, price int64, created time.Time) models.Product {
	return models.Product{
		ID:                 id,
		Name:               "Product " + id,
		Price:              decimal.NewFromInt(price),
		Category:           category,
		Images:             []string{"/img/" + id + ".jpg"},
		Image:              "/img/" + id + ".jpg",
		Sizes:              []string{},
		InStock:            true,
		DiscountPercentage: decimal.Zero,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func testCatalogConfig() CatalogConfig {
	return CatalogConfig{
		RetryAttempts:     3,
		RetryBaseDelay:    0,
		CacheMaxAge:       24 * time.Hour,
		PageSize:          6,
		FallbackKeep:      10,
		MaxImageBytes:     900 * 1024,
		MaxImageDimension: 600,
		JPEGQuality:       70,
	}
}

func newTestCatalog(repo *fakeRepo, storage localstore.Storage, pub ProductEventPublisher) *CatalogService {
	return NewCatalogService(repo, storage, pub, testCatalogConfig())
}
