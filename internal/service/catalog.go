package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"figmist-store/internal/localstore"
	"figmist-store/internal/models"
	"figmist-store/internal/util"

	"go.uber.org/zap"
)

// maxPageLimit caps the number of products returned by one listing page
const maxPageLimit = 100

// ProductRepository is the remote product store
type ProductRepository interface {
	ListProducts(ctx context.Context, category string, offset, limit int) ([]models.Product, int, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetFeaturedProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, id string, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	CountProducts(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// ProductEventPublisher announces catalog changes
type ProductEventPublisher interface {
	PublishProductChanged(ctx context.Context, event *models.ProductChangedEvent) error
}

// CatalogConfig tunes the data-access layer
type CatalogConfig struct {
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	CacheMaxAge       time.Duration
	PageSize          int
	FallbackKeep      int
	MaxImageBytes     int
	MaxImageDimension int
	MaxImagePixels    int
	JPEGQuality       int
}

// CatalogService mediates product reads and admin writes between the remote
// store and the local fallback copies.
type CatalogService struct {
	repo      ProductRepository
	storage   localstore.Storage
	publisher ProductEventPublisher
	cfg       CatalogConfig
	retrier   *Retrier
	remote    *remoteSource
	fallback  *fallbackCollection
	listAll   *pipeline
	listByCat *pipeline
	now       func() time.Time
	logger    *zap.Logger
}

// NewCatalogService creates a catalog service. publisher may be nil, in
// which case cached pages are invalidated inline after writes.
func NewCatalogService(
	repo ProductRepository,
	storage localstore.Storage,
	publisher ProductEventPublisher,
	cfg CatalogConfig,
) *CatalogService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 6
	}
	if cfg.FallbackKeep <= 0 {
		cfg.FallbackKeep = 10
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = 24 * time.Hour
	}

	logger := util.ComponentLogger("catalog")
	s := &CatalogService{
		repo:      repo,
		storage:   storage,
		publisher: publisher,
		cfg:       cfg,
		retrier:   NewRetrier(cfg.RetryAttempts, cfg.RetryBaseDelay),
		now:       time.Now,
		logger:    logger,
	}
	s.remote = newRemoteSource(repo, s.retrier)
	s.fallback = &fallbackCollection{storage: storage, keep: cfg.FallbackKeep, logger: logger}
	s.listAll = &pipeline{
		sources: []ProductSource{
			s.remote,
			&pageCacheSource{storage: storage, maxAge: cfg.CacheMaxAge, now: s.clock, logger: logger},
		},
		logger: logger,
	}
	s.listByCat = &pipeline{
		sources: []ProductSource{s.remote, &fallbackSource{collection: s.fallback}},
		logger:  logger,
	}
	return s
}

func (s *CatalogService) clock() time.Time { return s.now() }

// SeedFallback stores the starter product when the fallback collection is empty
func (s *CatalogService) SeedFallback(ctx context.Context) error {
	return s.fallback.Seed(ctx, s.now())
}

func (s *CatalogService) pageQuery(category string, page, limit int) PageQuery {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.cfg.PageSize
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if maxPage := math.MaxInt32 / limit; page > maxPage {
		page = maxPage
	}
	return PageQuery{Category: strings.TrimSpace(category), Page: page, Limit: limit}
}

// GetAllProducts lists every product, newest first. When the remote store
// is unreachable a cached copy of the page younger than the cache age is
// served instead.
func (s *CatalogService) GetAllProducts(ctx context.Context, page, limit int) *ProductPage {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetAllProducts")
	defer span.End()

	q := s.pageQuery("", page, limit)
	result := s.listAll.FetchPage(ctx, q)
	util.CatalogReadsTotal.WithLabelValues("list", string(result.Source)).Inc()

	if result.Source == SourceDatabase {
		s.writePageCache(ctx, q, result)
	}
	return result
}

// GetProductsByCategory lists one category, newest first, falling back to
// the local product collection.
func (s *CatalogService) GetProductsByCategory(ctx context.Context, category string, page, limit int) *ProductPage {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProductsByCategory")
	defer span.End()

	q := s.pageQuery(category, page, limit)
	if q.Category == "" {
		return s.GetAllProducts(ctx, q.Page, q.Limit)
	}

	result := s.listByCat.FetchPage(ctx, q)
	util.CatalogReadsTotal.WithLabelValues("category", string(result.Source)).Inc()
	return result
}

func (s *CatalogService) writePageCache(ctx context.Context, q PageQuery, page *ProductPage) {
	cached := models.CachedPage{
		Products:      page.Products,
		Timestamp:     s.now().UnixMilli(),
		Page:          q.Page,
		Limit:         q.Limit,
		TotalProducts: page.Pagination.TotalProducts,
		TotalPages:    page.Pagination.TotalPages,
	}
	if err := localstore.SetJSON(ctx, s.storage, localstore.PageKey(q.Page), cached); err != nil {
		util.PageCacheWriteFailures.Inc()
		s.logger.Warn("Could not cache products page", zap.Int("page", q.Page), zap.Error(err))
	}
}

// GetProductByID fetches one product. A product missing remotely may still
// exist in the fallback collection.
func (s *CatalogService) GetProductByID(ctx context.Context, id string) *ProductResult {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProductByID")
	defer span.End()

	var product *models.Product
	start := time.Now()
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetProductByID(ctx, id)
		product = p
		return err
	})
	util.RemoteQueryLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())

	if err == nil {
		util.CatalogReadsTotal.WithLabelValues("get", string(SourceDatabase)).Inc()
		return &ProductResult{Outcome: OutcomeOK, Product: product, Source: SourceDatabase}
	}

	remoteMissing := errors.Is(err, ErrNotFound)
	if !remoteMissing {
		s.logger.Warn("Database error, falling back to local products", zap.String("id", id), zap.Error(err))
	}

	local, lerr := s.fallback.Find(ctx, id)
	if lerr == nil {
		util.CatalogReadsTotal.WithLabelValues("get", string(SourceFallback)).Inc()
		return &ProductResult{Outcome: OutcomeOK, Product: local, Source: SourceFallback}
	}

	util.CatalogReadsTotal.WithLabelValues("get", string(SourceNone)).Inc()
	if remoteMissing {
		return &ProductResult{Outcome: OutcomeNotFound, Source: SourceNone, Err: err}
	}
	return &ProductResult{
		Outcome: OutcomeUnavailable,
		Source:  SourceNone,
		Err:     fmt.Errorf("%w: %v", ErrTransport, err),
	}
}

// GetFeaturedProducts lists featured products, newest first, unpaginated
func (s *CatalogService) GetFeaturedProducts(ctx context.Context) *ProductList {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetFeaturedProducts")
	defer span.End()

	var products []models.Product
	start := time.Now()
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetFeaturedProducts(ctx)
		products = p
		return err
	})
	util.RemoteQueryLatency.WithLabelValues("featured").Observe(time.Since(start).Seconds())

	if err == nil {
		util.CatalogReadsTotal.WithLabelValues("featured", string(SourceDatabase)).Inc()
		return &ProductList{Outcome: OutcomeOK, Products: products, Source: SourceDatabase}
	}

	s.logger.Warn("Database error, falling back to local products", zap.Error(err))
	all, lerr := s.fallback.Load(ctx)
	if lerr != nil {
		util.CatalogReadsTotal.WithLabelValues("featured", string(SourceNone)).Inc()
		return &ProductList{
			Outcome:  OutcomeUnavailable,
			Products: []models.Product{},
			Source:   SourceNone,
			Err:      fmt.Errorf("%w: %v", ErrTransport, err),
		}
	}

	featured := make([]models.Product, 0, len(all))
	for _, p := range all {
		if p.Featured {
			featured = append(featured, p)
		}
	}
	util.CatalogReadsTotal.WithLabelValues("featured", string(SourceFallback)).Inc()
	return &ProductList{
		Outcome:  OutcomeOK,
		Products: featured,
		Source:   SourceFallback,
		Warning:  warnDatabaseUnavailable,
	}
}
