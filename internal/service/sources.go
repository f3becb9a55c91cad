package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"figmist-store/internal/localstore"
	"figmist-store/internal/models"
	"figmist-store/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// errSourceMiss means a source had nothing usable for the query
var errSourceMiss = errors.New("source miss")

// PageQuery identifies one page of a listing. An empty Category lists everything.
type PageQuery struct {
	Category string
	Page     int
	Limit    int
}

func (q PageQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

// ProductSource is one strategy of the read pipeline
type ProductSource interface {
	Name() Source
	FetchPage(ctx context.Context, q PageQuery) ([]models.Product, models.Pagination, error)
}

// remoteSource queries the remote store with retries. Concurrent identical
// page queries share one round of attempts, run on a context detached from
// any single caller so one disconnect cannot fail the others.
type remoteSource struct {
	repo    ProductRepository
	retrier *Retrier
	group   singleflight.Group
}

type remotePage struct {
	products []models.Product
	total    int
}

func newRemoteSource(repo ProductRepository, retrier *Retrier) *remoteSource {
	return &remoteSource{repo: repo, retrier: retrier}
}

func (s *remoteSource) Name() Source { return SourceDatabase }

func (s *remoteSource) FetchPage(ctx context.Context, q PageQuery) ([]models.Product, models.Pagination, error) {
	key := fmt.Sprintf("%s:%d:%d", q.Category, q.Page, q.Limit)
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		var page remotePage
		start := time.Now()
		err := s.retrier.Do(shared, func(ctx context.Context) error {
			products, total, err := s.repo.ListProducts(ctx, q.Category, q.offset(), q.Limit)
			if err != nil {
				return err
			}
			page = remotePage{products: products, total: total}
			return nil
		})
		util.RemoteQueryLatency.WithLabelValues("list").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return page, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, models.Pagination{}, fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
	}
	if res.Err != nil {
		return nil, models.Pagination{}, res.Err
	}

	page := res.Val.(remotePage)
	return page.products, models.NewPagination(q.Page, q.Limit, page.total), nil
}

// pageCacheSource serves snapshots written back after successful remote
// listings. Only the unfiltered listing is cached.
type pageCacheSource struct {
	storage localstore.Storage
	maxAge  time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func (s *pageCacheSource) Name() Source { return SourceCache }

func (s *pageCacheSource) FetchPage(ctx context.Context, q PageQuery) ([]models.Product, models.Pagination, error) {
	if q.Category != "" {
		return nil, models.Pagination{}, errSourceMiss
	}

	var cached models.CachedPage
	found, err := localstore.GetJSON(ctx, s.storage, localstore.PageKey(q.Page), &cached)
	if err != nil {
		s.logger.Error("Failed to read cached page", zap.Int("page", q.Page), zap.Error(err))
		return nil, models.Pagination{}, errSourceMiss
	}
	if !found || len(cached.Products) == 0 {
		return nil, models.Pagination{}, errSourceMiss
	}
	if age := cached.Age(s.now()); age >= s.maxAge {
		s.logger.Info("Ignoring stale cached page", zap.Int("page", q.Page), zap.Duration("age", age))
		return nil, models.Pagination{}, errSourceMiss
	}

	return cached.Products, cached.Pagination(), nil
}

// fallbackSource filters and paginates the local fallback collection
type fallbackSource struct {
	collection *fallbackCollection
}

func (s *fallbackSource) Name() Source { return SourceFallback }

func (s *fallbackSource) FetchPage(ctx context.Context, q PageQuery) ([]models.Product, models.Pagination, error) {
	all, err := s.collection.Load(ctx)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	filtered := all
	if q.Category != "" {
		filtered = make([]models.Product, 0, len(all))
		for _, p := range all {
			if p.Category == q.Category {
				filtered = append(filtered, p)
			}
		}
	}

	// a negative offset means the page arithmetic overflowed
	start := q.offset()
	if start < 0 || start > len(filtered) {
		start = len(filtered)
	}
	end := len(filtered)
	if q.Limit >= 0 && q.Limit < end-start {
		end = start + q.Limit
	}
	return filtered[start:end], models.NewPagination(q.Page, q.Limit, len(filtered)), nil
}

// pipeline tries each source in order; the first success wins
type pipeline struct {
	sources []ProductSource
	logger  *zap.Logger
}

func (p *pipeline) FetchPage(ctx context.Context, q PageQuery) *ProductPage {
	var lastErr error
	for i, src := range p.sources {
		products, pagination, err := src.FetchPage(ctx, q)
		if err == nil {
			p.logger.Info("Listing served",
				zap.String("source", string(src.Name())),
				zap.String("category", q.Category),
				zap.Int("page", q.Page),
				zap.Int("count", len(products)))
			result := &ProductPage{
				Outcome:    OutcomeOK,
				Products:   products,
				Pagination: pagination,
				Source:     src.Name(),
			}
			if i > 0 {
				result.Warning = warnDatabaseUnavailable
			}
			return result
		}
		if !errors.Is(err, errSourceMiss) {
			lastErr = err
			p.logger.Warn("Product source failed",
				zap.String("source", string(src.Name())),
				zap.Int("page", q.Page),
				zap.Error(err))
		}
	}

	if lastErr == nil {
		lastErr = ErrTransport
	}
	return &ProductPage{
		Outcome:    OutcomeUnavailable,
		Products:   []models.Product{},
		Pagination: models.NewPagination(q.Page, q.Limit, 0),
		Source:     SourceNone,
		Err:        fmt.Errorf("unable to load products from database or cache: %w", lastErr),
	}
}
