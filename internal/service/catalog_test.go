package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"
	"testing"
	"time"

	"figmist-store/internal/localstore"
	"figmist-store/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedRepo(n int) *fakeRepo {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	products := make([]models.Product, 0, n)
	for i := 1; i <= n; i++ {
		category := models.CategoryFigures
		if i%2 == 0 {
			category = models.CategoryClothing
		}
		products = append(products, testProduct(fmt.Sprintf("p%02d", i), category, int64(100*i), base.Add(time.Duration(i)*time.Hour)))
	}
	return newFakeRepo(products...)
}

func TestGetAllProducts_FromDatabase(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemoryStorage(0)
	svc := newTestCatalog(seedRepo(8), storage, nil)

	res := svc.GetAllProducts(ctx, 2, 6)

	require.True(t, res.Success())
	assert.Equal(t, SourceDatabase, res.Source)
	assert.Empty(t, res.Warning)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "p02", res.Products[0].ID)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 6, TotalProducts: 8, TotalPages: 2, HasMore: false}, res.Pagination)

	var cached models.CachedPage
	found, err := localstore.GetJSON(ctx, storage, localstore.PageKey(2), &cached)
	require.NoError(t, err)
	require.True(t, found, "page should be written back to the cache")
	assert.Len(t, cached.Products, 2)
	assert.Equal(t, 8, cached.TotalProducts)
}

func TestGetAllProducts_DefaultsPaging(t *testing.T) {
	svc := newTestCatalog(seedRepo(8), localstore.NewMemoryStorage(0), nil)

	res := svc.GetAllProducts(context.Background(), 0, 0)

	require.True(t, res.Success())
	assert.Len(t, res.Products, 6)
	assert.Equal(t, 1, res.Pagination.Page)
	assert.True(t, res.Pagination.HasMore)
}

func TestGetAllProducts_FallsBackToFreshCache(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemoryStorage(0)
	repo := seedRepo(3)
	svc := newTestCatalog(repo, storage, nil)

	require.True(t, svc.GetAllProducts(ctx, 1, 6).Success())

	repo.down = true
	res := svc.GetAllProducts(ctx, 1, 6)

	require.True(t, res.Success())
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, warnDatabaseUnavailable, res.Warning)
	assert.Len(t, res.Products, 3)
	assert.Equal(t, 4, repo.callCount("list"), "one successful call plus three attempts")
}

func TestGetAllProducts_IgnoresStaleCache(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemoryStorage(0)
	repo := seedRepo(3)
	repo.down = true
	svc := newTestCatalog(repo, storage, nil)

	stale := models.CachedPage{
		Products:  []models.Product{testProduct("old", models.CategoryPosters, 10, time.Now())},
		Timestamp: time.Now().Add(-25 * time.Hour).UnixMilli(),
		Page:      1,
		Limit:     6,
	}
	require.NoError(t, localstore.SetJSON(ctx, storage, localstore.PageKey(1), stale))

	res := svc.GetAllProducts(ctx, 1, 6)

	assert.False(t, res.Success())
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.Equal(t, SourceNone, res.Source)
	assert.Empty(t, res.Products)
	assert.NotNil(t, res.Products)
	assert.Error(t, res.Err)
}

func TestGetAllProducts_NoCache(t *testing.T) {
	repo := seedRepo(3)
	repo.down = true
	svc := newTestCatalog(repo, localstore.NewMemoryStorage(0), nil)

	res := svc.GetAllProducts(context.Background(), 1, 6)

	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.Equal(t, SourceNone, res.Source)
	assert.Equal(t, 3, repo.callCount("list"))
	assert.Equal(t, models.Pagination{Page: 1, Limit: 6}, res.Pagination)
}

func TestGetProductsByCategory(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(8)
	storage := localstore.NewMemoryStorage(0)
	svc := newTestCatalog(repo, storage, nil)

	res := svc.GetProductsByCategory(ctx, models.CategoryClothing, 1, 3)
	require.True(t, res.Success())
	assert.Equal(t, SourceDatabase, res.Source)
	assert.Len(t, res.Products, 3)
	assert.Equal(t, 4, res.Pagination.TotalProducts)
	for _, p := range res.Products {
		assert.Equal(t, models.CategoryClothing, p.Category)
	}

	_, found, err := storage.Get(ctx, localstore.PageKey(1))
	require.NoError(t, err)
	assert.False(t, found, "category pages are not cached")
}

func TestGetProductsByCategory_FallbackCollection(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(0)
	repo.down = true
	storage := localstore.NewMemoryStorage(0)
	svc := newTestCatalog(repo, storage, nil)

	now := time.Now()
	local := []models.Product{
		testProduct("a", models.CategoryFigures, 1, now),
		testProduct("b", models.CategoryClothing, 2, now),
		testProduct("c", models.CategoryFigures, 3, now),
		testProduct("d", models.CategoryFigures, 4, now),
	}
	require.NoError(t, localstore.SetJSON(ctx, storage, localstore.KeyProducts, local))

	res := svc.GetProductsByCategory(ctx, models.CategoryFigures, 2, 2)

	require.True(t, res.Success())
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, warnDatabaseUnavailable, res.Warning)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "d", res.Products[0].ID)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 2, TotalProducts: 3, TotalPages: 2, HasMore: false}, res.Pagination)
}

func TestGetProductByID(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemoryStorage(0)
	repo := seedRepo(2)
	svc := newTestCatalog(repo, storage, nil)
	require.NoError(t, localstore.SetJSON(ctx, storage, localstore.KeyProducts,
		[]models.Product{testProduct("local", models.CategoryPosters, 5, time.Now())}))

	t.Run("found remotely", func(t *testing.T) {
		res := svc.GetProductByID(ctx, "p01")
		require.Equal(t, OutcomeOK, res.Outcome)
		assert.Equal(t, SourceDatabase, res.Source)
		assert.Equal(t, "p01", res.Product.ID)
	})

	t.Run("not found anywhere", func(t *testing.T) {
		res := svc.GetProductByID(ctx, "nope")
		assert.Equal(t, OutcomeNotFound, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrNotFound)
	})

	t.Run("only in fallback collection", func(t *testing.T) {
		res := svc.GetProductByID(ctx, "local")
		require.Equal(t, OutcomeOK, res.Outcome)
		assert.Equal(t, SourceFallback, res.Source)
	})

	t.Run("database down", func(t *testing.T) {
		repo.down = true
		defer func() { repo.down = false }()

		res := svc.GetProductByID(ctx, "p01")
		assert.Equal(t, OutcomeUnavailable, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrTransport)

		res = svc.GetProductByID(ctx, "local")
		assert.Equal(t, OutcomeOK, res.Outcome)
		assert.Equal(t, SourceFallback, res.Source)
	})
}

func TestGetFeaturedProducts(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	featured := testProduct("f1", models.CategoryFigures, 10, now)
	featured.Featured = true
	repo := newFakeRepo(featured, testProduct("n1", models.CategoryFigures, 10, now))
	storage := localstore.NewMemoryStorage(0)
	svc := newTestCatalog(repo, storage, nil)

	res := svc.GetFeaturedProducts(ctx)
	require.Equal(t, OutcomeOK, res.Outcome)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "f1", res.Products[0].ID)

	repo.down = true
	require.NoError(t, localstore.SetJSON(ctx, storage, localstore.KeyProducts, []models.Product{featured}))
	res = svc.GetFeaturedProducts(ctx)
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Len(t, res.Products, 1)
}

func TestAddProduct_RequiresAdmin(t *testing.T) {
	repo := seedRepo(0)
	svc := newTestCatalog(repo, localstore.NewMemoryStorage(0), nil)

	res := svc.AddProduct(context.Background(), asAnonymous, &models.ProductInput{Name: "Goku Figure"})

	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrUnauthorized)
	assert.Zero(t, repo.callCount("create"))
}

func TestAddProduct_Database(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(0)
	pub := &fakePublisher{}
	svc := newTestCatalog(repo, localstore.NewMemoryStorage(0), pub)

	res := svc.AddProduct(ctx, asAdmin, &models.ProductInput{
		Name:     "Goku Figure",
		Price:    decimal.NewFromInt(1999),
		Category: models.CategoryFigures,
		Images:   []string{"/goku.jpg"},
	})

	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, SourceDatabase, res.Source)
	assert.NotEmpty(t, res.ID)

	got := svc.GetProductByID(ctx, res.ID)
	require.Equal(t, OutcomeOK, got.Outcome)
	assert.True(t, got.Product.InStock)
	assert.Equal(t, "/goku.jpg", got.Product.Image)

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventTypeProductCreated, pub.events[0].EventType)
	assert.Equal(t, res.ID, pub.events[0].ProductID)
	assert.Equal(t, "database", pub.events[0].Source)
}

func TestAddProduct_RejectsNegativePrice(t *testing.T) {
	svc := newTestCatalog(seedRepo(0), localstore.NewMemoryStorage(0), nil)

	res := svc.AddProduct(context.Background(), asAdmin, &models.ProductInput{Name: "x", Price: decimal.NewFromInt(-1)})

	assert.Equal(t, OutcomeValidationFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrValidation)
}

func TestAddProduct_FallbackPrepends(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(0)
	repo.down = true
	storage := localstore.NewMemoryStorage(0)
	svc := newTestCatalog(repo, storage, nil)
	require.NoError(t, svc.SeedFallback(ctx))

	res := svc.AddProduct(ctx, asAdmin, &models.ProductInput{Name: "Luffy Hat", Price: decimal.NewFromInt(799)})

	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, warnSavedLocally, res.Warning)

	var local []models.Product
	_, err := localstore.GetJSON(ctx, storage, localstore.KeyProducts, &local)
	require.NoError(t, err)
	require.Len(t, local, 2)
	assert.Equal(t, res.ID, local[0].ID)
	assert.Equal(t, "Naruto T-Shirt", local[1].Name)
	assert.False(t, local[0].CreatedAt.IsZero())
}

func TestAddProduct_QuotaCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	existing := make([]models.Product, 12)
	for i := range existing {
		existing[i] = testProduct(fmt.Sprintf("p%02d", i), models.CategoryFigures, 100, now.Add(-time.Duration(i)*time.Minute))
	}
	data, err := json.Marshal(existing)
	require.NoError(t, err)

	storage := localstore.NewMemoryStorage(len(localstore.KeyProducts) + len(data) + 16)
	require.NoError(t, storage.Set(ctx, localstore.KeyProducts, string(data)))

	repo := seedRepo(0)
	repo.down = true
	svc := newTestCatalog(repo, storage, nil)

	res := svc.AddProduct(ctx, asAdmin, &models.ProductInput{Name: "Product new", Price: decimal.NewFromInt(100)})
	require.Equal(t, OutcomeOK, res.Outcome, "error: %v", res.Err)

	var local []models.Product
	_, err = localstore.GetJSON(ctx, storage, localstore.KeyProducts, &local)
	require.NoError(t, err)
	require.Len(t, local, 11)
	assert.Equal(t, res.ID, local[0].ID)
	assert.Equal(t, "p00", local[1].ID)
	assert.Equal(t, "p09", local[10].ID)
}

func TestAddProduct_QuotaTerminal(t *testing.T) {
	repo := seedRepo(0)
	repo.down = true
	svc := newTestCatalog(repo, localstore.NewMemoryStorage(32), nil)

	res := svc.AddProduct(context.Background(), asAdmin, &models.ProductInput{Name: "Too big to fit anywhere"})

	assert.Equal(t, OutcomeQuotaExceeded, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrQuotaExceeded)
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(2)
	pub := &fakePublisher{}
	storage := localstore.NewMemoryStorage(0)
	svc := newTestCatalog(repo, storage, pub)

	active := true
	pct := decimal.NewFromInt(10)
	res := svc.UpdateProduct(ctx, asAdmin, "p01", &models.ProductInput{
		Name:               "Renamed",
		Price:              decimal.NewFromInt(500),
		DiscountActive:     &active,
		DiscountPercentage: &pct,
	})
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, SourceDatabase, res.Source)

	got := svc.GetProductByID(ctx, "p01")
	assert.Equal(t, "Renamed", got.Product.Name)
	assert.True(t, got.Product.DiscountActive)

	repo.down = true
	res = svc.UpdateProduct(ctx, asAdmin, "p01", &models.ProductInput{Name: "Offline"})
	assert.Equal(t, OutcomeNotFound, res.Outcome, "p01 is not in the fallback collection")

	require.NoError(t, svc.SeedFallback(ctx))
	res = svc.UpdateProduct(ctx, asAdmin, "1", &models.ProductInput{Name: "Naruto Hoodie", Price: decimal.NewFromInt(2999)})
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, SourceFallback, res.Source)

	local := svc.GetProductByID(ctx, "1")
	require.Equal(t, OutcomeOK, local.Outcome)
	assert.Equal(t, "Naruto Hoodie", local.Product.Name)
	assert.Len(t, pub.events, 2)
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(2)
	storage := localstore.NewMemoryStorage(0)
	svc := newTestCatalog(repo, storage, nil)

	res := svc.DeleteProduct(ctx, asAdmin, "p01")
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, OutcomeNotFound, svc.GetProductByID(ctx, "p01").Outcome)

	repo.down = true
	require.NoError(t, svc.SeedFallback(ctx))

	res = svc.DeleteProduct(ctx, asAdmin, "missing")
	assert.Equal(t, OutcomeNotFound, res.Outcome)

	res = svc.DeleteProduct(ctx, asAdmin, "1")
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, SourceFallback, res.Source)

	var local []models.Product
	_, err := localstore.GetJSON(ctx, storage, localstore.KeyProducts, &local)
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestWritesInvalidateCachedPages(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemoryStorage(0)
	svc := newTestCatalog(seedRepo(8), storage, nil)

	svc.GetAllProducts(ctx, 1, 6)
	svc.GetAllProducts(ctx, 2, 6)
	keys, err := storage.Keys(ctx, localstore.KeyPagePrefix)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	res := svc.DeleteProduct(ctx, asAdmin, "p03")
	require.Equal(t, OutcomeOK, res.Outcome)

	keys, err = storage.Keys(ctx, localstore.KeyPagePrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalWritesKeepCachedPages(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemoryStorage(0)
	repo := seedRepo(8)
	svc := newTestCatalog(repo, storage, nil)

	require.Equal(t, SourceDatabase, svc.GetAllProducts(ctx, 1, 6).Source)

	repo.down = true
	require.Equal(t, SourceCache, svc.GetAllProducts(ctx, 1, 6).Source)

	added := svc.AddProduct(ctx, asAdmin, &models.ProductInput{
		Name:     "Luffy Figure",
		Price:    decimal.NewFromInt(1500),
		Category: models.CategoryFigures,
	})
	require.Equal(t, OutcomeOK, added.Outcome)
	require.Equal(t, SourceFallback, added.Source)

	res := svc.GetAllProducts(ctx, 1, 6)
	require.True(t, res.Success())
	assert.Equal(t, SourceCache, res.Source)
	assert.Len(t, res.Products, 6)
}

func TestListingPagingIsBounded(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(0)
	repo.down = true
	svc := newTestCatalog(repo, localstore.NewMemoryStorage(0), nil)
	require.NoError(t, svc.SeedFallback(ctx))

	res := svc.GetProductsByCategory(ctx, models.CategoryClothing, 2, math.MaxInt64)
	require.True(t, res.Success())
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, maxPageLimit, res.Pagination.Limit)
	assert.Empty(t, res.Products)

	res = svc.GetProductsByCategory(ctx, models.CategoryClothing, math.MaxInt64/2, 4)
	require.True(t, res.Success())
	assert.Equal(t, math.MaxInt32/4, res.Pagination.Page)
	assert.Empty(t, res.Products)

	res = svc.GetProductsByCategory(ctx, models.CategoryClothing, 1, math.MaxInt64)
	require.True(t, res.Success())
	assert.Len(t, res.Products, 1)
}

func TestFallbackSource_OverflowingOffset(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemoryStorage(0)
	src := &fallbackSource{collection: &fallbackCollection{storage: storage, keep: 10, logger: zap.NewNop()}}
	require.NoError(t, src.collection.Seed(ctx, time.Now()))

	products, pagination, err := src.FetchPage(ctx, PageQuery{Page: math.MaxInt64 / 2, Limit: 4})

	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 1, pagination.TotalProducts)
}

// gatedRepo holds ListProducts until release is closed
type gatedRepo struct {
	*fakeRepo
	started  chan struct{}
	release  chan struct{}
	finished chan error
}

func (r *gatedRepo) ListProducts(ctx context.Context, category string, offset, limit int) ([]models.Product, int, error) {
	r.started <- struct{}{}
	<-r.release
	r.finished <- ctx.Err()
	return r.fakeRepo.ListProducts(ctx, category, offset, limit)
}

func TestRemoteSource_SharedFetchOutlivesCaller(t *testing.T) {
	repo := &gatedRepo{
		fakeRepo: seedRepo(3),
		started:  make(chan struct{}, 2),
		release:  make(chan struct{}),
		finished: make(chan error, 2),
	}
	src := newRemoteSource(repo, NewRetrier(1, 0))
	q := PageQuery{Page: 1, Limit: 6}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, _, err := src.FetchPage(ctx, q)
		errs <- err
	}()
	<-repo.started

	cancel()
	assert.ErrorIs(t, <-errs, ErrTransport)

	close(repo.release)
	assert.NoError(t, <-repo.finished, "shared fetch must not see the caller's cancellation")

	products, _, err := src.FetchPage(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestUploadProductImage(t *testing.T) {
	ctx := context.Background()
	svc := newTestCatalog(seedRepo(0), localstore.NewMemoryStorage(0), nil)

	t.Run("requires admin", func(t *testing.T) {
		res := svc.UploadProductImage(ctx, asAnonymous, pngBytes(t, 10, 10), "p1")
		assert.Equal(t, OutcomeRejected, res.Outcome)
	})

	t.Run("too large", func(t *testing.T) {
		data := make([]byte, 1024*1024)
		res := svc.UploadProductImage(ctx, asAdmin, data, "p1")
		assert.Equal(t, OutcomeValidationFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrImageTooLarge)
		assert.Contains(t, res.Err.Error(), "1.00MB")
	})

	t.Run("not an image", func(t *testing.T) {
		res := svc.UploadProductImage(ctx, asAdmin, []byte("hello"), "p1")
		assert.Equal(t, OutcomeValidationFailed, res.Outcome)
	})

	t.Run("compressed", func(t *testing.T) {
		res := svc.UploadProductImage(ctx, asAdmin, pngBytes(t, 1200, 800), "p1")
		require.Equal(t, OutcomeOK, res.Outcome, "error: %v", res.Err)
		assert.True(t, strings.HasPrefix(res.URL, "data:image/jpeg;base64,"))
		assert.Positive(t, res.Bytes)
	})
}

func TestUploadProductImage_QuotaProbe(t *testing.T) {
	svc := newTestCatalog(seedRepo(0), localstore.NewMemoryStorage(64), nil)

	res := svc.UploadProductImage(context.Background(), asAdmin, pngBytes(t, 50, 50), "p1")

	assert.Equal(t, OutcomeQuotaExceeded, res.Outcome)
}

func TestDiagnoseConnection(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(4)
	svc := newTestCatalog(repo, localstore.NewMemoryStorage(0), nil)
	require.NoError(t, svc.SeedFallback(ctx))

	d := svc.DiagnoseConnection(ctx)
	assert.Equal(t, "success", d.Status)
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 1, d.FallbackProducts)

	repo.down = true
	d = svc.DiagnoseConnection(ctx)
	assert.Equal(t, "failed", d.Status)
	assert.Contains(t, d.Error, "connection refused")
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeOK, OutcomeOf(nil))
	assert.Equal(t, OutcomeNotFound, OutcomeOf(fmt.Errorf("x: %w", ErrNotFound)))
	assert.Equal(t, OutcomeQuotaExceeded, OutcomeOf(ErrQuotaExceeded))
	assert.Equal(t, OutcomeValidationFailed, OutcomeOf(ErrMissingContact))
	assert.Equal(t, OutcomeUnavailable, OutcomeOf(ErrTransport))
	assert.Equal(t, OutcomeRejected, OutcomeOf(ErrUnauthorized))
	assert.Equal(t, "quota_exceeded", OutcomeQuotaExceeded.String())
}
