package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"figmist-store/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrProductNotFound is returned when no row matches the requested id
var ErrProductNotFound = errors.New("product not found")

const productColumns = `id, name, price, category, description, image, images, sizes, "inStock",
	discount_percentage, discount_active, featured, details, created_at, updated_at`

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenStore prepares a connection pool without requiring the database to
// be reachable yet
func OpenStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the products relation when it does not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ListProducts returns one page of products, newest first, and the total
// number of rows matching the filter. An empty category lists everything.
func (s *Store) ListProducts(ctx context.Context, category string, offset, limit int) ([]models.Product, int, error) {
	where, args := "", []interface{}{}
	if category != "" {
		where = " WHERE category = $1"
		args = append(args, category)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		productColumns, where, len(args)+1, len(args)+2)

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	return toProducts(rows), total, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	p := row.toProduct()
	return &p, nil
}

// GetFeaturedProducts retrieves every featured product, newest first
func (s *Store) GetFeaturedProducts(ctx context.Context) ([]models.Product, error) {
	var rows []productRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+productColumns+" FROM products WHERE featured = TRUE ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// CreateProduct inserts a product and fills in its timestamps
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, price, category, description, image, images, sizes, "inStock",
			discount_percentage, discount_active, featured, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING created_at, updated_at`

	var ts rowTimestamps
	err := s.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Price, p.Category, p.Description, p.Image,
		pq.StringArray(p.Images), pq.StringArray(p.Sizes), p.InStock,
		p.DiscountPercentage, p.DiscountActive, p.Featured, p.Details,
	).StructScan(&ts)
	if err != nil {
		return err
	}
	ts.applyTo(p)
	return nil
}

// UpdateProduct overwrites the editable columns of an existing product
func (s *Store) UpdateProduct(ctx context.Context, id string, p *models.Product) error {
	query := `
		UPDATE products SET name = $1, price = $2, category = $3, description = $4, image = $5,
			images = $6, sizes = $7, "inStock" = $8, discount_percentage = $9, discount_active = $10,
			featured = $11, details = $12, updated_at = NOW()
		WHERE id = $13
		RETURNING created_at, updated_at`

	var ts rowTimestamps
	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Price, p.Category, p.Description, p.Image,
		pq.StringArray(p.Images), pq.StringArray(p.Sizes), p.InStock,
		p.DiscountPercentage, p.DiscountActive, p.Featured, p.Details, id,
	).StructScan(&ts)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return err
	}
	ts.applyTo(p)
	p.ID = id
	return nil
}

// DeleteProduct removes a product. Deleting a missing id is not an error.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	return err
}

// CountProducts returns the number of rows in the products relation
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM products")
	return count, err
}
