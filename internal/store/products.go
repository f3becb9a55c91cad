package store

import (
	"database/sql"
	"time"

	"figmist-store/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	price               NUMERIC(12, 2) NOT NULL DEFAULT 0,
	category            TEXT,
	description         TEXT,
	image               TEXT,
	images              TEXT[],
	sizes               TEXT[],
	"inStock"           BOOLEAN,
	discount_percentage NUMERIC(5, 2),
	discount_active     BOOLEAN,
	featured            BOOLEAN,
	details             TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ DEFAULT NOW()
);
ALTER TABLE products ALTER COLUMN updated_at SET DEFAULT NOW();
CREATE INDEX IF NOT EXISTS products_category_created_idx ON products (category, created_at DESC);
CREATE INDEX IF NOT EXISTS products_featured_idx ON products (featured) WHERE featured;`

// productRow mirrors the products relation, where most columns are nullable
// because older rows predate them.
type productRow struct {
	ID                 string              `db:"id"`
	Name               string              `db:"name"`
	Price              decimal.Decimal     `db:"price"`
	Category           sql.NullString      `db:"category"`
	Description        sql.NullString      `db:"description"`
	Image              sql.NullString      `db:"image"`
	Images             pq.StringArray      `db:"images"`
	Sizes              pq.StringArray      `db:"sizes"`
	InStock            sql.NullBool        `db:"inStock"`
	DiscountPercentage decimal.NullDecimal `db:"discount_percentage"`
	DiscountActive     sql.NullBool        `db:"discount_active"`
	Featured           sql.NullBool        `db:"featured"`
	Details            sql.NullString      `db:"details"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          sql.NullTime        `db:"updated_at"`
}

// rowTimestamps receives the RETURNING clause of writes; updated_at may
// still be NULL on tables created before it had a default.
type rowTimestamps struct {
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

func (ts rowTimestamps) applyTo(p *models.Product) {
	p.CreatedAt = ts.CreatedAt
	p.UpdatedAt = ts.CreatedAt
	if ts.UpdatedAt.Valid {
		p.UpdatedAt = ts.UpdatedAt.Time
	}
}

// toProduct applies the read-time defaults: a product is in stock unless
// explicitly marked otherwise, and missing discount/featured flags are off.
func (r *productRow) toProduct() models.Product {
	p := models.Product{
		ID:                 r.ID,
		Name:               r.Name,
		Price:              r.Price,
		Category:           r.Category.String,
		Description:        r.Description.String,
		Image:              r.Image.String,
		Images:             []string(r.Images),
		Sizes:              []string(r.Sizes),
		InStock:            !r.InStock.Valid || r.InStock.Bool,
		DiscountPercentage: decimal.Zero,
		DiscountActive:     r.DiscountActive.Valid && r.DiscountActive.Bool,
		Featured:           r.Featured.Valid && r.Featured.Bool,
		Details:            r.Details.String,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.CreatedAt,
	}
	if r.DiscountPercentage.Valid {
		p.DiscountPercentage = r.DiscountPercentage.Decimal
	}
	if r.UpdatedAt.Valid {
		p.UpdatedAt = r.UpdatedAt.Time
	}
	if p.Sizes == nil {
		p.Sizes = []string{}
	}
	if len(p.Images) == 0 {
		if p.Image != "" {
			p.Images = []string{p.Image}
		} else {
			p.Images = []string{}
		}
	}
	return p
}

func toProducts(rows []productRow) []models.Product {
	products := make([]models.Product, len(rows))
	for i := range rows {
		products[i] = rows[i].toProduct()
	}
	return products
}
