package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product categories used by the storefront
const (
	CategoryClothing    = "clothing"
	CategoryFigures     = "figures"
	CategoryAccessories = "accessories"
	CategoryPosters     = "posters"
)

// Product represents a sellable catalog item after normalization
type Product struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	Category           string          `json:"category"`
	Description        string          `json:"description"`
	Image              string          `json:"image,omitempty"`
	Images             []string        `json:"images"`
	Sizes              []string        `json:"sizes"`
	InStock            bool            `json:"inStock"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountActive     bool            `json:"discount_active"`
	Featured           bool            `json:"featured"`
	Details            string          `json:"details,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// PrimaryImage returns the first image, falling back to the legacy single image
func (p *Product) PrimaryImage() string {
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return p.Image
}

// RequiresSize reports whether a size must be chosen before adding to the cart
func (p *Product) RequiresSize() bool {
	return p.Category == CategoryClothing && len(p.Sizes) > 0
}

// ProductInput is the admin payload for creating or updating a product.
// Optional flags are pointers so that an absent value can take its default.
type ProductInput struct {
	Name               string           `json:"name" binding:"required"`
	Price              decimal.Decimal  `json:"price"`
	Category           string           `json:"category"`
	Description        string           `json:"description"`
	Image              string           `json:"image"`
	Images             []string         `json:"images"`
	Sizes              []string         `json:"sizes"`
	InStock            *bool            `json:"inStock"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	DiscountActive     *bool            `json:"discount_active"`
	Featured           *bool            `json:"featured"`
	Details            string           `json:"details"`
}

// Apply copies the input onto p, filling defaults for absent optional fields
func (in *ProductInput) Apply(p *Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Price = in.Price
	p.Category = strings.TrimSpace(in.Category)
	p.Description = in.Description
	p.Image = strings.TrimSpace(in.Image)
	p.Images = append([]string(nil), in.Images...)
	p.Sizes = cleanSizes(in.Sizes)
	p.InStock = in.InStock == nil || *in.InStock
	p.DiscountPercentage = decimal.Zero
	if in.DiscountPercentage != nil {
		p.DiscountPercentage = *in.DiscountPercentage
	}
	p.DiscountActive = in.DiscountActive != nil && *in.DiscountActive
	p.Featured = in.Featured != nil && *in.Featured
	p.Details = in.Details
	p.NormalizeImages()
}

// NormalizeImages keeps images and the legacy image column consistent:
// the legacy column mirrors the primary image, and a lone legacy image
// becomes a one-element sequence.
func (p *Product) NormalizeImages() {
	if len(p.Images) > 0 {
		p.Image = p.Images[0]
		return
	}
	if p.Image != "" {
		p.Images = []string{p.Image}
		return
	}
	p.Images = []string{}
}

func cleanSizes(sizes []string) []string {
	out := make([]string, 0, len(sizes))
	for _, s := range sizes {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CartLine is one (product, size) entry in the cart. Price and discount
// fields are a snapshot taken when the line was first added.
type CartLine struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	Image              string          `json:"image"`
	Quantity           int             `json:"quantity"`
	Size               *string         `json:"size"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountActive     bool            `json:"discount_active"`
}

// Matches reports whether the line has the given identity
func (l *CartLine) Matches(id string, size *string) bool {
	return l.ID == id && SameSize(l.Size, size)
}

// SizeOf turns a raw size label into a line size; blank means no size
func SizeOf(label string) *string {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	return &label
}

// SameSize compares two optional sizes
func SameSize(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CustomerDetails are supplied at checkout and never persisted
type CustomerDetails struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Pagination describes one page of a listing
type Pagination struct {
	Page          int  `json:"page"`
	Limit         int  `json:"limit"`
	TotalProducts int  `json:"totalProducts"`
	TotalPages    int  `json:"totalPages"`
	HasMore       bool `json:"hasMore"`
}

// NewPagination derives page counts from a total row count
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:          page,
		Limit:         limit,
		TotalProducts: total,
		TotalPages:    totalPages,
		HasMore:       page < totalPages,
	}
}

// CachedPage is a locally stored snapshot of one listing page
type CachedPage struct {
	Products      []Product `json:"products"`
	Timestamp     int64     `json:"timestamp"`
	Page          int       `json:"page"`
	Limit         int       `json:"limit"`
	TotalProducts int       `json:"totalProducts"`
	TotalPages    int       `json:"totalPages"`
}

// Age returns how old the snapshot is relative to now
func (c *CachedPage) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(c.Timestamp))
}

// Pagination rebuilds the pagination block stored with the snapshot
func (c *CachedPage) Pagination() Pagination {
	return Pagination{
		Page:          c.Page,
		Limit:         c.Limit,
		TotalProducts: c.TotalProducts,
		TotalPages:    c.TotalPages,
		HasMore:       c.Page < c.TotalPages,
	}
}

// AdminSession is the persisted marker of an authenticated admin
type AdminSession struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	LoginTime time.Time `json:"loginTime"`
}

// Order is the formatted checkout handed to the messaging app
type Order struct {
	ID       string          `json:"order_id"`
	Message  string          `json:"message"`
	URL      string          `json:"url"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}
