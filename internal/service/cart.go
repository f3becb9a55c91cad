package service

import (
	"context"
	"sync"

	"figmist-store/internal/localstore"
	"figmist-store/internal/models"
	"figmist-store/internal/pricing"
	"figmist-store/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cart is the line collection of one storefront session. Every mutation
// rewrites the whole collection to storage; write failures are logged only.
type Cart struct {
	mu      sync.Mutex
	lines   []models.CartLine
	storage localstore.Storage
	logger  *zap.Logger
}

// NewCart rehydrates the cart from storage. Unreadable data yields an empty cart.
func NewCart(ctx context.Context, storage localstore.Storage) *Cart {
	c := &Cart{
		lines:   []models.CartLine{},
		storage: storage,
		logger:  util.ComponentLogger("cart"),
	}

	var saved []models.CartLine
	found, err := localstore.GetJSON(ctx, storage, localstore.KeyCart, &saved)
	if err != nil {
		c.logger.Error("Error loading cart from storage", zap.Error(err))
		return c
	}
	if found && saved != nil {
		c.lines = saved
	}
	return c
}

// ValidateSelection checks that a size was picked for products that need one
func ValidateSelection(p *models.Product, size *string) error {
	if p.RequiresSize() && size == nil {
		return ErrSizeRequired
	}
	return nil
}

// AddToCart increments the matching (id, size) line or appends a new one
// holding a snapshot of the product's price and discount.
func (c *Cart) AddToCart(ctx context.Context, p *models.Product, quantity int, size *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].Matches(p.ID, size) {
			c.lines[i].Quantity += quantity
			c.persist(ctx, "add")
			return
		}
	}

	c.lines = append(c.lines, models.CartLine{
		ID:                 p.ID,
		Name:               p.Name,
		Price:              p.Price,
		Image:              p.PrimaryImage(),
		Quantity:           quantity,
		Size:               size,
		DiscountPercentage: p.DiscountPercentage,
		DiscountActive:     p.DiscountActive,
	})
	c.persist(ctx, "add")
}

// RemoveFromCart drops the matching line; absent lines are ignored
func (c *Cart) RemoveFromCart(ctx context.Context, id string, size *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(ctx, id, size)
}

func (c *Cart) remove(ctx context.Context, id string, size *string) {
	kept := make([]models.CartLine, 0, len(c.lines))
	for _, l := range c.lines {
		if !l.Matches(id, size) {
			kept = append(kept, l)
		}
	}
	c.lines = kept
	c.persist(ctx, "remove")
}

// UpdateQuantity sets the quantity of a line; below 1 removes it
func (c *Cart) UpdateQuantity(ctx context.Context, id string, size *string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity < 1 {
		c.remove(ctx, id, size)
		return
	}
	for i := range c.lines {
		if c.lines[i].Matches(id, size) {
			c.lines[i].Quantity = quantity
			break
		}
	}
	c.persist(ctx, "update")
}

// ClearCart empties the collection
func (c *Cart) ClearCart(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = []models.CartLine{}
	c.persist(ctx, "clear")
}

// Total sums the discount-aware line totals
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return linesTotal(c.lines)
}

// ItemCount sums quantities across lines
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return linesCount(c.lines)
}

// Lines returns a copy of the line collection
func (c *Cart) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLines()
}

// CartSnapshot is a consistent view of a cart at one instant
type CartSnapshot struct {
	Lines     []models.CartLine `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
}

// Snapshot returns lines, total and item count taken under one lock
func (c *Cart) Snapshot() CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CartSnapshot{
		Lines:     c.copyLines(),
		Total:     linesTotal(c.lines),
		ItemCount: linesCount(c.lines),
	}
}

func (c *Cart) copyLines() []models.CartLine {
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) persist(ctx context.Context, op string) {
	util.CartMutationsTotal.WithLabelValues(op).Inc()
	if err := localstore.SetJSON(ctx, c.storage, localstore.KeyCart, c.lines); err != nil {
		c.logger.Error("Failed to save cart", zap.String("operation", op), zap.Error(err))
	}
}

func linesCount(lines []models.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func linesTotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(pricing.LineTotal(l.Price, l.DiscountPercentage, l.DiscountActive, l.Quantity))
	}
	return total
}
