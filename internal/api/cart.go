package api

import (
	"errors"
	"net/http"

	"figmist-store/internal/models"
	"figmist-store/internal/service"

	"github.com/gin-gonic/gin"
)

// AddCartItemRequest adds a product to the session cart
type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1"`
	Size      string `json:"size"`
}

// UpdateCartItemRequest sets the quantity of a cart line
type UpdateCartItemRequest struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// CheckoutRequest carries the customer contact details
type CheckoutRequest struct {
	Customer  models.CustomerDetails `json:"customer"`
	ClearCart bool                   `json:"clear_cart"`
}

func cartBody(cart *service.Cart) service.CartSnapshot {
	return cart.Snapshot()
}

// getCart handles GET /cart
func (h *Handler) getCart(c *gin.Context) {
	cart := h.sessions.Cart(c.Request.Context(), sessionID(c))
	c.JSON(http.StatusOK, cartBody(cart))
}

// clearCart handles DELETE /cart
func (h *Handler) clearCart(c *gin.Context) {
	cart := h.sessions.Cart(c.Request.Context(), sessionID(c))
	cart.ClearCart(c.Request.Context())
	c.JSON(http.StatusOK, cartBody(cart))
}

// addCartItem handles POST /cart/items
func (h *Handler) addCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx := c.Request.Context()
	res := h.catalog.GetProductByID(ctx, req.ProductID)
	if res.Outcome != service.OutcomeOK {
		abortWithError(c, statusFor(res.Outcome, res.Err), "Product unavailable", res.Err)
		return
	}

	size := models.SizeOf(req.Size)
	if err := service.ValidateSelection(res.Product, size); err != nil {
		abortWithError(c, http.StatusBadRequest, "Please select a size", err)
		return
	}

	cart := h.sessions.Cart(ctx, sessionID(c))
	cart.AddToCart(ctx, res.Product, req.Quantity, size)
	c.JSON(http.StatusCreated, cartBody(cart))
}

// updateCartItem handles PATCH /cart/items/:id
func (h *Handler) updateCartItem(c *gin.Context) {
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	cart := h.sessions.Cart(ctx, sessionID(c))
	cart.UpdateQuantity(ctx, c.Param("id"), models.SizeOf(req.Size), req.Quantity)
	c.JSON(http.StatusOK, cartBody(cart))
}

// removeCartItem handles DELETE /cart/items/:id?size=
func (h *Handler) removeCartItem(c *gin.Context) {
	ctx := c.Request.Context()
	cart := h.sessions.Cart(ctx, sessionID(c))
	cart.RemoveFromCart(ctx, c.Param("id"), models.SizeOf(c.Query("size")))
	c.JSON(http.StatusOK, cartBody(cart))
}

// placeOrder handles POST /checkout
func (h *Handler) placeOrder(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	cart := h.sessions.Cart(ctx, sessionID(c))
	snap := cart.Snapshot()
	order, err := h.checkout.PlaceOrder(ctx, snap.Lines, req.Customer, snap.Total)
	switch {
	case errors.Is(err, service.ErrMissingContact):
		abortWithError(c, http.StatusBadRequest, "Please provide your name and phone number for the order.", nil)
		return
	case errors.Is(err, service.ErrEmptyCart):
		abortWithError(c, http.StatusBadRequest, "Your cart is empty", nil)
		return
	case err != nil:
		abortWithError(c, http.StatusInternalServerError, "Failed to format order", err)
		return
	}

	if req.ClearCart {
		cart.ClearCart(ctx)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   order,
	})
}
