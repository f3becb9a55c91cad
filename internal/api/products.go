package api

import (
	"strconv"

	"figmist-store/internal/service"

	"github.com/gin-gonic/gin"
)

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

// listProducts handles GET /products?page=&limit=&category=
func (h *Handler) listProducts(c *gin.Context) {
	page, limit := queryInt(c, "page"), queryInt(c, "limit")

	var res *service.ProductPage
	if category := c.Query("category"); category != "" && category != "all" {
		res = h.catalog.GetProductsByCategory(c.Request.Context(), category, page, limit)
	} else {
		res = h.catalog.GetAllProducts(c.Request.Context(), page, limit)
	}

	body := gin.H{
		"success":    res.Success(),
		"products":   res.Products,
		"pagination": res.Pagination,
		"source":     res.Source,
	}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	if res.Err != nil {
		body["error"] = errorMessage(res.Err)
	}
	c.JSON(statusFor(res.Outcome, res.Err), body)
}

// featuredProducts handles GET /products/featured
func (h *Handler) featuredProducts(c *gin.Context) {
	res := h.catalog.GetFeaturedProducts(c.Request.Context())

	body := gin.H{
		"success":  res.Outcome == service.OutcomeOK,
		"products": res.Products,
		"source":   res.Source,
	}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	if res.Err != nil {
		body["error"] = errorMessage(res.Err)
	}
	c.JSON(statusFor(res.Outcome, res.Err), body)
}

// getProduct handles GET /products/:id
func (h *Handler) getProduct(c *gin.Context) {
	res := h.catalog.GetProductByID(c.Request.Context(), c.Param("id"))
	if res.Outcome != service.OutcomeOK {
		c.JSON(statusFor(res.Outcome, res.Err), gin.H{
			"success": false,
			"error":   errorMessage(res.Err),
		})
		return
	}

	c.JSON(statusFor(res.Outcome, nil), gin.H{
		"success": true,
		"product": res.Product,
		"source":  res.Source,
	})
}
