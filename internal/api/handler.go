package api

import (
	"net/http"
	"strconv"
	"time"

	"figmist-store/internal/service"
	"figmist-store/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	sessionHeader = "X-Session-ID"
	sessionKey    = "session_id"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog  *service.CatalogService
	sessions *service.Sessions
	checkout *service.CheckoutFormatter
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog *service.CatalogService, sessions *service.Sessions, checkout *service.CheckoutFormatter) *Handler {
	return &Handler{
		catalog:  catalog,
		sessions: sessions,
		checkout: checkout,
		logger:   util.ComponentLogger("http"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(sessionMiddleware())
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/featured", h.featuredProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.GET("/cart", h.getCart)
		v1.DELETE("/cart", h.clearCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PATCH("/cart/items/:id", h.updateCartItem)
		v1.DELETE("/cart/items/:id", h.removeCartItem)

		v1.POST("/checkout", h.placeOrder)

		v1.POST("/admin/login", h.adminLogin)
		v1.POST("/admin/logout", h.adminLogout)
		v1.GET("/admin/session", h.adminSession)

		admin := v1.Group("/admin")
		admin.Use(h.requireAdmin())
		{
			admin.POST("/products", h.addProduct)
			admin.PUT("/products/:id", h.updateProduct)
			admin.DELETE("/products/:id", h.deleteProduct)
			admin.POST("/images", h.uploadImage)
			admin.GET("/diagnostics", h.diagnostics)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests. Reads degrade to local
// copies when the database is down, so readiness does not depend on it.
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// sessionMiddleware attaches the storefront session id, minting one for new clients
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(sessionHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(sessionKey, id)
		c.Header(sessionHeader, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
