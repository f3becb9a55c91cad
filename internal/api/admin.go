package api

import (
	"errors"
	"io"
	"net/http"

	"figmist-store/internal/models"
	"figmist-store/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest carries admin credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

const adminGuardKey = "admin_guard"

// requireAdmin rejects requests from sessions without an admin marker
func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		guard := h.sessions.Admin(sessionID(c))
		if err := guard.RequireAdmin(c.Request.Context()); err != nil {
			abortWithError(c, http.StatusUnauthorized, "Admin login required", nil)
			return
		}
		c.Set(adminGuardKey, guard)
		c.Next()
	}
}

func adminGuard(c *gin.Context) service.Authorizer {
	return c.MustGet(adminGuardKey).(*service.AdminGuard)
}

// adminLogin handles POST /admin/login
func (h *Handler) adminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.sessions.Admin(sessionID(c)).Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		abortWithError(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Login failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "session": session})
}

// adminLogout handles POST /admin/logout
func (h *Handler) adminLogout(c *gin.Context) {
	if err := h.sessions.Admin(sessionID(c)).Logout(c.Request.Context()); err != nil {
		abortWithError(c, http.StatusInternalServerError, "Logout failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// adminSession handles GET /admin/session
func (h *Handler) adminSession(c *gin.Context) {
	session := h.sessions.Admin(sessionID(c)).CurrentSession(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"logged_in": session != nil,
		"session":   session,
	})
}

func mutationResponse(c *gin.Context, res *service.MutationResult, created bool) {
	if res.Outcome != service.OutcomeOK {
		c.JSON(statusFor(res.Outcome, res.Err), gin.H{
			"success": false,
			"error":   errorMessage(res.Err),
		})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	body := gin.H{"success": true, "id": res.ID, "source": res.Source}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	c.JSON(status, body)
}

// addProduct handles POST /admin/products
func (h *Handler) addProduct(c *gin.Context) {
	var in models.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	mutationResponse(c, h.catalog.AddProduct(c.Request.Context(), adminGuard(c), &in), true)
}

// updateProduct handles PUT /admin/products/:id
func (h *Handler) updateProduct(c *gin.Context) {
	var in models.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	mutationResponse(c, h.catalog.UpdateProduct(c.Request.Context(), adminGuard(c), c.Param("id"), &in), false)
}

// deleteProduct handles DELETE /admin/products/:id
func (h *Handler) deleteProduct(c *gin.Context) {
	mutationResponse(c, h.catalog.DeleteProduct(c.Request.Context(), adminGuard(c), c.Param("id")), false)
}

// uploadImage handles POST /admin/images as multipart form field "image"
func (h *Handler) uploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Missing image file", err)
		return
	}
	if err := h.catalog.CheckImageSize(file.Size); err != nil {
		c.JSON(statusFor(service.OutcomeValidationFailed, err), gin.H{
			"success": false,
			"error":   errorMessage(err),
		})
		return
	}

	f, err := file.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Unreadable image file", err)
		return
	}
	defer f.Close()

	var r io.Reader = f
	if limit := h.catalog.MaxImageBytes(); limit > 0 {
		// one byte past the limit still trips the size check below
		r = io.LimitReader(f, int64(limit)+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Unreadable image file", err)
		return
	}

	res := h.catalog.UploadProductImage(c.Request.Context(), adminGuard(c), data, c.PostForm("product_id"))
	if res.Outcome != service.OutcomeOK {
		c.JSON(statusFor(res.Outcome, res.Err), gin.H{
			"success": false,
			"error":   errorMessage(res.Err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     res.URL,
		"bytes":   res.Bytes,
	})
}

// diagnostics handles GET /admin/diagnostics
func (h *Handler) diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.DiagnoseConnection(c.Request.Context()))
}
