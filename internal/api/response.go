package api

import (
	"errors"
	"net/http"

	"figmist-store/internal/service"

	"github.com/gin-gonic/gin"
)

// statusFor maps a result variant to an HTTP status
func statusFor(outcome service.Outcome, err error) int {
	if errors.Is(err, service.ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	switch outcome {
	case service.OutcomeOK:
		return http.StatusOK
	case service.OutcomeNotFound:
		return http.StatusNotFound
	case service.OutcomeUnavailable:
		return http.StatusServiceUnavailable
	case service.OutcomeQuotaExceeded:
		return http.StatusInsufficientStorage
	case service.OutcomeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func abortWithError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"success": false, "error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
