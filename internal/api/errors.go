package api

import (
	"errors"                       // Error matching
	"merit_system/internal/domain" // Importing domain errors
	"net/http"                     // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// errorStatus maps engine errors to an HTTP status and a stable code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInsufficientQuota):
		return http.StatusUnprocessableEntity, "insufficient_quota"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err as JSON; unexpected errors are logged and hidden
func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString("requestID"), // Request ID
			"user_id":    c.GetString("userID"),    // Acting user
			"path":       c.FullPath(),             // Route
			"error":      err.Error(),              // Error message
		}).Error("request failed")
		c.JSON(status, gin.H{"error": "Internal error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
