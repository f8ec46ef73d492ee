package middleware

import (
	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Request ID generation
	"github.com/sirupsen/logrus" // Structured logging
)

// RequestIDHeader carries the request ID in and out
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID and logs its outcome
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader) // Reuse the caller's ID when present
		if requestID == "" {
			requestID = uuid.NewString() // Otherwise mint one
		}
		c.Set("requestID", requestID)                     // Store for handlers
		c.Writer.Header().Set(RequestIDHeader, requestID) // Echo back to the caller
		c.Next()
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,             // Request ID
			"method":     c.Request.Method,      // HTTP method
			"path":       c.FullPath(),          // Route pattern
			"status":     c.Writer.Status(),     // Response status
			"user_id":    c.GetString("userID"), // Authenticated user, if any
		}).Debug("request handled")
	}
}
