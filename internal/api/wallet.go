package api

import (
	"merit_system/internal/engine" // Allocation engine
	"net/http"                     // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// GetWalletHandler returns the caller's wallet balance in the community
func GetWalletHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID") // Get userID from context
		balance, err := eng.GetWalletBalance(c.Request.Context(), userID, c.Param("communityID"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "community_id": c.Param("communityID"), "balance": balance})
	}
}

// GetQuotaHandler returns the caller's quota for today
func GetQuotaHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := eng.GetQuotaStatus(c.Request.Context(), c.GetString("userID"), c.Param("communityID"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
