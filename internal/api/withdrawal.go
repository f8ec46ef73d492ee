package api

import (
	"merit_system/internal/domain" // Importing domain models
	"merit_system/internal/engine" // Allocation engine
	"net/http"                     // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// AmountRequest carries an amount and an optional retry key
type AmountRequest struct {
	Amount         int64  `json:"amount" binding:"gte=1"` // Amount to move
	IdempotencyKey string `json:"idempotency_key"`        // Optional retry key
}

// WithdrawHandler withdraws merit from a publication to its author and investors
func WithdrawHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AmountRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
			return
		}
		split, entry, err := eng.Withdraw(c.Request.Context(), domain.TargetPublication, c.Param("publicationID"),
			c.GetString("userID"), c.Param("communityID"), req.Amount, req.IdempotencyKey)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ledger_entry_id": entry.ID, "split": split})
	}
}

// InvestHandler invests wallet merit into a publication
func InvestHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AmountRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
			return
		}
		entry, err := eng.Invest(c.Request.Context(), c.GetString("userID"), c.Param("communityID"),
			c.Param("publicationID"), req.Amount, req.IdempotencyKey)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ledger_entry_id": entry.ID, "amount": entry.WalletAmount})
	}
}
