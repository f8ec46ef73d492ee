package api

import (
	"merit_system/internal/domain"     // Importing domain models
	"merit_system/internal/engine"     // Allocation engine
	"merit_system/internal/middleware" // Role resolution
	"net/http"                         // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// VoteRequest represents a vote on a publication or on another vote
type VoteRequest struct {
	TargetType     domain.TargetType `json:"target_type" binding:"required"` // publication or vote
	TargetID       string            `json:"target_id" binding:"required"`   // Target entity
	Amount         int64             `json:"amount"`                         // Signed amount, negative downvotes
	VotingMode     domain.VotingMode `json:"voting_mode"`                    // Optional override of the community mode
	Comment        string            `json:"comment"`                        // Required for zero amount votes
	IdempotencyKey string            `json:"idempotency_key"`                // Optional retry key
}

// CastRequest represents a poll cast
type CastRequest struct {
	Amount         int64             `json:"amount" binding:"gte=1"` // Amount to cast
	VotingMode     domain.VotingMode `json:"voting_mode"`            // Optional override of the community mode
	IdempotencyKey string            `json:"idempotency_key"`        // Optional retry key
}

// AllocationResponse is returned for committed spends
type AllocationResponse struct {
	LedgerEntryID string `json:"ledger_entry_id"` // Ledger entry ID
	QuotaAmount   int64  `json:"quota_amount"`    // Drawn from quota
	WalletAmount  int64  `json:"wallet_amount"`   // Drawn from wallet
}

// VoteHandler spends merit on a publication or vote
func VoteHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VoteRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
			return
		}
		// Polls have their own endpoint
		if req.TargetType == domain.TargetPoll {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Use the poll cast endpoint", "code": "invalid_request"})
			return
		}
		spend(c, eng, domain.AllocationRequest{
			TargetType:      req.TargetType,
			TargetID:        req.TargetID,
			RequestedAmount: req.Amount,
			VotingMode:      req.VotingMode,
			Comment:         req.Comment,
			IdempotencyKey:  req.IdempotencyKey,
		})
	}
}

// PollCastHandler spends merit on a poll
func PollCastHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CastRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
			return
		}
		spend(c, eng, domain.AllocationRequest{
			TargetType:      domain.TargetPoll,
			TargetID:        c.Param("pollID"),
			RequestedAmount: req.Amount,
			VotingMode:      req.VotingMode,
			IdempotencyKey:  req.IdempotencyKey,
		})
	}
}

// spend runs a request through the engine on behalf of the caller
func spend(c *gin.Context, eng *engine.Engine, req domain.AllocationRequest) {
	userID := c.GetString("userID")       // Acting user
	communityID := c.Param("communityID") // Community from the path
	role, err := middleware.ActorRole(c, eng)
	if err != nil {
		respondError(c, err)
		return
	}
	entry, err := eng.Spend(c.Request.Context(), userID, communityID, role, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AllocationResponse{
		LedgerEntryID: entry.ID,
		QuotaAmount:   entry.QuotaAmount,
		WalletAmount:  entry.WalletAmount,
	})
}
