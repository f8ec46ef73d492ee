package api

import (
	"merit_system/internal/domain" // Importing domain models
	"merit_system/internal/engine" // Allocation engine
	"net/http"                     // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// SettingsRequest represents a community's economic policy
type SettingsRequest struct {
	DailyAllowance  int64             `json:"daily_allowance" binding:"gte=0"`  // Quota granted per period
	StartingBalance int64             `json:"starting_balance" binding:"gte=0"` // Balance of a new wallet
	VotingMode      domain.VotingMode `json:"voting_mode"`                      // Empty means quota_and_wallet
}

// MemberRequest represents a user's role in a community
type MemberRequest struct {
	Role   domain.Role `json:"role" binding:"required"` // Role within the community
	TeamID string      `json:"team_id"`                 // Team, if any
}

// EntityRequest represents the ownership facts of a publication, vote or poll
type EntityRequest struct {
	AuthorID             string `json:"author_id" binding:"required"`                   // Author
	BeneficiaryID        string `json:"beneficiary_id"`                                 // Paid on withdrawal instead of the author
	TeamID               string `json:"team_id"`                                        // Team the entity belongs to
	InvestorSharePercent int    `json:"investor_share_percent" binding:"gte=0,lte=100"` // Share owed to investors
}

// SaveSettingsHandler creates or replaces the community's settings
func SaveSettingsHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SettingsRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
			return
		}
		settings := domain.Community{
			ID:              c.Param("communityID"),
			DailyAllowance:  req.DailyAllowance,
			StartingBalance: req.StartingBalance,
			VotingMode:      req.VotingMode,
		}
		if err := eng.SaveCommunity(c.Request.Context(), settings); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": settings})
	}
}

// SaveMemberHandler assigns a user's role and team in the community
func SaveMemberHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MemberRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
			return
		}
		member := domain.Membership{
			UserID:      c.Param("userID"),
			CommunityID: c.Param("communityID"),
			Role:        req.Role,
			TeamID:      req.TeamID,
		}
		if err := eng.SaveMembership(c.Request.Context(), member); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"member": member})
	}
}

// RegisterEntityHandler records who owns a publication, vote or poll
func RegisterEntityHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EntityRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
			return
		}
		entity := domain.Entity{
			ID:                   c.Param("id"),
			Type:                 domain.TargetType(c.Param("type")),
			CommunityID:          c.Param("communityID"),
			AuthorID:             req.AuthorID,
			BeneficiaryID:        req.BeneficiaryID,
			TeamID:               req.TeamID,
			InvestorSharePercent: req.InvestorSharePercent,
		}
		if err := eng.RegisterEntity(c.Request.Context(), entity); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entity": entity})
	}
}
