package api

import (
	"merit_system/internal/domain" // Importing domain models
	"merit_system/internal/engine" // Allocation engine
	"net/http"                     // HTTP status codes
	"strconv"                      // String conversion

	"github.com/gin-gonic/gin" // Gin web framework
)

// RuleRequest represents a permission rule upsert
type RuleRequest struct {
	Role       domain.Role    `json:"role" binding:"required"`   // Role the rule applies to
	Action     domain.Action  `json:"action" binding:"required"` // Action the rule gates
	Allowed    bool           `json:"allowed"`                   // Base permission
	Conditions map[string]any `json:"conditions"`                // Named condition flags
}

// ResetRequest optionally narrows a quota reset to one user
type ResetRequest struct {
	UserID string `json:"user_id"` // Empty resets the whole community
}

// ListPermissionsHandler returns the community's permission rules
func ListPermissionsHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		rules, err := eng.GetPermissionRules(c.Request.Context(), c.Param("communityID"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rules": rules})
	}
}

// UpsertPermissionHandler creates or replaces a permission rule
func UpsertPermissionHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RuleRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
			return
		}
		rule, err := eng.UpsertPermissionRule(c.Request.Context(), c.Param("communityID"), req.Role, req.Action, req.Allowed, req.Conditions)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rule": rule})
	}
}

// ResetQuotaHandler resets today's quota usage
func ResetQuotaHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetRequest // Body is optional
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
				return
			}
		}
		n, err := eng.ResetDailyQuota(c.Request.Context(), c.GetString("userID"), c.Param("communityID"), req.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": n})
	}
}

// ListLedgerHandler returns ledger entries, with optional filtering by user or kind
func ListLedgerHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := domain.LedgerFilter{
			UserID: c.Query("user_id"),                // Filter by acting user
			Kind:   domain.EntryKind(c.Query("kind")), // Filter by entry kind
		}
		// Check and set page number and size from query params
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				filter.Page = v // Set page if valid
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				filter.PageSize = v // Set page size if valid
			}
		}
		entries, total, err := eng.ListLedger(c.Request.Context(), c.Param("communityID"), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		page, pageSize := 1, 20 // Defaults mirrored from the store
		if filter.Page > 0 {
			page = filter.Page
		}
		if filter.PageSize > 0 {
			pageSize = filter.PageSize
		}
		totalPages := (int(total) + pageSize - 1) / pageSize // Calculate total pages
		c.JSON(http.StatusOK, gin.H{
			"entries":     entries,    // Ledger entries
			"page":        page,       // Current page
			"page_size":   pageSize,   // Page size
			"total":       total,      // Total entries
			"total_pages": totalPages, // Total pages
		})
	}
}
