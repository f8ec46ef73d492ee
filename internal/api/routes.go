package api

import (
	"merit_system/internal/domain"     // Importing domain models
	"merit_system/internal/engine"     // Allocation engine
	"merit_system/internal/middleware" // Middleware

	"github.com/gin-gonic/gin" // Gin web framework
)

// RegisterRoutes mounts every engine endpoint on r
func RegisterRoutes(r *gin.Engine, eng *engine.Engine, jwtSecret string) {
	r.Use(middleware.RequestIDMiddleware()) // Tag every request

	// Community routes (protected by JWT)
	community := r.Group("/communities/:communityID")
	community.Use(middleware.JWTAuthMiddleware(jwtSecret))
	community.POST("/votes", VoteHandler(eng))                                       // Vote endpoint
	community.POST("/polls/:pollID/casts", PollCastHandler(eng))                     // Poll cast endpoint
	community.POST("/publications/:publicationID/withdrawals", WithdrawHandler(eng)) // Withdrawal endpoint
	community.POST("/publications/:publicationID/investments", InvestHandler(eng))   // Investment endpoint
	community.GET("/wallet", GetWalletHandler(eng))                                  // Wallet balance endpoint
	community.GET("/quota", GetQuotaHandler(eng))                                    // Quota status endpoint

	// Admin routes, gated by the community's own permission rules
	rules := middleware.RequirePermission(eng, domain.ActionManageRules)
	community.GET("/permissions", rules, ListPermissionsHandler(eng))                                                  // List rules endpoint
	community.PUT("/permissions", rules, UpsertPermissionHandler(eng))                                                 // Upsert rule endpoint
	community.GET("/ledger", rules, ListLedgerHandler(eng))                                                            // Ledger endpoint
	community.POST("/quota/reset", middleware.RequirePermission(eng, domain.ActionResetQuota), ResetQuotaHandler(eng)) // Quota reset endpoint

	// Community data fed by the content and membership services
	manage := middleware.RequirePermission(eng, domain.ActionManageCommunity)
	community.PUT("/settings", manage, SaveSettingsHandler(eng))             // Economic policy endpoint
	community.PUT("/members/:userID", manage, SaveMemberHandler(eng))        // Membership endpoint
	community.PUT("/entities/:type/:id", manage, RegisterEntityHandler(eng)) // Entity registration endpoint
}
