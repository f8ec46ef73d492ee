package middleware

import (
	"errors"                       // Error matching
	"merit_system/internal/domain" // Importing domain models
	"merit_system/internal/engine" // Permission checks
	"net/http"                     // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// ActorRole resolves the caller's role in the community named by the
// :communityID path parameter. A superadmin token claim takes precedence.
func ActorRole(c *gin.Context, eng *engine.Engine) (domain.Role, error) {
	if domain.Role(c.GetString("globalRole")) == domain.RoleSuperadmin {
		return domain.RoleSuperadmin, nil
	}
	return eng.ResolveRole(c.Request.Context(), c.GetString("userID"), c.Param("communityID"))
}

// RequirePermission lets the request through only if the caller's role may
// perform action in the community, as decided by the community's rules
func RequirePermission(eng *engine.Engine, action domain.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID") // Get userID from context
		// Check if userID exists in context
		if userID == "" {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		role, err := ActorRole(c, eng) // Resolve the caller's role
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve role"})
			return
		}
		// Evaluate the community's rule for this action
		if err := eng.Authorize(c.Request.Context(), userID, c.Param("communityID"), role, action); err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not allowed", "code": "forbidden"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Permission check failed"})
			return
		}
		c.Set("role", role) // Expose the resolved role to handlers
		c.Next()            // Proceed to the next handler
	}
}
