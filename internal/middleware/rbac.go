package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

// CapabilityChecker decides whether a role holds a capability.
type CapabilityChecker interface {
	Can(role string, capability rbac.Capability) bool
}

// RequireCapability passes when the caller's role holds any of the listed
// capabilities.
func RequireCapability(access CapabilityChecker, capabilities ...rbac.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		for _, capability := range capabilities {
			if access.Can(claims.Role, capability) {
				c.Next()
				return
			}
		}
		response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "your role cannot open this page"))
	}
}

// RequireFullTier rejects guest viewer sessions.
func RequireFullTier() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if claims.Tier != models.TierFull {
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "sign in with an account to do this"))
			return
		}
		c.Next()
	}
}
