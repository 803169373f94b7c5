package middleware

import (
	"net/http"
	"strconv"

	"github.com/academy-ledger/internal/platform/authz"
	"github.com/gin-gonic/gin"
)

const (
	// ActorIDHeader and ActorRolesHeader are set by the authenticating proxy in front of the admin API
	ActorIDHeader    = "X-Actor-ID"
	ActorRolesHeader = "X-Actor-Roles"

	ActorKey = "actor"
)

// Actor reads the upstream identity headers. Requests without a valid actor id pass
// through anonymous; RequireCapability rejects them where it matters.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(ActorIDHeader); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				c.Set(ActorKey, authz.Actor{ID: id, Roles: authz.ParseRoles(c.GetHeader(ActorRolesHeader))})
			}
		}
		c.Next()
	}
}

// GetActor returns the actor attached by Actor
func GetActor(c *gin.Context) (authz.Actor, bool) {
	if v, exists := c.Get(ActorKey); exists {
		if actor, ok := v.(authz.Actor); ok {
			return actor, true
		}
	}
	return authz.Actor{}, false
}

func abortWithError(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}

// RequireCapability answers 401 without an actor and 403 when no role grants capability
func RequireCapability(checker *authz.Checker, capability authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Actor identity required")
			return
		}
		if !checker.Can(actor, capability) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Missing capability "+string(capability))
			return
		}
		c.Next()
	}
}
