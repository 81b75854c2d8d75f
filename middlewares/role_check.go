package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/library-seat-app/utils"
)

// RequireRoles lets the request through when the authenticated role is one
// of roles. Must run after AuthMiddleware.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		userRole, exists := c.Get(CtxRole)
		if !exists {
			utils.AbortWithError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			return
		}
		role, _ := userRole.(string)
		if !allowed[role] {
			utils.AbortWithError(c, http.StatusForbidden, fmt.Errorf("%s access required", strings.ToLower(strings.Join(roles, " or "))))
			return
		}
		c.Next()
	}
}
