package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/pkg/response"
)

// RequireRole gates a route group to the given roles. Must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString("role")
		if _, ok := allowed[role]; !ok {
			response.Error(c, http.StatusForbidden, response.CodeUnauthorised, "insufficient role for this operation")
			c.Abort()
			return
		}
		c.Next()
	}
}
