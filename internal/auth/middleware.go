package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SnapshotAuth accepts a request only when its link token was issued for the
// file named by the :name path parameter. The token is read from ?token= or
// a bearer Authorization header.
func SnapshotAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			authz := c.GetHeader("Authorization")
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				tokenStr = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing token"})
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil || claims.Subject != c.Param("name") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}
