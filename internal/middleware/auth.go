package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tradiehub/messaging-api/internal/identity"
)

// Context keys set by Authenticate for downstream handlers.
const (
	PrincipalIDKey   = "principalID"
	PrincipalRoleKey = "principalRole"
)

// Authenticate verifies the Bearer token on every request and stores the
// principal on the request context. Requests without a valid token are
// rejected before reaching any handler.
func Authenticate(verifier *identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "missing or malformed authorization header",
			})
			return
		}

		principal, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or expired token",
			})
			return
		}

		c.Set(PrincipalIDKey, principal.ID)
		c.Set(PrincipalRoleKey, principal.Role)
		c.Next()
	}
}

// PrincipalID returns the authenticated principal id from the request
// context, or "" when the request is unauthenticated.
func PrincipalID(c *gin.Context) string {
	return c.GetString(PrincipalIDKey)
}
