package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/auth"
)

const ctxKeyIdentity = "identity"

// RequireAuth resolves the bearer token through the Authorizer and stores
// the identity on the context. 401 on anything else.
func RequireAuth(a auth.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c)
			return
		}

		id, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(ctxKeyIdentity, id)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			unauthorized(c)
			return
		}
		if id.Role != auth.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":      "forbidden",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      "authentication required",
		"request_id": GetRequestID(c),
	})
}
