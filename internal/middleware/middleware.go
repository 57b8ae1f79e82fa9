package middleware

import (
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"

	"github.com/agrosight/ndvi-vault/internal/api/respond"
	"github.com/agrosight/ndvi-vault/internal/apperr"
	"github.com/agrosight/ndvi-vault/internal/auth"
)

// identityKey is the context key the authenticated identity is stored under.
const identityKey = "identity"

// CORSMiddleware allows cross-origin requests from the portal frontend.
func CORSMiddleware() ginext.HandlerFunc {
	return func(c *ginext.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequireAuth verifies the bearer token and stores the caller's identity on
// the request context. Requests without a valid token are rejected with 401.
func RequireAuth(secret string) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respond.Error(c, apperr.Auth("authentication required"))
			c.Abort()
			return
		}

		ident, err := auth.ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respond.Error(c, err)
			c.Abort()
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

// RequireAdmin rejects non-admin callers. It must run after RequireAuth.
func RequireAdmin() ginext.HandlerFunc {
	return func(c *ginext.Context) {
		ident, ok := IdentityFrom(c)
		if !ok || !ident.IsAdmin() {
			respond.Error(c, apperr.Authorization("admin access required"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// IdentityFrom returns the authenticated identity stored by RequireAuth.
func IdentityFrom(c *ginext.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}

	ident, ok := v.(auth.Identity)
	return ident, ok
}
