package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// RequireSession resolves the bearer token to a user and aborts with a
// plain-text 401 when no valid session is present. Nothing downstream of
// this middleware runs for unauthenticated requests.
func RequireSession(repo Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.String(http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		u, err := repo.UserBySession(c.Request.Context(), token)
		if err != nil {
			c.String(http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// CurrentUser returns the user set by RequireSession, or nil.
func CurrentUser(c *gin.Context) *User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*User)
	return u
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
