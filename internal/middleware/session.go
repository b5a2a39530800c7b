package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"wholesale_catalog/pkg/logger"
	rediskey "wholesale_catalog/pkg/redis"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie carries the admin session token.
	SessionCookie = "admin_session"
	// AdminUserKey is the gin context key holding the logged-in username.
	AdminUserKey = "admin_user"
	LoginPath    = "/admin/login"
)

// SessionStore is what the admin surface needs from session storage.
type SessionStore interface {
	Create(ctx context.Context, username string) (rediskey.Session, error)
	Lookup(ctx context.Context, token string) (rediskey.Session, error)
	Delete(ctx context.Context, token string) error
}

// RequireAdmin lets the request through only with a live session. Browsers
// navigating (GET accepting HTML) are redirected to the login path; API
// callers get a 401 envelope.
func RequireAdmin(store SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookie)
		sess, err := store.Lookup(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, rediskey.ErrNoSession) {
				logger.Error(c.Request.Context(), "session lookup failed", "error", err)
			}
			if c.Request.Method == http.MethodGet && strings.Contains(c.GetHeader("Accept"), "text/html") {
				c.Redirect(http.StatusFound, LoginPath)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "Debe iniciar sesión"})
			return
		}
		c.Set(AdminUserKey, sess.Username)
		c.Next()
	}
}
