package auth

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/entities"
)

// ContextKeyUser is the gin context key holding the resolved *entities.User.
const ContextKeyUser = "auth_user"

// Middleware resolves each request's session to a full user record and blocks
// anonymous access to everything outside the public paths.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	publicPaths    map[string]bool
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	publicPaths := map[string]bool{
		"/health":      true,
		"/ping":        true,
		"/auth/login":  true,
		"/auth/logout": true,
		"/favicon.ico": true,
	}

	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		publicPaths:    publicPaths,
	}
}

// Handler returns a Gin middleware that authenticates requests.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		if user := m.resolveSessionUser(c); user != nil {
			c.Set(ContextKeyUser, user)
			c.Next()
			return
		}

		// A stale session (missing cookie or a user row deleted underneath
		// it) and no session at all land in the same place. The query string
		// rides along so re-login lands back on the same page.
		next := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			next += "?" + q
		}
		c.Redirect(302, "/auth/login?next="+url.QueryEscape(next))
		c.Abort()
	}
}

// resolveSessionUser maps the session's stored id to a user row. A lookup
// miss is treated as anonymous.
func (m *Middleware) resolveSessionUser(c *gin.Context) *entities.User {
	userID := m.sessionManager.GetUserID(c.Request)
	if userID == 0 {
		return nil
	}

	user, err := m.service.GetUserByID(userID)
	if err != nil {
		return nil
	}
	return user
}

func (m *Middleware) isPublicPath(path string) bool {
	if m.publicPaths[path] {
		return true
	}
	return strings.HasPrefix(path, "/static/")
}

// CurrentUser returns the authenticated user the middleware stored on the
// context, or nil for public paths.
func CurrentUser(c *gin.Context) *entities.User {
	value, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := value.(*entities.User)
	if !ok {
		return nil
	}
	return user
}
