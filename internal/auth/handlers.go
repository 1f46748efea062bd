package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/config"
	"github.com/ama13/bookshelf/internal/database/audit"
	"github.com/ama13/bookshelf/internal/entities"
)

// isLocalPath validates that a redirect path is local to prevent open
// redirect attacks.
func isLocalPath(path string) bool {
	if path == "" {
		return false
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}
	// Protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}
	if strings.Contains(path, "://") {
		return false
	}
	if strings.Contains(path, "\\") {
		return false
	}
	return true
}

// sanitizeRedirectPath returns a safe redirect path, defaulting to "/".
func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return "/"
}

// Controller handles the login and logout endpoints.
type Controller struct {
	service        *Service
	sessionManager *SessionManager
	rateLimiter    *RateLimiter
	auditor        *audit.Repository
}

// NewController creates a new authentication controller.
func NewController(service *Service, sessionManager *SessionManager, auditor *audit.Repository, cfg config.Auth) *Controller {
	rateLimiter := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     cfg.MaxLoginAttempts,
		WindowDuration:  cfg.RateLimitWindow,
		LockoutDuration: cfg.LockoutDuration,
	})

	return &Controller{
		service:        service,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		auditor:        auditor,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ctrl *Controller) RegisterRoutes(router *gin.Engine) {
	router.GET("/auth/login", ctrl.LoginPage)
	router.POST("/auth/login", ctrl.Login)
	router.GET("/auth/logout", ctrl.Logout)
}

// Stop cleans up the rate limiter's background goroutine.
func (ctrl *Controller) Stop() {
	if ctrl.rateLimiter != nil {
		ctrl.rateLimiter.Stop()
	}
}

// LoginPage renders the login form.
func (ctrl *Controller) LoginPage(c *gin.Context) {
	if ctrl.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	next := sanitizeRedirectPath(c.Query("next"))

	c.HTML(http.StatusOK, "login", gin.H{
		"Title":     "Login",
		"Next":      next,
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// Login handles the login form submission. Missing users and wrong passwords
// both produce the same generic message.
func (ctrl *Controller) Login(c *gin.Context) {
	login := c.PostForm("login")
	password := c.PostForm("password")
	remember := c.PostForm("remember") != ""
	next := sanitizeRedirectPath(c.PostForm("next"))
	clientIP := c.ClientIP()

	renderError := func(message string) {
		c.HTML(http.StatusOK, "login", gin.H{
			"Title":     "Login",
			"Next":      next,
			"Login":     login,
			"CSRFToken": GetCSRFToken(c),
			"Error":     message,
		})
	}

	if allowed, retryAfter := ctrl.rateLimiter.Allow(clientIP, login); !allowed {
		c.Header("Retry-After", retryAfter.String())
		renderError("Too many login attempts. Please try again later.")
		return
	}

	user, err := ctrl.service.Authenticate(login, password)
	if err != nil {
		ctrl.rateLimiter.RecordFailure(clientIP, login)
		ctrl.auditor.Record(&entities.AuditEvent{
			EventType: entities.AuditEventAuth,
			Action:    "login",
			IPAddress: clientIP,
			Status:    entities.AuditStatusFailed,
			ErrorMsg:  err.Error(),
		})

		message := "Invalid login or password"
		if !errors.Is(err, ErrBadCredentials) {
			message = "Login failed. Please try again."
		}
		renderError(message)
		return
	}

	ctrl.rateLimiter.RecordSuccess(clientIP, login)

	if err := ctrl.sessionManager.CreateSession(c.Request, user, remember); err != nil {
		renderError("Failed to create session")
		return
	}

	ctrl.auditor.Record(&entities.AuditEvent{
		UserID:    user.ID,
		EventType: entities.AuditEventAuth,
		Action:    "login",
		IPAddress: clientIP,
		Status:    entities.AuditStatusSuccess,
	})

	ctrl.sessionManager.AddFlash(c.Request, "success", "You are now logged in")
	c.Redirect(http.StatusFound, next)
}

// Logout destroys the session unconditionally and redirects to the index.
func (ctrl *Controller) Logout(c *gin.Context) {
	_ = ctrl.sessionManager.DestroySession(c.Request)
	c.Redirect(http.StatusFound, "/")
}
