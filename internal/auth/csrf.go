package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// ContextKeyCSRFToken is the gin context key templates read the token from.
const ContextKeyCSRFToken = "csrf_token"

// CSRFMiddleware creates a Gin middleware for CSRF protection over the form
// endpoints. Safe methods (GET, HEAD, OPTIONS, TRACE) pass through untouched.
func CSRFMiddleware(secret []byte, secure bool) gin.HandlerFunc {
	csrfProtect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		// gorilla/csrf assumes https when validating the Origin header.
		// Deployments without TLS terminate nowhere, so tell it the truth
		// about the scheme or every browser form POST fails origin checks.
		if !secure {
			c.Request = csrf.PlaintextHTTPRequest(c.Request)
		}

		passed := false
		handler := csrfProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			// Expose the token to templates; session middleware runs after
			// this and layers its context on top of CSRF's.
			c.Set(ContextKeyCSRFToken, csrf.Token(r))
			c.Request = r
			c.Next()
		}))

		handler.ServeHTTP(c.Writer, c.Request)

		// A rejected request never reaches the inner handler: gorilla/csrf
		// has already written the error response, so stop gin from running
		// the rest of the chain against it.
		if !passed {
			c.Abort()
		}
	}
}

// GetCSRFToken returns the request's CSRF token for form rendering.
func GetCSRFToken(c *gin.Context) string {
	token, _ := c.Get(ContextKeyCSRFToken)
	s, _ := token.(string)
	return s
}

// csrfErrorHandler sends expired-form submissions back where they came from
// with a notice instead of a bare 403.
func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	referer := r.Referer()
	if referer != "" {
		separator := "?"
		if strings.Contains(referer, "?") {
			separator = "&"
		}
		http.Redirect(w, r, referer+separator+"error=Session+expired.+Please+try+again.", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("<html><body><h1>Forbidden</h1><p>CSRF token invalid or missing.</p></body></html>"))
}
