package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/auth"
)

// pages wires the cross-cutting template data (current user, flash messages,
// CSRF token) into every render so individual handlers only pass their own
// view model.
type pages struct {
	sessions *auth.SessionManager
}

func (p *pages) render(c *gin.Context, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["CurrentUser"] = auth.CurrentUser(c)
	data["Flashes"] = p.sessions.PopFlashes(c.Request)
	data["CSRFToken"] = auth.GetCSRFToken(c)
	c.HTML(http.StatusOK, name, data)
}

// redirectWithFlash is the convergent error path: not-found, forbidden and
// post-success notices all flash a message and send the user somewhere whole.
func (p *pages) redirectWithFlash(c *gin.Context, category, message, location string) {
	p.sessions.AddFlash(c.Request, category, message)
	c.Redirect(http.StatusFound, location)
}
