package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/auth"
	"github.com/ama13/bookshelf/internal/database/audit"
)

const auditPerPage = 50

// AuditController serves the admin-only audit trail.
type AuditController struct {
	pages   *pages
	auditor *audit.Repository
}

func NewAuditController(pages *pages, auditor *audit.Repository) *AuditController {
	return &AuditController{pages: pages, auditor: auditor}
}

// List renders recorded events, newest first.
func (ctrl *AuditController) List(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil || !user.IsAdmin() {
		ctrl.pages.redirectWithFlash(c, "danger", "Insufficient permissions", "/")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	events, total, err := ctrl.auditor.GetEvents(0, auditPerPage, (page-1)*auditPerPage)
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Failed to load the audit trail", "/")
		return
	}

	ctrl.pages.render(c, "audit", gin.H{
		"Title":   "Audit trail",
		"Events":  events,
		"Page":    page,
		"HasNext": total > int64(page)*auditPerPage,
	})
}
