package http

import (
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/auth"
	coverstore "github.com/ama13/bookshelf/internal/covers"
	"github.com/ama13/bookshelf/internal/database"
	"github.com/ama13/bookshelf/internal/database/audit"
	"github.com/ama13/bookshelf/internal/database/books"
	coversdb "github.com/ama13/bookshelf/internal/database/covers"
	"github.com/ama13/bookshelf/internal/database/collections"
	"github.com/ama13/bookshelf/internal/database/reviews"
	"github.com/ama13/bookshelf/internal/text"
)

// RouterConfig carries every dependency the router wires together, keeping
// NewRouter's signature stable as concerns are added.
type RouterConfig struct {
	Database       *database.Database
	SessionManager *auth.SessionManager
	AuthService    *auth.Service
	AuthController *auth.Controller
	CoverStore     *coverstore.Store
	CSRFSecret     []byte
	SecureCookies  bool
	TemplatesPath  string
	StaticPath     string
	Version        string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware())

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}
	router.Use(cfg.SessionManager.SessionLoadSave())

	authMiddleware := auth.NewMiddleware(cfg.AuthService, cfg.SessionManager)
	router.Use(authMiddleware.Handler())

	funcMap := template.FuncMap{
		"add":      func(a, b int) int { return a + b },
		"sub":      func(a, b int) int { return a - b },
		"markdown": text.RenderMarkdown,
	}
	tmpl := template.Must(template.New("").Funcs(funcMap).ParseGlob(cfg.TemplatesPath + "/*.html"))
	router.SetHTMLTemplate(tmpl)

	router.Static("/static", cfg.StaticPath)
	router.Static("/covers", cfg.CoverStore.Dir())

	cfg.AuthController.RegisterRoutes(router)

	pages := &pages{sessions: cfg.SessionManager}
	auditor := audit.NewRepository(cfg.Database.DB)
	booksRepo := books.NewRepository(cfg.Database.DB)
	coversRepo := coversdb.NewRepository(cfg.Database.DB)
	reviewsRepo := reviews.NewRepository(cfg.Database.DB)
	collectionsRepo := collections.NewRepository(cfg.Database.DB)

	booksController := NewBooksController(pages, booksRepo, coversRepo, cfg.CoverStore, reviewsRepo, collectionsRepo, auditor)
	reviewsController := NewReviewsController(pages, booksRepo, reviewsRepo, auditor)
	collectionsController := NewCollectionsController(pages, collectionsRepo, booksRepo)
	auditController := NewAuditController(pages, auditor)
	health := NewHealthController(cfg.Database, cfg.Version)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Catalog
	router.GET("/", booksController.Index)
	router.GET("/index", booksController.Index)
	router.GET("/add_book", booksController.AddBookPage)
	router.POST("/add_book", booksController.AddBook)
	router.GET("/edit_book/:book_id", booksController.EditBookPage)
	router.POST("/edit_book/:book_id", booksController.EditBook)
	router.POST("/delete_book/:book_id", booksController.DeleteBook)
	router.GET("/view_book/:book_id", booksController.ViewBook)

	// Reviews
	router.GET("/add_review/:book_id", reviewsController.AddReviewPage)
	router.POST("/add_review/:book_id", reviewsController.AddReview)

	// Collections
	router.GET("/collections", collectionsController.List)
	router.POST("/collections", collectionsController.Create)
	router.GET("/collection/:collection_id", collectionsController.View)
	router.POST("/add_to_collection/:book_id", collectionsController.AddBook)

	// Admin
	router.GET("/audit", auditController.List)

	return router
}
