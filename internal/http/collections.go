package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/auth"
	"github.com/ama13/bookshelf/internal/database/books"
	"github.com/ama13/bookshelf/internal/database/collections"
	"github.com/ama13/bookshelf/internal/policy"
)

// CollectionsController serves the user's private collections.
type CollectionsController struct {
	pages       *pages
	collections *collections.Repository
	books       *books.Repository
}

func NewCollectionsController(pages *pages, collectionsRepo *collections.Repository, booksRepo *books.Repository) *CollectionsController {
	return &CollectionsController{
		pages:       pages,
		collections: collectionsRepo,
		books:       booksRepo,
	}
}

// List shows the current user's collections with their book counts.
func (ctrl *CollectionsController) List(c *gin.Context) {
	user := auth.CurrentUser(c)

	items, err := ctrl.collections.ForUser(user.ID)
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger",
			fmt.Sprintf("Failed to load collections. Error: %s", err), "/")
		return
	}

	ctrl.pages.render(c, "collections", gin.H{
		"Title":       "My collections",
		"Collections": items,
	})
}

// Create adds a new named collection owned by the current user.
func (ctrl *CollectionsController) Create(c *gin.Context) {
	user := auth.CurrentUser(c)
	name := strings.TrimSpace(c.PostForm("name"))

	if _, err := ctrl.collections.Create(name, user.ID); err != nil {
		if errors.Is(err, collections.ErrNameRequired) {
			ctrl.pages.redirectWithFlash(c, "danger", "Collection name is required", "/collections")
			return
		}
		ctrl.pages.redirectWithFlash(c, "danger",
			fmt.Sprintf("Failed to create the collection. Error: %s", err), "/collections")
		return
	}

	ctrl.pages.redirectWithFlash(c, "success", "Collection created", "/collections")
}

// View shows a collection's member books. Only the owner may look.
func (ctrl *CollectionsController) View(c *gin.Context) {
	user := auth.CurrentUser(c)

	id, err := strconv.ParseUint(c.Param("collection_id"), 10, 32)
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Collection not found", "/collections")
		return
	}

	collection, err := ctrl.collections.GetByID(uint(id))
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Collection not found", "/collections")
		return
	}

	if !policy.CanViewCollection(user, collection) {
		ctrl.pages.redirectWithFlash(c, "danger", "Insufficient permissions", "/")
		return
	}

	ctrl.pages.render(c, "collection", gin.H{
		"Title":      collection.Name,
		"Collection": collection,
	})
}

// AddBook links a book into one of the current user's collections. Repeat
// submissions are harmless.
func (ctrl *CollectionsController) AddBook(c *gin.Context) {
	user := auth.CurrentUser(c)

	bookID, err := strconv.ParseUint(c.Param("book_id"), 10, 32)
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Book not found", "/")
		return
	}
	if _, err := ctrl.books.GetByID(uint(bookID)); err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Book not found", "/")
		return
	}
	backToBook := fmt.Sprintf("/view_book/%d", bookID)

	collectionID, err := strconv.ParseUint(c.PostForm("collection_id"), 10, 32)
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Collection not found", backToBook)
		return
	}

	collection, err := ctrl.collections.GetByID(uint(collectionID))
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Collection not found", backToBook)
		return
	}
	if !policy.CanViewCollection(user, collection) {
		ctrl.pages.redirectWithFlash(c, "danger", "Insufficient permissions", backToBook)
		return
	}

	err = ctrl.collections.AddBook(collection.ID, uint(bookID))
	if err != nil {
		if errors.Is(err, collections.ErrBookAlreadyAdded) {
			ctrl.pages.redirectWithFlash(c, "warning", "The book is already in this collection", backToBook)
			return
		}
		ctrl.pages.redirectWithFlash(c, "danger",
			fmt.Sprintf("Failed to add the book to the collection. Error: %s", err), backToBook)
		return
	}

	ctrl.pages.redirectWithFlash(c, "success", "Book added to the collection", backToBook)
}
