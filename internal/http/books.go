package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/auth"
	coverstore "github.com/ama13/bookshelf/internal/covers"
	"github.com/ama13/bookshelf/internal/database/audit"
	"github.com/ama13/bookshelf/internal/database/books"
	coversdb "github.com/ama13/bookshelf/internal/database/covers"
	"github.com/ama13/bookshelf/internal/database/collections"
	"github.com/ama13/bookshelf/internal/database/reviews"
	"github.com/ama13/bookshelf/internal/entities"
	"github.com/ama13/bookshelf/internal/policy"
	"github.com/ama13/bookshelf/internal/text"
)

// BooksController serves the catalog pages: listing, detail, add, edit and
// delete.
type BooksController struct {
	pages       *pages
	books       *books.Repository
	covers      *coversdb.Repository
	store       *coverstore.Store
	reviews     *reviews.Repository
	collections *collections.Repository
	auditor     *audit.Repository
}

func NewBooksController(
	pages *pages,
	booksRepo *books.Repository,
	coversRepo *coversdb.Repository,
	store *coverstore.Store,
	reviewsRepo *reviews.Repository,
	collectionsRepo *collections.Repository,
	auditor *audit.Repository,
) *BooksController {
	return &BooksController{
		pages:       pages,
		books:       booksRepo,
		covers:      coversRepo,
		store:       store,
		reviews:     reviewsRepo,
		collections: collectionsRepo,
		auditor:     auditor,
	}
}

// requireBookPermission loads the book named by the :book_id param (when
// action is record-scoped) and checks the policy. On failure it flashes and
// redirects to the index, mirroring the convergent forbidden/not-found path.
func (ctrl *BooksController) requireBookPermission(c *gin.Context, action policy.Action) (*entities.Book, bool) {
	user := auth.CurrentUser(c)

	var book *entities.Book
	if idStr := c.Param("book_id"); idStr != "" {
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			ctrl.pages.redirectWithFlash(c, "danger", "Book not found", "/")
			c.Abort()
			return nil, false
		}
		book, err = ctrl.books.GetByID(uint(id))
		if err != nil {
			ctrl.pages.redirectWithFlash(c, "danger", "Book not found", "/")
			c.Abort()
			return nil, false
		}
	}

	if !policy.Can(user, action, book) {
		ctrl.pages.redirectWithFlash(c, "danger", "Insufficient permissions", "/")
		c.Abort()
		return nil, false
	}

	return book, true
}

// Index renders the paginated catalog.
func (ctrl *BooksController) Index(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	listing, err := ctrl.books.ListPage(page)
	if err != nil {
		c.String(http.StatusInternalServerError, "Error loading books: %s", err.Error())
		return
	}

	ctrl.pages.render(c, "index", gin.H{
		"Title":   "Catalog",
		"Books":   listing.Books,
		"Page":    listing.Number,
		"HasNext": listing.HasNext,
	})
}

// bookForm is the shared shape of the add/edit book forms.
type bookForm struct {
	Title       string
	Description string
	Year        int
	Publisher   string
	Author      string
	Pages       int
	GenreIDs    []uint
}

func parseBookForm(c *gin.Context) bookForm {
	year, _ := strconv.Atoi(c.PostForm("year"))
	pageCount, _ := strconv.Atoi(c.PostForm("pages"))

	var genreIDs []uint
	for _, raw := range c.PostFormArray("genres") {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			genreIDs = append(genreIDs, uint(id))
		}
	}

	return bookForm{
		Title:       c.PostForm("title"),
		Description: text.Sanitize(c.PostForm("description")),
		Year:        year,
		Publisher:   c.PostForm("publisher"),
		Author:      c.PostForm("author"),
		Pages:       pageCount,
		GenreIDs:    genreIDs,
	}
}

// AddBookPage renders the empty book form.
func (ctrl *BooksController) AddBookPage(c *gin.Context) {
	if _, ok := ctrl.requireBookPermission(c, policy.ActionCreate); !ok {
		return
	}

	allGenres, err := ctrl.books.AllGenres()
	if err != nil {
		c.String(http.StatusInternalServerError, "Error loading genres: %s", err.Error())
		return
	}

	ctrl.pages.render(c, "add_book", gin.H{
		"Title":          "Add book",
		"Book":           nil,
		"AllGenres":      allGenres,
		"SelectedGenres": map[uint]bool{},
	})
}

// AddBook handles the multipart submit: optional cover upload with
// content-hash dedup, then an atomic book+genres insert.
func (ctrl *BooksController) AddBook(c *gin.Context) {
	if _, ok := ctrl.requireBookPermission(c, policy.ActionCreate); !ok {
		return
	}
	user := auth.CurrentUser(c)
	form := parseBookForm(c)

	renderError := func(message string) {
		allGenres, _ := ctrl.books.AllGenres()
		selected := make(map[uint]bool, len(form.GenreIDs))
		for _, id := range form.GenreIDs {
			selected[id] = true
		}
		ctrl.pages.render(c, "add_book", gin.H{
			"Title":          "Add book",
			"Book":           &entities.Book{Title: form.Title, Description: form.Description, Year: form.Year, Publisher: form.Publisher, Author: form.Author, Pages: form.Pages},
			"AllGenres":      allGenres,
			"SelectedGenres": selected,
			"Error":          message,
		})
	}

	var coverID *uint
	if fileHeader, err := c.FormFile("cover"); err == nil && fileHeader.Size > 0 {
		id, err := ctrl.saveCover(fileHeader)
		if err != nil {
			renderError(fmt.Sprintf("Failed to store the cover file. Error: %s", err))
			return
		}
		coverID = id
	}

	book := &entities.Book{
		Title:       form.Title,
		Description: form.Description,
		Year:        form.Year,
		Publisher:   form.Publisher,
		Author:      form.Author,
		Pages:       form.Pages,
		CoverID:     coverID,
	}

	if err := ctrl.books.CreateWithGenres(book, form.GenreIDs); err != nil {
		renderError(fmt.Sprintf("Failed to save the book. Check the submitted data. Error: %s", err))
		return
	}

	ctrl.auditor.Record(&entities.AuditEvent{
		UserID:    user.ID,
		EventType: entities.AuditEventBook,
		Action:    "book_create",
		EntityID:  &book.ID,
		Status:    entities.AuditStatusSuccess,
	})

	ctrl.pages.redirectWithFlash(c, "success", "Book added", "/")
}

// saveCover deduplicates the uploaded file against existing covers by content
// hash; an identical upload reuses the previous row and file.
func (ctrl *BooksController) saveCover(fileHeader *multipart.FileHeader) (*uint, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	upload := ctrl.store.Describe(data, fileHeader.Filename)

	existing, err := ctrl.covers.FindByHash(upload.MD5Hash)
	if err == nil {
		return &existing.ID, nil
	}
	if !errors.Is(err, coversdb.ErrNotFound) {
		return nil, err
	}

	// Disk write happens before the row insert; a crash in between leaves an
	// orphaned file for the sweep to reclaim.
	if err := ctrl.store.Save(upload, data); err != nil {
		return nil, err
	}

	cover := &entities.Cover{
		FileName: upload.FileName,
		MimeType: upload.MimeType,
		MD5Hash:  upload.MD5Hash,
	}
	if err := ctrl.covers.Create(cover); err != nil {
		return nil, err
	}
	return &cover.ID, nil
}

// EditBookPage renders the form pre-filled with the current record.
func (ctrl *BooksController) EditBookPage(c *gin.Context) {
	book, ok := ctrl.requireBookPermission(c, policy.ActionEdit)
	if !ok {
		return
	}

	ctrl.renderEditForm(c, book, nil, "")
}

// EditBook updates the fields and replaces the genre set transactionally. On
// failure the form re-renders with the submitted values and the storage
// error; there is no redirect.
func (ctrl *BooksController) EditBook(c *gin.Context) {
	book, ok := ctrl.requireBookPermission(c, policy.ActionEdit)
	if !ok {
		return
	}
	user := auth.CurrentUser(c)
	form := parseBookForm(c)

	updated := &entities.Book{
		ID:          book.ID,
		Title:       form.Title,
		Description: form.Description,
		Year:        form.Year,
		Publisher:   form.Publisher,
		Author:      form.Author,
		Pages:       form.Pages,
	}

	if err := ctrl.books.UpdateWithGenres(updated, form.GenreIDs); err != nil {
		updated.CoverID = book.CoverID
		updated.Cover = book.Cover
		ctrl.renderEditForm(c, updated, form.GenreIDs,
			fmt.Sprintf("Failed to save the book. Check the submitted data. Error: %s", err))
		return
	}

	ctrl.auditor.Record(&entities.AuditEvent{
		UserID:    user.ID,
		EventType: entities.AuditEventBook,
		Action:    "book_edit",
		EntityID:  &book.ID,
		Status:    entities.AuditStatusSuccess,
	})

	ctrl.pages.redirectWithFlash(c, "success", "Book updated", "/")
}

func (ctrl *BooksController) renderEditForm(c *gin.Context, book *entities.Book, genreIDs []uint, errorMsg string) {
	allGenres, err := ctrl.books.AllGenres()
	if err != nil {
		c.String(http.StatusInternalServerError, "Error loading genres: %s", err.Error())
		return
	}

	if genreIDs == nil {
		genreIDs, _ = ctrl.books.GenreIDs(book.ID)
	}
	selected := make(map[uint]bool, len(genreIDs))
	for _, id := range genreIDs {
		selected[id] = true
	}

	ctrl.pages.render(c, "edit_book", gin.H{
		"Title":          "Edit book",
		"Book":           book,
		"AllGenres":      allGenres,
		"SelectedGenres": selected,
		"Error":          errorMsg,
	})
}

// DeleteBook removes the book and its dependents, then reclaims the cover
// file when no other book references it.
func (ctrl *BooksController) DeleteBook(c *gin.Context) {
	book, ok := ctrl.requireBookPermission(c, policy.ActionDelete)
	if !ok {
		return
	}
	user := auth.CurrentUser(c)

	coverID, err := ctrl.books.Delete(book.ID)
	if err != nil {
		if errors.Is(err, books.ErrNotFound) {
			ctrl.pages.redirectWithFlash(c, "danger", "Book not found", "/")
			return
		}
		ctrl.pages.redirectWithFlash(c, "danger",
			fmt.Sprintf("Failed to delete the book. Error: %s", err), "/")
		return
	}

	if coverID != nil {
		ctrl.removeCoverIfUnreferenced(*coverID)
	}

	ctrl.auditor.Record(&entities.AuditEvent{
		UserID:    user.ID,
		EventType: entities.AuditEventBook,
		Action:    "book_delete",
		EntityID:  &book.ID,
		Status:    entities.AuditStatusSuccess,
	})

	ctrl.pages.redirectWithFlash(c, "success", "Book deleted", "/")
}

// removeCoverIfUnreferenced deletes the cover row and its file only when no
// remaining book points at it. Deduplicated covers survive the delete of one
// of their books.
func (ctrl *BooksController) removeCoverIfUnreferenced(coverID uint) {
	refs, err := ctrl.covers.ReferenceCount(coverID)
	if err != nil || refs > 0 {
		return
	}

	cover, err := ctrl.covers.GetByID(coverID)
	if err != nil {
		return
	}
	_ = ctrl.store.Remove(cover.FileName)
	_ = ctrl.covers.Delete(coverID)
}

// ViewBook renders the detail page: the book, its reviews with reviewer
// names, the viewer's own review and collections, and the description pushed
// through the markdown pipeline.
func (ctrl *BooksController) ViewBook(c *gin.Context) {
	book, ok := ctrl.requireBookPermission(c, policy.ActionShow)
	if !ok {
		return
	}
	user := auth.CurrentUser(c)

	bookReviews, err := ctrl.reviews.ForBook(book.ID)
	if err != nil {
		c.String(http.StatusInternalServerError, "Error loading reviews: %s", err.Error())
		return
	}

	var userReview *entities.Review
	if review, err := ctrl.reviews.ForBookAndUser(book.ID, user.ID); err == nil {
		userReview = review
	}

	userCollections, err := ctrl.collections.ForUser(user.ID)
	if err != nil {
		c.String(http.StatusInternalServerError, "Error loading collections: %s", err.Error())
		return
	}

	ctrl.pages.render(c, "view_book", gin.H{
		"Title":           book.Title,
		"Book":            book,
		"Cover":           book.Cover,
		"Reviews":         bookReviews,
		"UserReview":      userReview,
		"UserCollections": userCollections,
		"DescriptionHTML": text.RenderMarkdown(book.Description),
	})
}
