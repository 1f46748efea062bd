package http

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/auth"
	"github.com/ama13/bookshelf/internal/database/audit"
	"github.com/ama13/bookshelf/internal/database/books"
	"github.com/ama13/bookshelf/internal/database/reviews"
	"github.com/ama13/bookshelf/internal/entities"
	"github.com/ama13/bookshelf/internal/text"
)

// ReviewsController serves the add-review form and submit.
type ReviewsController struct {
	pages   *pages
	books   *books.Repository
	reviews *reviews.Repository
	auditor *audit.Repository
}

func NewReviewsController(pages *pages, booksRepo *books.Repository, reviewsRepo *reviews.Repository, auditor *audit.Repository) *ReviewsController {
	return &ReviewsController{
		pages:   pages,
		books:   booksRepo,
		reviews: reviewsRepo,
		auditor: auditor,
	}
}

// loadBook resolves the :book_id param; a miss flashes and redirects home.
func (ctrl *ReviewsController) loadBook(c *gin.Context) (*entities.Book, bool) {
	id, err := strconv.ParseUint(c.Param("book_id"), 10, 32)
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Book not found", "/")
		return nil, false
	}
	book, err := ctrl.books.GetByID(uint(id))
	if err != nil {
		ctrl.pages.redirectWithFlash(c, "danger", "Book not found", "/")
		return nil, false
	}
	return book, true
}

// AddReviewPage renders the review form, bouncing users who already reviewed
// the book.
func (ctrl *ReviewsController) AddReviewPage(c *gin.Context) {
	book, ok := ctrl.loadBook(c)
	if !ok {
		return
	}
	user := auth.CurrentUser(c)

	if _, err := ctrl.reviews.ForBookAndUser(book.ID, user.ID); err == nil {
		ctrl.pages.redirectWithFlash(c, "warning",
			"You have already reviewed this book",
			fmt.Sprintf("/view_book/%d", book.ID))
		return
	}

	ctrl.pages.render(c, "add_review", gin.H{
		"Title":  "Add review",
		"Book":   book,
		"Rating": 5,
		"Text":   "",
	})
}

// AddReview inserts the review. A duplicate (book, user) pair is rejected by
// the storage layer's unique index, so a concurrent double-submit cannot
// produce two rows.
func (ctrl *ReviewsController) AddReview(c *gin.Context) {
	book, ok := ctrl.loadBook(c)
	if !ok {
		return
	}
	user := auth.CurrentUser(c)

	rating, _ := strconv.Atoi(c.PostForm("rating"))
	review := &entities.Review{
		BookID: book.ID,
		UserID: user.ID,
		Rating: rating,
		Text:   text.Sanitize(c.PostForm("text")),
	}

	if err := ctrl.reviews.Create(review); err != nil {
		if errors.Is(err, reviews.ErrAlreadyReviewed) {
			ctrl.pages.redirectWithFlash(c, "warning",
				"You have already reviewed this book",
				fmt.Sprintf("/view_book/%d", book.ID))
			return
		}

		ctrl.pages.render(c, "add_review", gin.H{
			"Title":  "Add review",
			"Book":   book,
			"Rating": rating,
			"Text":   review.Text,
			"Error":  fmt.Sprintf("Failed to save the review. Check the submitted data. Error: %s", err),
		})
		return
	}

	ctrl.auditor.Record(&entities.AuditEvent{
		UserID:    user.ID,
		EventType: entities.AuditEventReview,
		Action:    "review_create",
		EntityID:  &review.ID,
		Status:    entities.AuditStatusSuccess,
	})

	ctrl.pages.redirectWithFlash(c, "success", "Review added",
		fmt.Sprintf("/view_book/%d", book.ID))
}
