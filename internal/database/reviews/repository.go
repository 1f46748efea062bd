// Package reviews provides database operations for book reviews.
package reviews

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ama13/bookshelf/internal/entities"
)

var (
	ErrNotFound = errors.New("review not found")
	// ErrAlreadyReviewed is returned when the (book, user) pair already has a
	// review. The unique index is the source of truth here, so concurrent
	// submissions cannot slip past a stale pre-check.
	ErrAlreadyReviewed = errors.New("user has already reviewed this book")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

// Repository handles all review database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new reviews repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a review. The composite unique index on (book_id, user_id)
// rejects duplicates.
func (r *Repository) Create(review *entities.Review) error {
	if review.Rating < 1 || review.Rating > 5 {
		return ErrInvalidRating
	}
	err := r.db.Create(review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// ForBook lists a book's reviews newest first, with reviewer names preloaded.
func (r *Repository) ForBook(bookID uint) ([]entities.Review, error) {
	var reviews []entities.Review
	err := r.db.Preload("User").
		Where("book_id = ?", bookID).
		Order("created_at DESC").
		Find(&reviews).Error
	return reviews, err
}

// ForBookAndUser returns the user's review of the book, or ErrNotFound.
func (r *Repository) ForBookAndUser(bookID, userID uint) (*entities.Review, error) {
	var review entities.Review
	err := r.db.Where("book_id = ? AND user_id = ?", bookID, userID).First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

// CountForBook returns the number of reviews a book has.
func (r *Repository) CountForBook(bookID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Review{}).Where("book_id = ?", bookID).Count(&count).Error
	return count, err
}
