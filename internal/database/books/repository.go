// Package books provides database operations for the book catalog.
//
// Listing uses correlated subqueries instead of the obvious triple join so
// that review counts are not multiplied by the number of genres a book has.
package books

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/ama13/bookshelf/internal/entities"
)

var ErrNotFound = errors.New("book not found")

// PerPage is the catalog page size.
const PerPage = 10

// ListItem is one row of the paginated catalog listing.
type ListItem struct {
	ID            uint     `json:"id"`
	Title         string   `json:"title"`
	Year          int      `json:"year"`
	Genres        string   `json:"genres"` // comma-separated genre names
	AverageRating *float64 `json:"average_rating,omitempty"`
	ReviewCount   int64    `json:"review_count"`
}

// RatingDisplay renders the average rating for templates; books without
// reviews get an empty string.
func (i ListItem) RatingDisplay() string {
	if i.AverageRating == nil {
		return ""
	}
	return strconv.FormatFloat(*i.AverageRating, 'f', 1, 64)
}

// Page is a single page of the listing plus pagination state.
type Page struct {
	Books   []ListItem
	Number  int
	HasNext bool
	Total   int64
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListPage returns page `page` (1-based) of the catalog ordered by year
// descending, with aggregated genre names and review statistics.
func (r *Repository) ListPage(page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * PerPage

	var items []ListItem
	err := r.db.Raw(`
		SELECT b.id, b.title, b.year,
		       COALESCE((SELECT GROUP_CONCAT(g.name, ', ')
		                 FROM genres g
		                 JOIN book_genres bg ON bg.genre_id = g.id
		                 WHERE bg.book_id = b.id), '') AS genres,
		       (SELECT AVG(rv.rating) FROM reviews rv WHERE rv.book_id = b.id) AS average_rating,
		       (SELECT COUNT(*) FROM reviews rv WHERE rv.book_id = b.id) AS review_count
		FROM books b
		ORDER BY b.year DESC, b.id DESC
		LIMIT ? OFFSET ?`, PerPage, offset).Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	var total int64
	if err := r.db.Model(&entities.Book{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}

	return &Page{
		Books:   items,
		Number:  page,
		HasNext: total > int64(page)*PerPage,
		Total:   total,
	}, nil
}

// GetByID retrieves a book with its genres and cover preloaded.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("Genres").Preload("Cover").First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &book, nil
}

// CreateWithGenres inserts the book and its genre links atomically. On any
// failure nothing is persisted.
func (r *Repository) CreateWithGenres(book *entities.Book, genreIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(book).Error; err != nil {
			return fmt.Errorf("failed to create book: %w", err)
		}
		return r.linkGenres(tx, book.ID, genreIDs)
	})
}

// UpdateWithGenres updates the book's fields and replaces its full genre set
// (delete-all-then-reinsert) in one transaction.
func (r *Repository) UpdateWithGenres(book *entities.Book, genreIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"title":       book.Title,
			"description": book.Description,
			"year":        book.Year,
			"publisher":   book.Publisher,
			"author":      book.Author,
			"pages":       book.Pages,
		}
		result := tx.Model(&entities.Book{}).Where("id = ?", book.ID).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update book: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Exec("DELETE FROM book_genres WHERE book_id = ?", book.ID).Error; err != nil {
			return fmt.Errorf("failed to clear genres: %w", err)
		}
		return r.linkGenres(tx, book.ID, genreIDs)
	})
}

// Delete removes the book together with its reviews and genre links in one
// transaction and returns the cover id the book pointed at, if any. Cover
// cleanup is the caller's job since it involves the filesystem.
func (r *Repository) Delete(id uint) (coverID *uint, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		var book entities.Book
		if err := tx.First(&book, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		coverID = book.CoverID

		if err := tx.Where("book_id = ?", id).Delete(&entities.Review{}).Error; err != nil {
			return fmt.Errorf("failed to delete reviews: %w", err)
		}
		if err := tx.Exec("DELETE FROM book_genres WHERE book_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete genre links: %w", err)
		}
		if err := tx.Exec("DELETE FROM collection_books WHERE book_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete collection links: %w", err)
		}
		if err := tx.Delete(&entities.Book{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coverID, nil
}

// AllGenres lists every genre for the add/edit forms.
func (r *Repository) AllGenres() ([]entities.Genre, error) {
	var genres []entities.Genre
	err := r.db.Order("name").Find(&genres).Error
	return genres, err
}

// GenreIDs returns the ids of the genres currently linked to a book.
func (r *Repository) GenreIDs(bookID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Raw("SELECT genre_id FROM book_genres WHERE book_id = ?", bookID).Scan(&ids).Error
	return ids, err
}

func (r *Repository) linkGenres(tx *gorm.DB, bookID uint, genreIDs []uint) error {
	for _, genreID := range genreIDs {
		var genre entities.Genre
		if err := tx.First(&genre, genreID).Error; err != nil {
			return fmt.Errorf("unknown genre %d: %w", genreID, err)
		}
		if err := tx.Exec(
			"INSERT INTO book_genres (book_id, genre_id) VALUES (?, ?)",
			bookID, genreID,
		).Error; err != nil {
			return fmt.Errorf("failed to link genre %d: %w", genreID, err)
		}
	}
	return nil
}
