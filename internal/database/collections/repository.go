// Package collections provides database operations for user-owned book
// collections.
package collections

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ama13/bookshelf/internal/entities"
)

var (
	ErrNotFound = errors.New("collection not found")
	// ErrBookAlreadyAdded makes add-to-collection idempotent from the
	// handler's point of view.
	ErrBookAlreadyAdded = errors.New("book is already in the collection")
	ErrNameRequired     = errors.New("collection name is required")
)

// ListItem is a collection row with its book count for the listing page.
type ListItem struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	BookCount int64  `json:"book_count"`
}

// Repository handles all collection database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new collections repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new collection owned by userID.
func (r *Repository) Create(name string, userID uint) (*entities.Collection, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	collection := &entities.Collection{
		Name:   name,
		UserID: userID,
	}
	if err := r.db.Create(collection).Error; err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return collection, nil
}

// ForUser lists the user's collections with book counts, oldest first.
func (r *Repository) ForUser(userID uint) ([]ListItem, error) {
	var items []ListItem
	err := r.db.Raw(`
		SELECT c.id, c.name,
		       (SELECT COUNT(*) FROM collection_books cb WHERE cb.collection_id = c.id) AS book_count
		FROM collections c
		WHERE c.user_id = ?
		ORDER BY c.id`, userID).Scan(&items).Error
	return items, err
}

// GetByID retrieves a collection with its member books (and their covers)
// preloaded.
func (r *Repository) GetByID(id uint) (*entities.Collection, error) {
	var collection entities.Collection
	err := r.db.Preload("Books").Preload("Books.Cover").First(&collection, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &collection, nil
}

// AddBook links a book into a collection. A duplicate pair returns
// ErrBookAlreadyAdded and changes nothing.
func (r *Repository) AddBook(collectionID, bookID uint) error {
	var count int64
	err := r.db.Table("collection_books").
		Where("collection_id = ? AND book_id = ?", collectionID, bookID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrBookAlreadyAdded
	}

	err = r.db.Exec(
		"INSERT INTO collection_books (collection_id, book_id) VALUES (?, ?)",
		collectionID, bookID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to add book to collection: %w", err)
	}
	return nil
}
