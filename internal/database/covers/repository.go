// Package covers provides database operations for cover metadata. The files
// themselves live in the on-disk store (internal/covers); this package only
// tracks rows and reference counts.
package covers

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ama13/bookshelf/internal/entities"
)

var ErrNotFound = errors.New("cover not found")

// Repository handles all cover database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new covers repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByHash looks up an existing cover by content hash. Returns ErrNotFound
// when no identical file has been uploaded before.
func (r *Repository) FindByHash(md5Hash string) (*entities.Cover, error) {
	var cover entities.Cover
	err := r.db.Where("md5_hash = ?", md5Hash).First(&cover).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cover, nil
}

// GetByID retrieves a cover row.
func (r *Repository) GetByID(id uint) (*entities.Cover, error) {
	var cover entities.Cover
	err := r.db.First(&cover, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cover, nil
}

// Create inserts a new cover row.
func (r *Repository) Create(cover *entities.Cover) error {
	return r.db.Create(cover).Error
}

// Delete removes a cover row.
func (r *Repository) Delete(id uint) error {
	return r.db.Delete(&entities.Cover{}, id).Error
}

// ReferenceCount returns how many books point at the cover.
func (r *Repository) ReferenceCount(id uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Book{}).Where("cover_id = ?", id).Count(&count).Error
	return count, err
}

// ListUnreferenced returns covers no book points at.
func (r *Repository) ListUnreferenced() ([]entities.Cover, error) {
	var orphans []entities.Cover
	err := r.db.
		Where("id NOT IN (SELECT cover_id FROM books WHERE cover_id IS NOT NULL)").
		Find(&orphans).Error
	return orphans, err
}

// ListFileNames returns the file names of every cover row.
func (r *Repository) ListFileNames() ([]string, error) {
	var names []string
	err := r.db.Model(&entities.Cover{}).Pluck("file_name", &names).Error
	return names, err
}
