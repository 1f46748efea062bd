package entities

import "time"

type Book struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"index;size:512" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Year        int       `gorm:"index" json:"year"`
	Publisher   string    `gorm:"size:256" json:"publisher"`
	Author      string    `gorm:"index;size:256" json:"author"`
	Pages       int       `json:"pages"`
	CoverID     *uint     `gorm:"index" json:"cover_id,omitempty"`
	Cover       *Cover    `gorm:"foreignKey:CoverID" json:"cover,omitempty"`
	Genres      []Genre   `gorm:"many2many:book_genres;" json:"genres,omitempty"`
	Reviews     []Review  `gorm:"foreignKey:BookID" json:"reviews,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Genre struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;size:100" json:"name"`
}

// Cover is an uploaded image deduplicated by the md5 of its bytes. The file
// itself lives on disk under the uploads directory, keyed by FileName.
type Cover struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FileName  string    `gorm:"size:256" json:"file_name"`
	MimeType  string    `gorm:"size:100" json:"mime_type"`
	MD5Hash   string    `gorm:"uniqueIndex;size:32" json:"md5_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Review carries a composite unique index so a second review from the same
// user for the same book is rejected by the storage layer, not a pre-check.
type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookID    uint      `gorm:"uniqueIndex:idx_reviews_book_user" json:"book_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_reviews_book_user" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Rating    int       `json:"rating"`
	Text      string    `gorm:"type:text" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Collection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:256" json:"name"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Books     []Book    `gorm:"many2many:collection_books;" json:"books,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
