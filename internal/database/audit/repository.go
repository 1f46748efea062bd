package audit

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/ama13/bookshelf/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// Record is the fire-and-forget variant handlers use: an audit failure is
// logged but never fails the request being audited.
func (r *Repository) Record(event *entities.AuditEvent) {
	if err := r.LogEvent(event); err != nil {
		log.Printf("audit: failed to record %s/%s: %v", event.EventType, event.Action, err)
	}
}

// GetEvents retrieves paginated audit events, most recent first. A zero
// userID returns events for all users.
func (r *Repository) GetEvents(userID uint, limit, offset int) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.db.Model(&entities.AuditEvent{})
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}
