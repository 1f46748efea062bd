package entities

import "time"

type AuditEventType string

const (
	AuditEventAuth   AuditEventType = "auth"
	AuditEventBook   AuditEventType = "book"
	AuditEventReview AuditEventType = "review"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

type AuditEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index" json:"user_id"`
	EventType AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action    string         `gorm:"size:100" json:"action"` // e.g. "login", "book_delete"
	EntityID  *uint          `gorm:"index" json:"entity_id,omitempty"`
	IPAddress string         `gorm:"size:45" json:"ip_address,omitempty"`
	Status    AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg  string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
