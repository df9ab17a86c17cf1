package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionImport AuditAction = "import"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// nil when the request was anonymous
	UserID   *uint  `json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"`

	// "plant", "receipt", "dispatch", "import"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// Entity state after the change, JSON encoded
	AfterData string `gorm:"type:text" json:"after_data"`
}
