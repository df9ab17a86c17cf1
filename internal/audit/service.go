package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"kimbiofarm-backend/internal/models"

	"gorm.io/gorm"
)

const (
	EntityPlant    = "plant"
	EntityReceipt  = "receipt"
	EntityDispatch = "dispatch"
	EntityImport   = "import"
)

// Actor identifies who triggered a change. The zero value is an anonymous request.
type Actor struct {
	UserID   *uint
	UserName string
}

type LogOptions struct {
	Actor       Actor
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	After       any
}

// WriteLog inserts an audit row through tx so it commits or rolls back with the change it records.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	// Postgres text column accepts it, and "null" keeps the field valid JSON
	afterStr := "null"
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	userName := opts.Actor.UserName
	if userName == "" {
		userName = "anonymous"
	}

	entry := models.AuditLog{
		UserID:      opts.Actor.UserID,
		UserName:    userName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		AfterData:   afterStr,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

type Filter struct {
	EntityType string
	EntityID   uint
	UserID     uint
	Limit      int
}

// List returns audit rows newest first.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	q := db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
