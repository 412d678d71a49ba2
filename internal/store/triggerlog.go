package store

import (
	"context"
	"time"

	"groupbot-gateway/internal/models"

	"gorm.io/gorm"
)

const DefaultLogLimit = 50

// TriggerLog is the append-only record of trigger attempts.
type TriggerLog struct {
	db       *gorm.DB
	maxLimit int
}

func NewTriggerLog(db *gorm.DB, maxLimit int) *TriggerLog {
	if maxLimit <= 0 {
		maxLimit = 500
	}
	return &TriggerLog{db: db, maxLimit: maxLimit}
}

// Append inserts entry. CreatedAt is set to now when the caller left it zero.
func (l *TriggerLog) Append(ctx context.Context, entry *models.TriggerLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.ID = 0
	return l.db.WithContext(ctx).Create(entry).Error
}

// Recent returns up to limit entries for the group, newest first. A
// non-positive limit means DefaultLogLimit; larger limits are capped.
func (l *TriggerLog) Recent(ctx context.Context, groupID string, limit int) ([]models.TriggerLogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > l.maxLimit {
		limit = l.maxLimit
	}

	entries := []models.TriggerLogEntry{}
	err := l.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
