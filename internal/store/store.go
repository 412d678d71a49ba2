// Package store persists automation definitions, the trigger log and the
// statistics derived from them.
package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"groupbot-gateway/internal/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Store owns Workflow, KeywordResponder and CustomCommand rows. Mutations of
// a group's definitions hold that group's write lock, Snapshot holds the read
// lock, so an event is never matched against a half-applied change.
type Store struct {
	db       *gorm.DB
	validate *validator.Validate
	locks    sync.Map
}

func New(db *gorm.DB) *Store {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Store{db: db, validate: v}
}

func (s *Store) groupLock(groupID string) *sync.RWMutex {
	l, _ := s.locks.LoadOrStore(groupID, &sync.RWMutex{})
	return l.(*sync.RWMutex)
}

// Filter narrows List results. A nil Enabled returns both states.
type Filter struct {
	Enabled     *bool
	TriggerType models.TriggerType
}

// Snapshot is a read-consistent view of a group's enabled definitions,
// each slice ordered by id.
type Snapshot struct {
	GroupID    string
	Workflows  []models.Workflow
	Responders []models.KeywordResponder
	Commands   []models.CustomCommand
}

func (s *Store) Snapshot(ctx context.Context, groupID string) (*Snapshot, error) {
	mu := s.groupLock(groupID)
	mu.RLock()
	defer mu.RUnlock()

	snap := &Snapshot{GroupID: groupID}
	db := s.db.WithContext(ctx)

	if err := db.Where("group_id = ? AND is_enabled = ?", groupID, true).Order("id").Find(&snap.Workflows).Error; err != nil {
		return nil, err
	}
	if err := db.Where("group_id = ? AND is_active = ?", groupID, true).Order("id").Find(&snap.Responders).Error; err != nil {
		return nil, err
	}
	if err := db.Where("group_id = ? AND is_active = ?", groupID, true).Order("id").Find(&snap.Commands).Error; err != nil {
		return nil, err
	}
	return snap, nil
}

// ScheduledGroups lists groups with at least one enabled schedule workflow.
func (s *Store) ScheduledGroups(ctx context.Context) ([]string, error) {
	var groups []string
	err := s.db.WithContext(ctx).Model(&models.Workflow{}).
		Where("is_enabled = ? AND trigger_type = ?", true, models.TriggerSchedule).
		Distinct("group_id").
		Order("group_id").
		Pluck("group_id", &groups).Error
	return groups, err
}

func notFoundOr(err error, kind string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return err
}

func hasNonBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
