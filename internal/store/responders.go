package store

import (
	"context"

	"groupbot-gateway/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateResponder(ctx context.Context, r *models.KeywordResponder) error {
	if r.MatchType == "" {
		r.MatchType = models.MatchContains
	}
	if err := s.validate.Struct(r); err != nil {
		return fromValidator(err)
	}
	if !hasNonBlank(r.Keywords) {
		return invalid("keywords", "must contain at least one non-blank keyword")
	}
	if !hasNonBlank(r.Responses) {
		return invalid("responses", "must contain at least one non-blank response")
	}

	mu := s.groupLock(r.GroupID)
	mu.Lock()
	defer mu.Unlock()

	r.ID = 0
	r.TriggerCount = 0
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) GetResponder(ctx context.Context, groupID string, id uint) (*models.KeywordResponder, error) {
	var r models.KeywordResponder
	err := s.db.WithContext(ctx).Where("group_id = ? AND id = ?", groupID, id).First(&r).Error
	if err != nil {
		return nil, notFoundOr(err, "responder", id)
	}
	return &r, nil
}

func (s *Store) ListResponders(ctx context.Context, groupID string, f Filter) ([]models.KeywordResponder, error) {
	q := s.db.WithContext(ctx).Where("group_id = ?", groupID)
	if f.Enabled != nil {
		q = q.Where("is_active = ?", *f.Enabled)
	}

	responders := []models.KeywordResponder{}
	if err := q.Order("id").Find(&responders).Error; err != nil {
		return nil, err
	}
	return responders, nil
}

func (s *Store) ToggleResponder(ctx context.Context, groupID string, id uint, active *bool) (*models.KeywordResponder, error) {
	mu := s.groupLock(groupID)
	mu.Lock()
	defer mu.Unlock()

	r, err := s.GetResponder(ctx, groupID, id)
	if err != nil {
		return nil, err
	}

	next := !r.IsActive
	if active != nil {
		next = *active
	}
	if err := s.db.WithContext(ctx).Model(r).Update("is_active", next).Error; err != nil {
		return nil, err
	}
	r.IsActive = next
	return r, nil
}

func (s *Store) DeleteResponder(ctx context.Context, groupID string, id uint) error {
	mu := s.groupLock(groupID)
	mu.Lock()
	defer mu.Unlock()

	res := s.db.WithContext(ctx).Where("group_id = ? AND id = ?", groupID, id).Delete(&models.KeywordResponder{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Kind: "responder", ID: id}
	}
	return nil
}

func (s *Store) IncrementResponder(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.KeywordResponder{}).Where("id = ?", id).
		UpdateColumn("trigger_count", gorm.Expr("trigger_count + ?", 1)).Error
}
