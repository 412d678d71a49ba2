package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"groupbot-gateway/internal/condition"
	"groupbot-gateway/internal/models"
	"groupbot-gateway/internal/schedule"

	"gorm.io/gorm"
)

func (s *Store) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	normalizeWorkflow(wf)
	if err := s.validateWorkflow(wf); err != nil {
		return err
	}

	mu := s.groupLock(wf.GroupID)
	mu.Lock()
	defer mu.Unlock()

	wf.ID = 0
	wf.RunCount = 0
	wf.LastRunAt = nil
	return s.db.WithContext(ctx).Create(wf).Error
}

func (s *Store) GetWorkflow(ctx context.Context, groupID string, id uint) (*models.Workflow, error) {
	var wf models.Workflow
	err := s.db.WithContext(ctx).Where("group_id = ? AND id = ?", groupID, id).First(&wf).Error
	if err != nil {
		return nil, notFoundOr(err, "workflow", id)
	}
	return &wf, nil
}

func (s *Store) ListWorkflows(ctx context.Context, groupID string, f Filter) ([]models.Workflow, error) {
	q := s.db.WithContext(ctx).Where("group_id = ?", groupID)
	if f.Enabled != nil {
		q = q.Where("is_enabled = ?", *f.Enabled)
	}
	if f.TriggerType != "" {
		q = q.Where("trigger_type = ?", f.TriggerType)
	}

	workflows := []models.Workflow{}
	if err := q.Order("id").Find(&workflows).Error; err != nil {
		return nil, err
	}
	return workflows, nil
}

// ToggleWorkflow sets is_enabled, or flips it when enabled is nil.
// Chains already dispatched for the workflow are not affected.
func (s *Store) ToggleWorkflow(ctx context.Context, groupID string, id uint, enabled *bool) (*models.Workflow, error) {
	mu := s.groupLock(groupID)
	mu.Lock()
	defer mu.Unlock()

	wf, err := s.GetWorkflow(ctx, groupID, id)
	if err != nil {
		return nil, err
	}

	next := !wf.IsEnabled
	if enabled != nil {
		next = *enabled
	}
	if err := s.db.WithContext(ctx).Model(wf).Update("is_enabled", next).Error; err != nil {
		return nil, err
	}
	wf.IsEnabled = next
	return wf, nil
}

func (s *Store) DeleteWorkflow(ctx context.Context, groupID string, id uint) error {
	mu := s.groupLock(groupID)
	mu.Lock()
	defer mu.Unlock()

	res := s.db.WithContext(ctx).Where("group_id = ? AND id = ?", groupID, id).Delete(&models.Workflow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Kind: "workflow", ID: id}
	}
	return nil
}

// RecordWorkflowRun counts one completed run and stamps last_run_at.
func (s *Store) RecordWorkflowRun(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Workflow{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"run_count":   gorm.Expr("run_count + ?", 1),
			"last_run_at": at,
		}).Error
}

func normalizeWorkflow(wf *models.Workflow) {
	wf.Name = strings.TrimSpace(wf.Name)
	if wf.Actions == nil {
		wf.Actions = []models.WorkflowAction{}
	}
	cfg := &wf.TriggerConfig
	cfg.Command = strings.TrimPrefix(strings.TrimSpace(cfg.Command), "/")
	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	cfg.EventName = strings.TrimSpace(cfg.EventName)
	if len(cfg.Keywords) > 0 && cfg.MatchType == "" {
		cfg.MatchType = models.MatchContains
	}
}

func (s *Store) validateWorkflow(wf *models.Workflow) error {
	if err := s.validate.Struct(wf); err != nil {
		return fromValidator(err)
	}

	cfg := wf.TriggerConfig
	switch wf.TriggerType {
	case models.TriggerKeyword:
		if !hasNonBlank(cfg.Keywords) {
			return invalid("trigger_config.keywords", "must contain at least one non-blank keyword")
		}
		if err := validMatchType("trigger_config.match_type", cfg.MatchType); err != nil {
			return err
		}
	case models.TriggerMessage:
		if len(cfg.Keywords) > 0 {
			if err := validMatchType("trigger_config.match_type", cfg.MatchType); err != nil {
				return err
			}
		}
	case models.TriggerCommand:
		if err := validCommandName("trigger_config.command", cfg.Command); err != nil {
			return err
		}
	case models.TriggerSchedule:
		if _, err := schedule.Parse(cfg.Schedule); err != nil {
			return invalid("trigger_config.schedule", "%v", err)
		}
	case models.TriggerEvent:
		if cfg.EventName == "" {
			return invalid("trigger_config.event_name", "is required")
		}
	}

	for i, a := range wf.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		if err := a.Validate(); err != nil {
			return invalid(field, "%v", err)
		}
		if p, ok := a.Params.(models.ConditionParams); ok {
			if err := condition.Check(p.Expression); err != nil {
				return invalid(field, "%v", err)
			}
		}
	}
	return nil
}

func validMatchType(field string, mt models.MatchType) error {
	switch mt {
	case models.MatchContains, models.MatchExact, models.MatchStartsWith, models.MatchRegex:
		return nil
	}
	return invalid(field, "must be one of: contains exact starts_with regex")
}

func validCommandName(field, name string) error {
	if name == "" {
		return invalid(field, "is required")
	}
	if strings.ContainsAny(name, " \t\r\n@/") {
		return invalid(field, "must be a single word without spaces, '/' or '@'")
	}
	return nil
}
