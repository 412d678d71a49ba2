package store

import (
	"context"
	"strings"

	"groupbot-gateway/internal/models"

	"gorm.io/gorm"
)

// CreateCommand stores a command. The name is stored without its leading
// slash and must be unique among the group's active commands.
func (s *Store) CreateCommand(ctx context.Context, cmd *models.CustomCommand) error {
	cmd.Command = strings.TrimPrefix(strings.TrimSpace(cmd.Command), "/")
	if cmd.ResponseType == "" {
		cmd.ResponseType = "text"
	}
	if err := s.validate.Struct(cmd); err != nil {
		return fromValidator(err)
	}
	if err := validCommandName("command", cmd.Command); err != nil {
		return err
	}
	if strings.TrimSpace(cmd.ResponseContent) == "" {
		return invalid("response_content", "is required")
	}

	mu := s.groupLock(cmd.GroupID)
	mu.Lock()
	defer mu.Unlock()

	if cmd.IsActive {
		if err := s.ensureCommandFree(ctx, cmd.GroupID, cmd.Command, 0); err != nil {
			return err
		}
	}

	cmd.ID = 0
	cmd.UsageCount = 0
	return s.db.WithContext(ctx).Create(cmd).Error
}

func (s *Store) ensureCommandFree(ctx context.Context, groupID, name string, exceptID uint) error {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.CustomCommand{}).
		Where("group_id = ? AND command = ? AND is_active = ? AND id <> ?", groupID, name, true, exceptID).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return invalid("command", "/%s already exists in this group", name)
	}
	return nil
}

func (s *Store) GetCommand(ctx context.Context, groupID string, id uint) (*models.CustomCommand, error) {
	var cmd models.CustomCommand
	err := s.db.WithContext(ctx).Where("group_id = ? AND id = ?", groupID, id).First(&cmd).Error
	if err != nil {
		return nil, notFoundOr(err, "command", id)
	}
	return &cmd, nil
}

func (s *Store) ListCommands(ctx context.Context, groupID string, f Filter) ([]models.CustomCommand, error) {
	q := s.db.WithContext(ctx).Where("group_id = ?", groupID)
	if f.Enabled != nil {
		q = q.Where("is_active = ?", *f.Enabled)
	}

	commands := []models.CustomCommand{}
	if err := q.Order("id").Find(&commands).Error; err != nil {
		return nil, err
	}
	return commands, nil
}

// ToggleCommand re-checks name uniqueness when activating.
func (s *Store) ToggleCommand(ctx context.Context, groupID string, id uint, active *bool) (*models.CustomCommand, error) {
	mu := s.groupLock(groupID)
	mu.Lock()
	defer mu.Unlock()

	cmd, err := s.GetCommand(ctx, groupID, id)
	if err != nil {
		return nil, err
	}

	next := !cmd.IsActive
	if active != nil {
		next = *active
	}
	if next && !cmd.IsActive {
		if err := s.ensureCommandFree(ctx, groupID, cmd.Command, cmd.ID); err != nil {
			return nil, err
		}
	}
	if err := s.db.WithContext(ctx).Model(cmd).Update("is_active", next).Error; err != nil {
		return nil, err
	}
	cmd.IsActive = next
	return cmd, nil
}

func (s *Store) DeleteCommand(ctx context.Context, groupID string, id uint) error {
	mu := s.groupLock(groupID)
	mu.Lock()
	defer mu.Unlock()

	res := s.db.WithContext(ctx).Where("group_id = ? AND id = ?", groupID, id).Delete(&models.CustomCommand{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Kind: "command", ID: id}
	}
	return nil
}

func (s *Store) IncrementCommand(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.CustomCommand{}).Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1)).Error
}
