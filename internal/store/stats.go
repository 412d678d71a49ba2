package store

import (
	"context"
	"fmt"

	"groupbot-gateway/internal/models"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

const topTriggerLimit = 10

const topTriggersQuery = `
SELECT definition_name AS name, COUNT(*) AS count
FROM trigger_logs
WHERE group_id = ? AND success = ?
GROUP BY definition_kind, definition_id, definition_name
ORDER BY count DESC, name ASC
LIMIT ?`

// Stats derives AutomationStats from stored definitions and the full
// trigger log history.
type Stats struct {
	db *gorm.DB
	x  *sqlx.DB
}

func NewStats(db *gorm.DB) (*Stats, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	driver := "sqlite3"
	if db.Dialector.Name() == "postgres" {
		driver = "postgres"
	}
	return &Stats{db: db, x: sqlx.NewDb(sqlDB, driver)}, nil
}

func (s *Stats) Compute(ctx context.Context, groupID string) (*models.AutomationStats, error) {
	st := &models.AutomationStats{TopTriggers: []models.TriggerCount{}}
	db := s.db.WithContext(ctx)

	counts := []struct {
		dest  *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&st.TotalWorkflows, &models.Workflow{}, "group_id = ?", []interface{}{groupID}},
		{&st.ActiveWorkflows, &models.Workflow{}, "group_id = ? AND is_enabled = ?", []interface{}{groupID, true}},
		{&st.KeywordResponders, &models.KeywordResponder{}, "group_id = ?", []interface{}{groupID}},
		{&st.CustomCommands, &models.CustomCommand{}, "group_id = ?", []interface{}{groupID}},
		{&st.TotalExecutions, &models.TriggerLogEntry{}, "group_id = ?", []interface{}{groupID}},
		{&st.SuccessfulExecutions, &models.TriggerLogEntry{}, "group_id = ? AND success = ?", []interface{}{groupID, true}},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where(c.where, c.args...).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("count %T: %w", c.model, err)
		}
	}
	st.FailedExecutions = st.TotalExecutions - st.SuccessfulExecutions

	query := s.x.Rebind(topTriggersQuery)
	if err := s.x.SelectContext(ctx, &st.TopTriggers, query, groupID, true, topTriggerLimit); err != nil {
		return nil, fmt.Errorf("top triggers: %w", err)
	}
	return st, nil
}
