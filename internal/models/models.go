package models

import (
	"time"

	"gorm.io/datatypes"
)

type TriggerType string

const (
	TriggerKeyword   TriggerType = "keyword"
	TriggerCommand   TriggerType = "command"
	TriggerSchedule  TriggerType = "schedule"
	TriggerEvent     TriggerType = "event"
	TriggerNewMember TriggerType = "new_member"
	TriggerMessage   TriggerType = "message"
)

type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "starts_with"
	MatchRegex      MatchType = "regex"
)

// DefinitionKind names which table a TriggerLogEntry came from.
type DefinitionKind string

const (
	KindWorkflow  DefinitionKind = "workflow"
	KindResponder DefinitionKind = "responder"
	KindCommand   DefinitionKind = "command"
)

// TriggerConfig holds the trigger parameters of a Workflow. Which fields are
// meaningful depends on the workflow's TriggerType.
type TriggerConfig struct {
	Keywords      []string  `json:"keywords,omitempty"`
	MatchType     MatchType `json:"match_type,omitempty"`
	CaseSensitive bool      `json:"case_sensitive,omitempty"`
	Command       string    `json:"command,omitempty"`
	Schedule      string    `json:"schedule,omitempty"`
	EventName     string    `json:"event_name,omitempty"`
}

// Workflow is a multi-step automation owned by one group.
type Workflow struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	GroupID       string           `gorm:"type:varchar(64);not null;index" json:"group_id" validate:"required"`
	Name          string           `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	Description   string           `gorm:"type:text" json:"description"`
	TriggerType   TriggerType      `gorm:"type:varchar(32);not null;index" json:"trigger_type" validate:"required,oneof=keyword command schedule event new_member message"`
	TriggerConfig TriggerConfig    `gorm:"type:text;serializer:json" json:"trigger_config"`
	Actions       []WorkflowAction `gorm:"type:text;serializer:json" json:"actions"`
	IsEnabled     bool             `gorm:"not null" json:"is_enabled"`
	RunCount      int64            `gorm:"not null" json:"run_count"`
	LastRunAt     *time.Time       `json:"last_run_at"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Workflow) TableName() string {
	return "workflows"
}

// KeywordResponder replies to chat messages containing one of its keywords.
type KeywordResponder struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	GroupID         string    `gorm:"type:varchar(64);not null;index" json:"group_id" validate:"required"`
	Keywords        []string  `gorm:"type:text;serializer:json" json:"keywords" validate:"min=1"`
	MatchType       MatchType `gorm:"type:varchar(32);not null" json:"match_type" validate:"required,oneof=contains exact starts_with regex"`
	CaseSensitive   bool      `gorm:"not null" json:"case_sensitive"`
	Responses       []string  `gorm:"type:text;serializer:json" json:"responses" validate:"min=1"`
	RandomResponse  bool      `gorm:"not null" json:"random_response"`
	DeleteTrigger   bool      `gorm:"not null" json:"delete_trigger"`
	CooldownSeconds int       `gorm:"not null" json:"cooldown_seconds" validate:"min=0"`
	TriggerCount    int64     `gorm:"not null" json:"trigger_count"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (KeywordResponder) TableName() string {
	return "keyword_responders"
}

// Name is the label used for the responder in logs and stats.
func (r *KeywordResponder) Name() string {
	if len(r.Keywords) == 0 {
		return "responder"
	}
	return r.Keywords[0]
}

// CustomCommand answers "/<command>" invocations.
type CustomCommand struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	GroupID         string    `gorm:"type:varchar(64);not null;index" json:"group_id" validate:"required"`
	Command         string    `gorm:"type:varchar(64);not null;index" json:"command" validate:"required,max=64"`
	Description     string    `gorm:"type:text" json:"description"`
	ResponseType    string    `gorm:"type:varchar(20);not null" json:"response_type" validate:"oneof=text"`
	ResponseContent string    `gorm:"type:text;not null" json:"response_content" validate:"required"`
	AllowVariables  bool      `gorm:"not null" json:"allow_variables"`
	RequireArgs     bool      `gorm:"not null" json:"require_args"`
	AdminOnly       bool      `gorm:"not null" json:"admin_only"`
	UsageCount      int64     `gorm:"not null" json:"usage_count"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CustomCommand) TableName() string {
	return "custom_commands"
}

// TriggerLogEntry is one evaluation attempt. Rows are never updated.
type TriggerLogEntry struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	GroupID         string            `gorm:"type:varchar(64);not null;index:idx_trigger_logs_group_created,priority:1" json:"group_id"`
	RunID           string            `gorm:"type:varchar(36);not null" json:"run_id"`
	TriggerType     TriggerType       `gorm:"type:varchar(32);not null" json:"trigger_type"`
	DefinitionKind  DefinitionKind    `gorm:"type:varchar(20);not null" json:"definition_kind"`
	DefinitionID    uint              `json:"definition_id"`
	DefinitionName  string            `gorm:"type:varchar(255)" json:"definition_name"`
	Success         bool              `json:"success"`
	ActionsExecuted int               `json:"actions_executed"`
	Error           string            `gorm:"type:text" json:"error,omitempty"`
	Context         datatypes.JSONMap `json:"context,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;index:idx_trigger_logs_group_created,priority:2" json:"created_at"`
}

func (TriggerLogEntry) TableName() string {
	return "trigger_logs"
}

// TriggerCount is one row of the top-triggers ranking.
type TriggerCount struct {
	Name  string `db:"name" json:"name"`
	Count int64  `db:"count" json:"count"`
}

// AutomationStats is derived from stored definitions and the trigger log.
type AutomationStats struct {
	TotalWorkflows       int64          `json:"total_workflows"`
	ActiveWorkflows      int64          `json:"active_workflows"`
	KeywordResponders    int64          `json:"keyword_responders"`
	CustomCommands       int64          `json:"custom_commands"`
	TotalExecutions      int64          `json:"total_executions"`
	SuccessfulExecutions int64          `json:"successful_executions"`
	FailedExecutions     int64          `json:"failed_executions"`
	TopTriggers          []TriggerCount `json:"top_triggers"`
}

// All lists every table for AutoMigrate and data copies.
func All() []interface{} {
	return []interface{}{
		&Workflow{},
		&KeywordResponder{},
		&CustomCommand{},
		&TriggerLogEntry{},
	}
}
