package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"groupbot-gateway/internal/models"
	"groupbot-gateway/internal/store"

	"github.com/gin-gonic/gin"
)

type AutomationHandler struct {
	Store *store.Store
	Logs  *store.TriggerLog
	Stats *store.Stats
}

func NewAutomationHandler(st *store.Store, logs *store.TriggerLog, stats *store.Stats) *AutomationHandler {
	return &AutomationHandler{Store: st, Logs: logs, Stats: stats}
}

// Register mounts the group-scoped routes on rg.
func (h *AutomationHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/groups/:groupId")

	g.GET("/workflows", h.GetWorkflows)
	g.POST("/workflows", h.CreateWorkflow)
	g.GET("/workflows/:id", h.GetWorkflow)
	g.POST("/workflows/:id/toggle", h.ToggleWorkflow)
	g.DELETE("/workflows/:id", h.DeleteWorkflow)

	g.GET("/responders", h.GetResponders)
	g.POST("/responders", h.CreateResponder)
	g.GET("/responders/:id", h.GetResponder)
	g.POST("/responders/:id/toggle", h.ToggleResponder)
	g.DELETE("/responders/:id", h.DeleteResponder)

	g.GET("/commands", h.GetCommands)
	g.POST("/commands", h.CreateCommand)
	g.GET("/commands/:id", h.GetCommand)
	g.POST("/commands/:id/toggle", h.ToggleCommand)
	g.DELETE("/commands/:id", h.DeleteCommand)

	g.GET("/logs", h.GetLogs)
	g.GET("/stats", h.GetStats)
}

func respondError(c *gin.Context, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("Automation API error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id", "field": "id"})
		return 0, false
	}
	return uint(id), true
}

// listFilter reads ?enabled= and ?trigger_type=.
func listFilter(c *gin.Context) (store.Filter, bool) {
	var f store.Filter
	if raw := c.Query("enabled"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "enabled must be true or false", "field": "enabled"})
			return f, false
		}
		f.Enabled = &b
	}
	f.TriggerType = models.TriggerType(c.Query("trigger_type"))
	return f, true
}

// toggleBody reads the optional {"enabled": bool}. An empty body means flip.
func toggleBody(c *gin.Context) (*bool, bool) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return req.Enabled, true
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Workflows

type workflowRequest struct {
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	TriggerType   models.TriggerType   `json:"trigger_type"`
	TriggerConfig models.TriggerConfig `json:"trigger_config"`
	Actions       json.RawMessage      `json:"actions"`
	IsEnabled     *bool                `json:"is_enabled"`
}

func (h *AutomationHandler) GetWorkflows(c *gin.Context) {
	f, ok := listFilter(c)
	if !ok {
		return
	}
	workflows, err := h.Store.ListWorkflows(c.Request.Context(), c.Param("groupId"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflows)
}

func (h *AutomationHandler) CreateWorkflow(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var actions []models.WorkflowAction
	if len(req.Actions) > 0 && string(req.Actions) != "null" {
		if err := json.Unmarshal(req.Actions, &actions); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "actions " + err.Error(), "field": "actions"})
			return
		}
	}

	wf := models.Workflow{
		GroupID:       c.Param("groupId"),
		Name:          req.Name,
		Description:   req.Description,
		TriggerType:   req.TriggerType,
		TriggerConfig: req.TriggerConfig,
		Actions:       actions,
		IsEnabled:     boolOr(req.IsEnabled, true),
	}
	if err := h.Store.CreateWorkflow(c.Request.Context(), &wf); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wf)
}

func (h *AutomationHandler) GetWorkflow(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	wf, err := h.Store.GetWorkflow(c.Request.Context(), c.Param("groupId"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *AutomationHandler) ToggleWorkflow(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	enabled, ok := toggleBody(c)
	if !ok {
		return
	}
	wf, err := h.Store.ToggleWorkflow(c.Request.Context(), c.Param("groupId"), id, enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *AutomationHandler) DeleteWorkflow(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteWorkflow(c.Request.Context(), c.Param("groupId"), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Workflow deleted successfully"})
}

// Keyword responders

type responderRequest struct {
	Keywords        []string         `json:"keywords"`
	MatchType       models.MatchType `json:"match_type"`
	CaseSensitive   bool             `json:"case_sensitive"`
	Responses       []string         `json:"responses"`
	RandomResponse  bool             `json:"random_response"`
	DeleteTrigger   bool             `json:"delete_trigger"`
	CooldownSeconds int              `json:"cooldown_seconds"`
	IsActive        *bool            `json:"is_active"`
}

func (h *AutomationHandler) GetResponders(c *gin.Context) {
	f, ok := listFilter(c)
	if !ok {
		return
	}
	responders, err := h.Store.ListResponders(c.Request.Context(), c.Param("groupId"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, responders)
}

func (h *AutomationHandler) CreateResponder(c *gin.Context) {
	var req responderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r := models.KeywordResponder{
		GroupID:         c.Param("groupId"),
		Keywords:        req.Keywords,
		MatchType:       req.MatchType,
		CaseSensitive:   req.CaseSensitive,
		Responses:       req.Responses,
		RandomResponse:  req.RandomResponse,
		DeleteTrigger:   req.DeleteTrigger,
		CooldownSeconds: req.CooldownSeconds,
		IsActive:        boolOr(req.IsActive, true),
	}
	if err := h.Store.CreateResponder(c.Request.Context(), &r); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *AutomationHandler) GetResponder(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	r, err := h.Store.GetResponder(c.Request.Context(), c.Param("groupId"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *AutomationHandler) ToggleResponder(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	active, ok := toggleBody(c)
	if !ok {
		return
	}
	r, err := h.Store.ToggleResponder(c.Request.Context(), c.Param("groupId"), id, active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *AutomationHandler) DeleteResponder(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteResponder(c.Request.Context(), c.Param("groupId"), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Responder deleted successfully"})
}

// Custom commands

type commandRequest struct {
	Command         string `json:"command"`
	Description     string `json:"description"`
	ResponseType    string `json:"response_type"`
	ResponseContent string `json:"response_content"`
	AllowVariables  bool   `json:"allow_variables"`
	RequireArgs     bool   `json:"require_args"`
	AdminOnly       bool   `json:"admin_only"`
	IsActive        *bool  `json:"is_active"`
}

func (h *AutomationHandler) GetCommands(c *gin.Context) {
	f, ok := listFilter(c)
	if !ok {
		return
	}
	commands, err := h.Store.ListCommands(c.Request.Context(), c.Param("groupId"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commands)
}

func (h *AutomationHandler) CreateCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := models.CustomCommand{
		GroupID:         c.Param("groupId"),
		Command:         req.Command,
		Description:     req.Description,
		ResponseType:    req.ResponseType,
		ResponseContent: req.ResponseContent,
		AllowVariables:  req.AllowVariables,
		RequireArgs:     req.RequireArgs,
		AdminOnly:       req.AdminOnly,
		IsActive:        boolOr(req.IsActive, true),
	}
	if err := h.Store.CreateCommand(c.Request.Context(), &cmd); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cmd)
}

func (h *AutomationHandler) GetCommand(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	cmd, err := h.Store.GetCommand(c.Request.Context(), c.Param("groupId"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmd)
}

func (h *AutomationHandler) ToggleCommand(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	active, ok := toggleBody(c)
	if !ok {
		return
	}
	cmd, err := h.Store.ToggleCommand(c.Request.Context(), c.Param("groupId"), id, active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmd)
}

func (h *AutomationHandler) DeleteCommand(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteCommand(c.Request.Context(), c.Param("groupId"), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Command deleted successfully"})
}

// GetLogs returns the group's most recent trigger log entries
func (h *AutomationHandler) GetLogs(c *gin.Context) {
	limit := store.DefaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer", "field": "limit"})
			return
		}
		limit = n
	}

	entries, err := h.Logs.Recent(c.Request.Context(), c.Param("groupId"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetStats returns automation statistics for the group
func (h *AutomationHandler) GetStats(c *gin.Context) {
	stats, err := h.Stats.Compute(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
