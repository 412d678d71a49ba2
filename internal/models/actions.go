package models

import (
	"encoding/json"
	"fmt"
)

type ActionType string

const (
	ActionSendMessage   ActionType = "send_message"
	ActionDeleteMessage ActionType = "delete_message"
	ActionWarnUser      ActionType = "warn_user"
	ActionMuteUser      ActionType = "mute_user"
	ActionKickUser      ActionType = "kick_user"
	ActionAssignRole    ActionType = "assign_role"
	ActionSendDM        ActionType = "send_dm"
	ActionWait          ActionType = "wait"
	ActionCondition     ActionType = "condition"
	ActionHTTPRequest   ActionType = "http_request"
)

// MaxDelaySeconds bounds delay_seconds on a single action.
const MaxDelaySeconds = 24 * 60 * 60

// DefaultMuteSeconds is used when mute_user omits duration_seconds.
const DefaultMuteSeconds = 3600

// ActionParams is implemented by exactly one params struct per ActionType.
type ActionParams interface {
	ActionType() ActionType
}

type SendMessageParams struct {
	Text string `json:"text"`
}

type DeleteMessageParams struct{}

type WarnUserParams struct {
	Reason string `json:"reason,omitempty"`
}

type MuteUserParams struct {
	DurationSeconds int `json:"duration_seconds,omitempty"`
}

type KickUserParams struct {
	Reason string `json:"reason,omitempty"`
}

type AssignRoleParams struct {
	Role string `json:"role"`
}

type SendDMParams struct {
	Text string `json:"text"`
}

type WaitParams struct{}

// ConditionParams holds a boolean expression. A false result ends the chain.
type ConditionParams struct {
	Expression string `json:"expression"`
}

type HTTPRequestParams struct {
	Method         string            `json:"method,omitempty"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

func (SendMessageParams) ActionType() ActionType   { return ActionSendMessage }
func (DeleteMessageParams) ActionType() ActionType { return ActionDeleteMessage }
func (WarnUserParams) ActionType() ActionType      { return ActionWarnUser }
func (MuteUserParams) ActionType() ActionType      { return ActionMuteUser }
func (KickUserParams) ActionType() ActionType      { return ActionKickUser }
func (AssignRoleParams) ActionType() ActionType    { return ActionAssignRole }
func (SendDMParams) ActionType() ActionType        { return ActionSendDM }
func (WaitParams) ActionType() ActionType          { return ActionWait }
func (ConditionParams) ActionType() ActionType     { return ActionCondition }
func (HTTPRequestParams) ActionType() ActionType   { return ActionHTTPRequest }

// WorkflowAction is one step of a workflow's action chain.
type WorkflowAction struct {
	Type         ActionType
	DelaySeconds int
	Params       ActionParams
}

type actionEnvelope struct {
	Type         ActionType      `json:"type"`
	DelaySeconds int             `json:"delay_seconds,omitempty"`
	Params       json.RawMessage `json:"params,omitempty"`
}

// NewAction builds an action whose Type matches its params.
func NewAction(params ActionParams, delaySeconds int) WorkflowAction {
	return WorkflowAction{Type: params.ActionType(), DelaySeconds: delaySeconds, Params: params}
}

func newParams(t ActionType) (ActionParams, error) {
	switch t {
	case ActionSendMessage:
		return &SendMessageParams{}, nil
	case ActionDeleteMessage:
		return &DeleteMessageParams{}, nil
	case ActionWarnUser:
		return &WarnUserParams{}, nil
	case ActionMuteUser:
		return &MuteUserParams{}, nil
	case ActionKickUser:
		return &KickUserParams{}, nil
	case ActionAssignRole:
		return &AssignRoleParams{}, nil
	case ActionSendDM:
		return &SendDMParams{}, nil
	case ActionWait:
		return &WaitParams{}, nil
	case ActionCondition:
		return &ConditionParams{}, nil
	case ActionHTTPRequest:
		return &HTTPRequestParams{}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", t)
	}
}

func (a *WorkflowAction) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	params, err := newParams(env.Type)
	if err != nil {
		return err
	}
	if len(env.Params) > 0 && string(env.Params) != "null" {
		if err := json.Unmarshal(env.Params, params); err != nil {
			return fmt.Errorf("params for %s: %w", env.Type, err)
		}
	}

	a.Type = env.Type
	a.DelaySeconds = env.DelaySeconds
	a.Params = derefParams(params)
	return nil
}

func (a WorkflowAction) MarshalJSON() ([]byte, error) {
	env := actionEnvelope{Type: a.Type, DelaySeconds: a.DelaySeconds}
	if a.Params != nil {
		raw, err := json.Marshal(a.Params)
		if err != nil {
			return nil, err
		}
		env.Params = raw
	}
	return json.Marshal(env)
}

// Resolved returns Params, or the zero params of Type when none were given.
func (a WorkflowAction) Resolved() ActionParams {
	if a.Params != nil {
		return a.Params
	}
	p, err := newParams(a.Type)
	if err != nil {
		return nil
	}
	return derefParams(p)
}

// derefParams stores params by value so type switches see one shape.
func derefParams(p ActionParams) ActionParams {
	switch v := p.(type) {
	case *SendMessageParams:
		return *v
	case *DeleteMessageParams:
		return *v
	case *WarnUserParams:
		return *v
	case *MuteUserParams:
		return *v
	case *KickUserParams:
		return *v
	case *AssignRoleParams:
		return *v
	case *SendDMParams:
		return *v
	case *WaitParams:
		return *v
	case *ConditionParams:
		return *v
	case *HTTPRequestParams:
		return *v
	}
	return p
}

// Validate checks the type-specific required fields. Condition expressions
// are compiled separately by the store.
func (a WorkflowAction) Validate() error {
	if a.DelaySeconds < 0 || a.DelaySeconds > MaxDelaySeconds {
		return fmt.Errorf("delay_seconds must be between 0 and %d", MaxDelaySeconds)
	}
	if a.Params == nil {
		if _, err := newParams(a.Type); err != nil {
			return err
		}
		a.Params = a.Resolved()
	}
	if a.Params.ActionType() != a.Type {
		return fmt.Errorf("params do not match action type %q", a.Type)
	}

	switch p := a.Params.(type) {
	case SendMessageParams:
		if p.Text == "" {
			return fmt.Errorf("send_message requires text")
		}
	case SendDMParams:
		if p.Text == "" {
			return fmt.Errorf("send_dm requires text")
		}
	case AssignRoleParams:
		if p.Role == "" {
			return fmt.Errorf("assign_role requires role")
		}
	case MuteUserParams:
		if p.DurationSeconds < 0 {
			return fmt.Errorf("mute_user duration_seconds must not be negative")
		}
	case ConditionParams:
		if p.Expression == "" {
			return fmt.Errorf("condition requires expression")
		}
	case HTTPRequestParams:
		if p.URL == "" {
			return fmt.Errorf("http_request requires url")
		}
		switch p.Method {
		case "", "GET", "POST", "PUT", "PATCH", "DELETE":
		default:
			return fmt.Errorf("http_request method %q is not supported", p.Method)
		}
		if p.TimeoutSeconds < 0 {
			return fmt.Errorf("http_request timeout_seconds must not be negative")
		}
	}
	return nil
}
