package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"groupbot-gateway/internal/condition"
	"groupbot-gateway/internal/models"

	"github.com/google/uuid"
)

// Counters are the per-definition counters bumped after successful runs.
type Counters interface {
	RecordWorkflowRun(ctx context.Context, id uint, at time.Time) error
	IncrementResponder(ctx context.Context, id uint) error
	IncrementCommand(ctx context.Context, id uint) error
}

type LogWriter interface {
	Append(ctx context.Context, entry *models.TriggerLogEntry) error
}

// Notifier is told about every log entry after it is written.
type Notifier interface {
	NotifyTrigger(entry models.TriggerLogEntry)
}

// ActionError is the failure of one action in a chain.
type ActionError struct {
	Index int
	Type  models.ActionType
	Err   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index+1, e.Type, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

var errNoSubject = errors.New("event has no target user")

// Executor runs matched definitions and records one log entry per run.
type Executor struct {
	messenger   Messenger
	counters    Counters
	logs        LogWriter
	notifier    Notifier
	clock       Clock
	httpClient  *http.Client
	httpTimeout time.Duration
	conditions  *condition.Evaluator

	randMu   sync.Mutex
	rand     *rand.Rand
	rotation sync.Map
}

// Execute performs every action of m at most once and returns the log
// entry it appended.
func (e *Executor) Execute(ctx context.Context, m Match) models.TriggerLogEntry {
	entry := models.TriggerLogEntry{
		GroupID:        m.Event.GroupID(),
		RunID:          uuid.NewString(),
		TriggerType:    m.TriggerType(),
		DefinitionKind: m.Kind,
		DefinitionID:   m.DefinitionID(),
		DefinitionName: m.DefinitionName(),
		Context:        logContext(m),
	}

	var err error
	if m.Rejection != "" {
		err = errors.New(m.Rejection)
	} else {
		switch m.Kind {
		case models.KindWorkflow:
			entry.ActionsExecuted, err = e.runWorkflow(ctx, m)
		case models.KindResponder:
			entry.ActionsExecuted, err = e.respond(ctx, m)
		case models.KindCommand:
			entry.ActionsExecuted, err = e.answerCommand(ctx, m)
		}
	}

	entry.Success = err == nil
	if err != nil {
		entry.Error = err.Error()
		log.Printf("Automation %s %q failed: %v", m.Kind, entry.DefinitionName, err)
	}
	entry.CreatedAt = e.clock.Now().UTC()

	if err := e.logs.Append(context.WithoutCancel(ctx), &entry); err != nil {
		log.Printf("Error writing trigger log: %v", err)
	}
	if e.notifier != nil {
		e.notifier.NotifyTrigger(entry)
	}
	return entry
}

// runWorkflow executes actions in order. It stops at the first failure or
// at a condition that evaluates to false, returning how many actions ran.
func (e *Executor) runWorkflow(ctx context.Context, m Match) (int, error) {
	wf := m.Workflow
	vars := variables(m.Event, m.Args)

	executed := 0
	for i, action := range wf.Actions {
		if action.DelaySeconds > 0 {
			if err := e.sleep(ctx, time.Duration(action.DelaySeconds)*time.Second); err != nil {
				return executed, &ActionError{Index: i, Type: action.Type, Err: err}
			}
		}

		proceed, err := e.runAction(ctx, action, m, vars)
		if err != nil {
			return executed, &ActionError{Index: i, Type: action.Type, Err: err}
		}
		executed++
		if !proceed {
			break
		}
	}

	if executed > 0 {
		if err := e.counters.RecordWorkflowRun(context.WithoutCancel(ctx), wf.ID, e.clock.Now().UTC()); err != nil {
			log.Printf("Error recording run of workflow %d: %v", wf.ID, err)
		}
	}
	return executed, nil
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-e.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runAction performs one action. proceed is false when a condition ends
// the chain.
func (e *Executor) runAction(ctx context.Context, action models.WorkflowAction, m Match, vars map[string]string) (proceed bool, err error) {
	chatID := m.Event.GroupID()
	user, hasUser := subjectOf(m.Event)

	switch p := action.Resolved().(type) {
	case models.SendMessageParams:
		return true, e.messenger.SendMessage(ctx, chatID, render(p.Text, vars))

	case models.DeleteMessageParams:
		msg, ok := m.Event.(ChatMessage)
		if !ok || msg.MessageID == "" {
			return false, errors.New("event has no message to delete")
		}
		return true, e.messenger.DeleteMessage(ctx, chatID, msg.MessageID)

	case models.WarnUserParams:
		if !hasUser {
			return false, errNoSubject
		}
		return true, e.messenger.WarnUser(ctx, chatID, user, render(p.Reason, vars))

	case models.MuteUserParams:
		if !hasUser {
			return false, errNoSubject
		}
		seconds := p.DurationSeconds
		if seconds == 0 {
			seconds = models.DefaultMuteSeconds
		}
		return true, e.messenger.MuteUser(ctx, chatID, user.ID, time.Duration(seconds)*time.Second)

	case models.KickUserParams:
		if !hasUser {
			return false, errNoSubject
		}
		return true, e.messenger.KickUser(ctx, chatID, user.ID, render(p.Reason, vars))

	case models.AssignRoleParams:
		if !hasUser {
			return false, errNoSubject
		}
		return true, e.messenger.AssignRole(ctx, chatID, user.ID, p.Role)

	case models.SendDMParams:
		if !hasUser {
			return false, errNoSubject
		}
		return true, e.messenger.SendDirect(ctx, user.ID, render(p.Text, vars))

	case models.WaitParams:
		return true, nil

	case models.ConditionParams:
		return e.conditions.Eval(p.Expression, e.conditionEnv(m))

	case models.HTTPRequestParams:
		return true, e.doHTTP(ctx, p, vars)
	}
	return false, fmt.Errorf("unsupported action type %q", action.Type)
}

func (e *Executor) conditionEnv(m Match) condition.Env {
	chat := chatOf(m.Event)
	env := condition.Env{
		"text":    "",
		"args":    m.Args,
		"user":    map[string]interface{}{},
		"chat":    map[string]interface{}{"id": chat.ID, "title": chat.Title},
		"event":   map[string]interface{}{"kind": m.Event.Kind(), "name": ""},
		"payload": map[string]interface{}{},
		"now":     e.clock.Now(),
	}
	if u, ok := subjectOf(m.Event); ok {
		env["user"] = map[string]interface{}{
			"id":         u.ID,
			"username":   u.Username,
			"first_name": u.FirstName,
			"is_admin":   u.IsAdmin,
		}
	}
	switch ev := m.Event.(type) {
	case ChatMessage:
		env["text"] = ev.Text
	case GenericEvent:
		env["event"] = map[string]interface{}{"kind": ev.Kind(), "name": ev.Name}
		if ev.Payload != nil {
			env["payload"] = ev.Payload
		}
	case ScheduledTick:
		env["now"] = ev.Time
	}
	return env
}

func (e *Executor) doHTTP(ctx context.Context, p models.HTTPRequestParams, vars map[string]string) error {
	timeout := e.httpTimeout
	if p.TimeoutSeconds > 0 {
		timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := p.Method
	if method == "" {
		method = http.MethodGet
		if p.Body != "" {
			method = http.MethodPost
		}
	}

	var body io.Reader
	if p.Body != "" {
		body = strings.NewReader(render(p.Body, vars))
	}
	req, err := http.NewRequestWithContext(ctx, method, render(p.URL, vars), body)
	if err != nil {
		return err
	}
	for k, v := range p.Headers {
		req.Header.Set(k, render(v, vars))
	}
	if p.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s returned status %d", method, req.URL.Redacted(), resp.StatusCode)
	}
	return nil
}

// respond sends one response and optionally deletes the triggering message.
func (e *Executor) respond(ctx context.Context, m Match) (int, error) {
	r := m.Responder
	msg := m.Event.(ChatMessage)

	text := render(e.pickResponse(r), variables(m.Event, ""))
	if err := e.messenger.SendMessage(ctx, msg.Chat.ID, text); err != nil {
		return 0, err
	}
	executed := 1
	if r.DeleteTrigger && msg.MessageID != "" {
		if err := e.messenger.DeleteMessage(ctx, msg.Chat.ID, msg.MessageID); err != nil {
			return executed, fmt.Errorf("delete trigger message: %w", err)
		}
		executed++
	}

	// trigger_count tracks successful log entries only.
	if err := e.counters.IncrementResponder(context.WithoutCancel(ctx), r.ID); err != nil {
		log.Printf("Error counting responder %d: %v", r.ID, err)
	}
	return executed, nil
}

// pickResponse chooses uniformly at random, or rotates through the
// non-blank responses in order.
func (e *Executor) pickResponse(r *models.KeywordResponder) string {
	var candidates []string
	for _, resp := range r.Responses {
		if strings.TrimSpace(resp) != "" {
			candidates = append(candidates, resp)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	if r.RandomResponse {
		e.randMu.Lock()
		i := e.rand.Intn(len(candidates))
		e.randMu.Unlock()
		return candidates[i]
	}

	v, _ := e.rotation.LoadOrStore(r.ID, new(uint64))
	n := atomic.AddUint64(v.(*uint64), 1) - 1
	return candidates[n%uint64(len(candidates))]
}

func (e *Executor) answerCommand(ctx context.Context, m Match) (int, error) {
	cmd := m.Command
	text := cmd.ResponseContent
	if cmd.AllowVariables {
		text = render(text, variables(m.Event, m.Args))
	}
	if err := e.messenger.SendMessage(ctx, m.Event.GroupID(), text); err != nil {
		return 0, err
	}
	if err := e.counters.IncrementCommand(context.WithoutCancel(ctx), cmd.ID); err != nil {
		log.Printf("Error counting command %d: %v", cmd.ID, err)
	}
	return 1, nil
}

func logContext(m Match) map[string]interface{} {
	ctx := map[string]interface{}{"event": m.Event.Kind()}
	if u, ok := subjectOf(m.Event); ok {
		ctx["user_id"] = u.ID
	}
	switch ev := m.Event.(type) {
	case ChatMessage:
		ctx["message_id"] = ev.MessageID
		ctx["text"] = ev.Text
	case GenericEvent:
		ctx["event_name"] = ev.Name
	case ScheduledTick:
		ctx["tick"] = ev.Time.Format(time.RFC3339)
	}
	if m.Args != "" {
		ctx["args"] = m.Args
	}
	return ctx
}
