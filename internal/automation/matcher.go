package automation

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"groupbot-gateway/internal/models"
	"groupbot-gateway/internal/schedule"
	"groupbot-gateway/internal/store"

	"github.com/robfig/cron/v3"
)

// Match is one definition selected for an event. A non-empty Rejection
// means the definition was invoked but must not run; it is logged as a
// failure.
type Match struct {
	Kind      models.DefinitionKind
	Workflow  *models.Workflow
	Responder *models.KeywordResponder
	Command   *models.CustomCommand
	Event     Event
	Args      string
	Rejection string
}

func (m Match) DefinitionID() uint {
	switch m.Kind {
	case models.KindWorkflow:
		return m.Workflow.ID
	case models.KindResponder:
		return m.Responder.ID
	default:
		return m.Command.ID
	}
}

func (m Match) DefinitionName() string {
	switch m.Kind {
	case models.KindWorkflow:
		return m.Workflow.Name
	case models.KindResponder:
		return m.Responder.Name()
	default:
		return "/" + m.Command.Command
	}
}

func (m Match) TriggerType() models.TriggerType {
	switch m.Kind {
	case models.KindWorkflow:
		return m.Workflow.TriggerType
	case models.KindResponder:
		return models.TriggerKeyword
	default:
		return models.TriggerCommand
	}
}

// MatchError reports a definition whose trigger cannot be evaluated, such
// as a malformed regex keyword. It never aborts matching.
type MatchError struct {
	Kind    models.DefinitionKind
	ID      uint
	Pattern string
	Err     error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%s %d: bad pattern %q: %v", e.Kind, e.ID, e.Pattern, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }

// Matcher selects the definitions an event triggers. It only reads state.
type Matcher struct {
	cooldowns *Cooldowns
	regexes   sync.Map
	schedules sync.Map

	// BotUsername, when set, makes commands addressed to another bot
	// ("/ban@OtherBot") match nothing.
	BotUsername string

	// OnError receives every MatchError. Defaults to log.Printf.
	OnError func(error)
}

type compiled[T any] struct {
	v   T
	err error
}

func NewMatcher(cooldowns *Cooldowns) *Matcher {
	return &Matcher{
		cooldowns: cooldowns,
		OnError: func(err error) {
			log.Printf("Automation match error: %v", err)
		},
	}
}

// Match returns matches in a fixed order: workflows, then keyword
// responders, then custom commands, each by ascending id. Responders still
// cooling down at now are left out.
func (m *Matcher) Match(ev Event, snap *store.Snapshot, now time.Time) []Match {
	var out []Match

	for i := range snap.Workflows {
		wf := &snap.Workflows[i]
		if match, ok := m.matchWorkflow(ev, wf); ok {
			out = append(out, match)
		}
	}

	msg, isMessage := ev.(ChatMessage)
	if !isMessage {
		return out
	}

	for i := range snap.Responders {
		r := &snap.Responders[i]
		if !m.matchText(models.KindResponder, r.ID, msg.Text, r.Keywords, r.MatchType, r.CaseSensitive) {
			continue
		}
		if !m.cooldowns.Ready(r.ID, r.CooldownSeconds, now) {
			continue
		}
		out = append(out, Match{Kind: models.KindResponder, Responder: r, Event: ev})
	}

	parsed, isCommand := m.command(msg.Text)
	if !isCommand {
		return out
	}
	args := parsed.Args
	for i := range snap.Commands {
		cmd := &snap.Commands[i]
		if cmd.Command != parsed.Name {
			continue
		}
		match := Match{Kind: models.KindCommand, Command: cmd, Event: ev, Args: args}
		switch {
		case cmd.AdminOnly && !msg.Sender.IsAdmin:
			match.Rejection = "command is restricted to admins"
		case cmd.RequireArgs && args == "":
			match.Rejection = fmt.Sprintf("command /%s requires arguments", cmd.Command)
		}
		out = append(out, match)
	}
	return out
}

func (m *Matcher) matchWorkflow(ev Event, wf *models.Workflow) (Match, bool) {
	match := Match{Kind: models.KindWorkflow, Workflow: wf, Event: ev}
	cfg := wf.TriggerConfig

	switch wf.TriggerType {
	case models.TriggerKeyword:
		msg, ok := ev.(ChatMessage)
		return match, ok && m.matchText(models.KindWorkflow, wf.ID, msg.Text, cfg.Keywords, cfg.MatchType, cfg.CaseSensitive)

	case models.TriggerMessage:
		msg, ok := ev.(ChatMessage)
		if !ok || strings.TrimSpace(msg.Text) == "" {
			return match, false
		}
		if len(cfg.Keywords) == 0 {
			return match, true
		}
		return match, m.matchText(models.KindWorkflow, wf.ID, msg.Text, cfg.Keywords, cfg.MatchType, cfg.CaseSensitive)

	case models.TriggerCommand:
		msg, ok := ev.(ChatMessage)
		if !ok {
			return match, false
		}
		cmd, ok := m.command(msg.Text)
		match.Args = cmd.Args
		return match, ok && cmd.Name == cfg.Command

	case models.TriggerNewMember:
		_, ok := ev.(NewMember)
		return match, ok

	case models.TriggerSchedule:
		tick, ok := ev.(ScheduledTick)
		if !ok {
			return match, false
		}
		sched, err := m.schedule(cfg.Schedule)
		if err != nil {
			m.OnError(&MatchError{Kind: models.KindWorkflow, ID: wf.ID, Pattern: cfg.Schedule, Err: err})
			return match, false
		}
		return match, schedule.Due(sched, tick.Time)

	case models.TriggerEvent:
		ge, ok := ev.(GenericEvent)
		return match, ok && ge.Name == cfg.EventName
	}
	return match, false
}

// matchText reports whether text matches any keyword. A responder or
// workflow fires at most once however many keywords match.
func (m *Matcher) matchText(kind models.DefinitionKind, id uint, text string, keywords []string, mt models.MatchType, caseSensitive bool) bool {
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		ok, err := m.matchKeyword(text, kw, mt, caseSensitive)
		if err != nil {
			m.OnError(&MatchError{Kind: kind, ID: id, Pattern: kw, Err: err})
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func (m *Matcher) matchKeyword(text, keyword string, mt models.MatchType, caseSensitive bool) (bool, error) {
	if mt == models.MatchRegex {
		re, err := m.regex(keyword, caseSensitive)
		if err != nil {
			return false, err
		}
		return re.MatchString(text), nil
	}

	if !caseSensitive {
		text = strings.ToLower(text)
		keyword = strings.ToLower(keyword)
	}
	switch mt {
	case models.MatchExact:
		return strings.TrimSpace(text) == strings.TrimSpace(keyword), nil
	case models.MatchStartsWith:
		return strings.HasPrefix(strings.TrimSpace(text), keyword), nil
	default:
		return strings.Contains(text, keyword), nil
	}
}

func (m *Matcher) regex(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	key := pattern
	if !caseSensitive {
		key = "(?i)" + pattern
	}
	if c, ok := m.regexes.Load(key); ok {
		c := c.(compiled[*regexp.Regexp])
		return c.v, c.err
	}
	re, err := regexp.Compile(key)
	m.regexes.Store(key, compiled[*regexp.Regexp]{v: re, err: err})
	return re, err
}

func (m *Matcher) schedule(spec string) (cron.Schedule, error) {
	if c, ok := m.schedules.Load(spec); ok {
		c := c.(compiled[cron.Schedule])
		return c.v, c.err
	}
	sched, err := schedule.Parse(spec)
	m.schedules.Store(spec, compiled[cron.Schedule]{v: sched, err: err})
	return sched, err
}

// Command is a parsed "/name@bot some args" message. Bot is empty when the
// command names no addressee.
type Command struct {
	Name string
	Bot  string
	Args string
}

// ParseCommand splits "/name@bot some args" into its name, addressee and
// arguments.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	var cmd Command
	body := text[1:]
	cmd.Name = body
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		cmd.Name, cmd.Args = body[:i], strings.TrimSpace(body[i:])
	}
	if i := strings.IndexByte(cmd.Name, '@'); i >= 0 {
		cmd.Name, cmd.Bot = cmd.Name[:i], cmd.Name[i+1:]
	}
	if cmd.Name == "" {
		return Command{}, false
	}
	return cmd, true
}

// AddressedTo reports whether the command is meant for the bot called
// username. An empty username accepts every addressee.
func (c Command) AddressedTo(username string) bool {
	username = strings.TrimPrefix(username, "@")
	return c.Bot == "" || username == "" || strings.EqualFold(c.Bot, username)
}

func (m *Matcher) command(text string) (Command, bool) {
	cmd, ok := ParseCommand(text)
	if !ok || !cmd.AddressedTo(m.BotUsername) {
		return Command{}, false
	}
	return cmd, true
}
