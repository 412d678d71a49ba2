package automation

import "time"

// User is the person an event is about. IDs are platform ids as strings.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

// DisplayName prefers the first name, then @username, then the id.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return u.ID
	}
}

// Chat identifies the group an event belongs to. Its ID is the group id
// definitions are scoped by.
type Chat struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Event is one inbound occurrence evaluated against a group's definitions.
type Event interface {
	GroupID() string
	Kind() string
}

type ChatMessage struct {
	Chat      Chat
	MessageID string
	Text      string
	Sender    User
}

type NewMember struct {
	Chat Chat
	User User
}

type ScheduledTick struct {
	Chat Chat
	Time time.Time
}

type GenericEvent struct {
	Chat    Chat
	Name    string
	Payload map[string]interface{}
}

func (m ChatMessage) GroupID() string   { return m.Chat.ID }
func (m NewMember) GroupID() string     { return m.Chat.ID }
func (t ScheduledTick) GroupID() string { return t.Chat.ID }
func (g GenericEvent) GroupID() string  { return g.Chat.ID }

func (ChatMessage) Kind() string   { return "message" }
func (NewMember) Kind() string     { return "new_member" }
func (ScheduledTick) Kind() string { return "schedule" }
func (GenericEvent) Kind() string  { return "event" }

func chatOf(ev Event) Chat {
	switch e := ev.(type) {
	case ChatMessage:
		return e.Chat
	case NewMember:
		return e.Chat
	case ScheduledTick:
		return e.Chat
	case GenericEvent:
		return e.Chat
	}
	return Chat{ID: ev.GroupID()}
}

// subjectOf returns the user an event acts on, if any.
func subjectOf(ev Event) (User, bool) {
	switch e := ev.(type) {
	case ChatMessage:
		return e.Sender, e.Sender.ID != ""
	case NewMember:
		return e.User, e.User.ID != ""
	case GenericEvent:
		return userFromPayload(e.Payload)
	}
	return User{}, false
}

// userFromPayload reads an optional {"user": {"id": ...}} object from a
// generic event payload.
func userFromPayload(payload map[string]interface{}) (User, bool) {
	raw, ok := payload["user"].(map[string]interface{})
	if !ok {
		return User{}, false
	}
	str := func(key string) string {
		s, _ := raw[key].(string)
		return s
	}
	u := User{ID: str("id"), Username: str("username"), FirstName: str("first_name")}
	u.IsAdmin, _ = raw["is_admin"].(bool)
	return u, u.ID != ""
}
