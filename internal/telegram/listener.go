package telegram

import (
	"context"
	"log"
	"strconv"

	"groupbot-gateway/internal/automation"

	tele "gopkg.in/telebot.v3"
)

// EventSink receives converted updates.
type EventSink interface {
	Process(ctx context.Context, ev automation.Event) ([]automation.Match, error)
}

// Listener turns group updates into automation events.
type Listener struct {
	bot  *tele.Bot
	sink EventSink
}

func NewListener(client *Client, sink EventSink) *Listener {
	l := &Listener{bot: client.bot, sink: sink}
	l.bot.Handle(tele.OnText, l.onText)
	l.bot.Handle(tele.OnUserJoined, l.onUserJoined)
	return l
}

// Start polls for updates until Stop is called.
func (l *Listener) Start() {
	log.Printf("Telegram listener started as @%s", l.bot.Me.Username)
	l.bot.Start()
}

func (l *Listener) Stop() {
	l.bot.Stop()
}

func (l *Listener) onText(c tele.Context) error {
	msg := c.Message()
	if msg == nil || !isGroup(msg.Chat) {
		return nil
	}

	ev := MessageEvent(msg)
	if _, isCommand := automation.ParseCommand(ev.Text); isCommand {
		ev.Sender.IsAdmin = l.isAdmin(msg.Chat, msg.Sender)
	}
	l.dispatch(ev)
	return nil
}

func (l *Listener) onUserJoined(c tele.Context) error {
	msg := c.Message()
	if msg == nil || !isGroup(msg.Chat) {
		return nil
	}
	for _, ev := range JoinEvents(msg) {
		l.dispatch(ev)
	}
	return nil
}

func (l *Listener) dispatch(ev automation.Event) {
	if _, err := l.sink.Process(context.Background(), ev); err != nil {
		log.Printf("Error processing %s event for %s: %v", ev.Kind(), ev.GroupID(), err)
	}
}

func (l *Listener) isAdmin(chat *tele.Chat, user *tele.User) bool {
	if user == nil {
		return false
	}
	member, err := l.bot.ChatMemberOf(chat, user)
	if err != nil {
		log.Printf("Error checking admin status of %d in %d: %v", user.ID, chat.ID, err)
		return false
	}
	return member.Role == tele.Creator || member.Role == tele.Administrator
}

func isGroup(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

func chatOf(chat *tele.Chat) automation.Chat {
	return automation.Chat{ID: strconv.FormatInt(chat.ID, 10), Title: chat.Title}
}

func userOf(u *tele.User) automation.User {
	if u == nil {
		return automation.User{}
	}
	return automation.User{
		ID:        strconv.FormatInt(u.ID, 10),
		Username:  u.Username,
		FirstName: u.FirstName,
	}
}

// MessageEvent converts a group text message.
func MessageEvent(msg *tele.Message) automation.ChatMessage {
	return automation.ChatMessage{
		Chat:      chatOf(msg.Chat),
		MessageID: strconv.Itoa(msg.ID),
		Text:      msg.Text,
		Sender:    userOf(msg.Sender),
	}
}

// JoinEvents returns one NewMember per joined user, skipping bots.
func JoinEvents(msg *tele.Message) []automation.NewMember {
	users := msg.UsersJoined
	if len(users) == 0 && msg.UserJoined != nil {
		users = []tele.User{*msg.UserJoined}
	}

	var events []automation.NewMember
	for i := range users {
		if users[i].IsBot {
			continue
		}
		events = append(events, automation.NewMember{Chat: chatOf(msg.Chat), User: userOf(&users[i])})
	}
	return events
}
