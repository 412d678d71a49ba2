package automation

import (
	"context"
	"log"
	"time"
)

// Messenger performs the chat-platform side effects of actions.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID string) error
	WarnUser(ctx context.Context, chatID string, user User, reason string) error
	MuteUser(ctx context.Context, chatID, userID string, d time.Duration) error
	KickUser(ctx context.Context, chatID, userID, reason string) error
	AssignRole(ctx context.Context, chatID, userID, role string) error
	SendDirect(ctx context.Context, userID, text string) error
}

// LogMessenger only logs what it would do. Used when no bot token is set.
type LogMessenger struct{}

func (LogMessenger) SendMessage(_ context.Context, chatID, text string) error {
	log.Printf("[dry-run] send to %s: %q", chatID, text)
	return nil
}

func (LogMessenger) DeleteMessage(_ context.Context, chatID, messageID string) error {
	log.Printf("[dry-run] delete message %s in %s", messageID, chatID)
	return nil
}

func (LogMessenger) WarnUser(_ context.Context, chatID string, user User, reason string) error {
	log.Printf("[dry-run] warn %s in %s: %q", user.ID, chatID, reason)
	return nil
}

func (LogMessenger) MuteUser(_ context.Context, chatID, userID string, d time.Duration) error {
	log.Printf("[dry-run] mute %s in %s for %s", userID, chatID, d)
	return nil
}

func (LogMessenger) KickUser(_ context.Context, chatID, userID, reason string) error {
	log.Printf("[dry-run] kick %s from %s: %q", userID, chatID, reason)
	return nil
}

func (LogMessenger) AssignRole(_ context.Context, chatID, userID, role string) error {
	log.Printf("[dry-run] assign role %q to %s in %s", role, userID, chatID)
	return nil
}

func (LogMessenger) SendDirect(_ context.Context, userID, text string) error {
	log.Printf("[dry-run] dm %s: %q", userID, text)
	return nil
}
