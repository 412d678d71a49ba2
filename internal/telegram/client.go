// Package telegram connects the automation engine to a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"groupbot-gateway/internal/automation"
	"groupbot-gateway/internal/config"

	tele "gopkg.in/telebot.v3"
)

// Client implements automation.Messenger with the Bot API.
type Client struct {
	bot *tele.Bot
}

func NewClient(cfg *config.Config) (*Client, error) {
	return newClient(tele.Settings{
		Token:  cfg.TelegramToken,
		Poller: &tele.LongPoller{Timeout: cfg.TelegramPollTimeout},
		OnError: func(err error, c tele.Context) {
			log.Printf("Telegram error: %v", err)
		},
	})
}

func newClient(settings tele.Settings) (*Client, error) {
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Client{bot: bot}, nil
}

func (c *Client) Bot() *tele.Bot {
	return c.bot
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram id %q", s)
	}
	return id, nil
}

func chatAndUser(chatID, userID string) (*tele.Chat, *tele.User, error) {
	cid, err := parseID(chatID)
	if err != nil {
		return nil, nil, err
	}
	uid, err := parseID(userID)
	if err != nil {
		return nil, nil, err
	}
	return &tele.Chat{ID: cid}, &tele.User{ID: uid}, nil
}

func (c *Client) SendMessage(_ context.Context, chatID, text string) error {
	cid, err := parseID(chatID)
	if err != nil {
		return err
	}
	_, err = c.bot.Send(tele.ChatID(cid), text)
	return err
}

func (c *Client) DeleteMessage(_ context.Context, chatID, messageID string) error {
	cid, err := parseID(chatID)
	if err != nil {
		return err
	}
	return c.bot.Delete(&tele.StoredMessage{MessageID: messageID, ChatID: cid})
}

// WarnUser posts a warning that mentions the user in the group.
func (c *Client) WarnUser(ctx context.Context, chatID string, user automation.User, reason string) error {
	text := fmt.Sprintf("⚠️ %s, this is a warning.", user.DisplayName())
	if reason != "" {
		text += " Reason: " + reason
	}
	return c.SendMessage(ctx, chatID, text)
}

func (c *Client) MuteUser(_ context.Context, chatID, userID string, d time.Duration) error {
	chat, user, err := chatAndUser(chatID, userID)
	if err != nil {
		return err
	}
	return c.bot.Restrict(chat, &tele.ChatMember{
		User:            user,
		Rights:          tele.NoRights(),
		RestrictedUntil: time.Now().Add(d).Unix(),
	})
}

// KickUser removes the user without a permanent ban.
func (c *Client) KickUser(_ context.Context, chatID, userID, reason string) error {
	chat, user, err := chatAndUser(chatID, userID)
	if err != nil {
		return err
	}
	if err := c.bot.Ban(chat, &tele.ChatMember{User: user}); err != nil {
		return err
	}
	if reason != "" {
		log.Printf("Kicked %s from %s: %s", userID, chatID, reason)
	}
	return c.bot.Unban(chat, user)
}

// AssignRole promotes the user with minimal rights and sets role as the
// admin title, the only per-member label Telegram groups support.
func (c *Client) AssignRole(_ context.Context, chatID, userID, role string) error {
	chat, user, err := chatAndUser(chatID, userID)
	if err != nil {
		return err
	}
	if err := c.bot.Promote(chat, &tele.ChatMember{
		User:   user,
		Rights: tele.Rights{CanInviteUsers: true},
	}); err != nil {
		return err
	}
	return c.bot.SetAdminTitle(chat, user, role)
}

func (c *Client) SendDirect(_ context.Context, userID, text string) error {
	uid, err := parseID(userID)
	if err != nil {
		return err
	}
	_, err = c.bot.Send(&tele.User{ID: uid}, text)
	return err
}
