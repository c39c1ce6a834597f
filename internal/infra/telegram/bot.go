// Package telegram delivers notifications to a chat and receives operator
// commands through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrNoToken is returned when the bot token is empty.
var ErrNoToken = errors.New("telegram bot token not configured")

// Config holds bot settings.
type Config struct {
	Token       string `yaml:"token"`
	Channel     string `yaml:"channel"`      // numeric chat id or @channel username
	Owner       string `yaml:"owner"`        // numeric user id or username allowed to send commands
	APIEndpoint string `yaml:"api_endpoint"` // override for self-hosted Bot API servers
	PollTimeout int    `yaml:"poll_timeout"` // long polling timeout in seconds
}

// Handler answers an operator command. An empty reply sends nothing.
type Handler func(ctx context.Context, text string) string

// Bot wraps the Telegram Bot API client.
type Bot struct {
	api   *tgbotapi.BotAPI
	owner string
	cfg   Config
	log   *slog.Logger
}

// NewBot authenticates against the Bot API.
func NewBot(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}

	b := &Bot{
		api:   api,
		owner: strings.ToLower(strings.TrimPrefix(cfg.Owner, "@")),
		cfg:   cfg,
		log:   slog.Default().With("component", "telegram"),
	}
	b.log.Info("Telegram bot connected", "username", api.Self.UserName)
	return b, nil
}

// Notify sends a Markdown message with link previews disabled.
func (b *Bot) Notify(ctx context.Context, channel, text string) error {
	msg, err := newMessage(channel, text)
	if err != nil {
		return err
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// Listen long-polls updates and dispatches the owner's private text
// messages to handler until ctx is cancelled.
func (b *Bot) Listen(ctx context.Context, handler Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update, handler)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update, handler Handler) {
	m := update.Message
	if m == nil || m.Text == "" || !b.allowed(m) {
		return
	}

	reply := handler(ctx, m.Text)
	if reply == "" {
		return
	}

	msg := tgbotapi.NewMessage(m.Chat.ID, reply)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = m.MessageID
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("Failed to reply to command", "chat", m.Chat.ID, "error", err)
	}
}

// allowed accepts private messages from the configured owner only.
func (b *Bot) allowed(m *tgbotapi.Message) bool {
	if m.Chat == nil || !m.Chat.IsPrivate() || m.From == nil || b.owner == "" {
		return false
	}
	if strconv.FormatInt(m.From.ID, 10) == b.owner {
		return true
	}
	return strings.ToLower(m.From.UserName) == b.owner
}

func newMessage(channel, text string) (tgbotapi.MessageConfig, error) {
	channel = strings.TrimSpace(channel)
	var msg tgbotapi.MessageConfig
	switch {
	case channel == "":
		return msg, errors.New("telegram channel not configured")
	case strings.HasPrefix(channel, "@"):
		msg = tgbotapi.NewMessageToChannel(channel, text)
	default:
		id, err := strconv.ParseInt(channel, 10, 64)
		if err != nil {
			msg = tgbotapi.NewMessageToChannel("@"+channel, text)
		} else {
			msg = tgbotapi.NewMessage(id, text)
		}
	}
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	return msg, nil
}
