package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

// EtherDecimals is the number of base-unit digits in one Ether.
const EtherDecimals = 18

// Notifier delivers a formatted message to a chat channel.
type Notifier interface {
	// Notify sends text to channel. The text uses Telegram Markdown.
	Notify(ctx context.Context, channel, text string) error
}

// FormatMint renders the notification for a mint transaction.
func FormatMint(txURL string, tx domain.Transaction, name string) string {
	if name == "" {
		name = "None"
	}
	return fmt.Sprintf(
		"🆕 [%s](%s) (*%s*)\n📅 %s\n💰 %s Ether\n",
		tx.ShortHash(),
		txURL,
		EscapeMarkdown(name),
		time.Unix(tx.Timestamp, 0).UTC().Format(time.DateTime),
		FormatEther(tx.Value),
	)
}

// EscapeMarkdown escapes user supplied text for Telegram Markdown.
func EscapeMarkdown(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

// FormatEther converts a base-unit integer string into Ether.
// Unparseable input is returned unchanged.
func FormatEther(wei string) string {
	value, err := decimal.NewFromString(wei)
	if err != nil {
		return wei
	}
	return value.Shift(-EtherDecimals).String()
}

// LogNotifier writes notifications to the log instead of a chat.
// Used when no bot token is configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With("component", "notifier")}
}

// Notify logs the message.
func (n *LogNotifier) Notify(ctx context.Context, channel, text string) error {
	n.log.Info("Notification", "channel", channel, "text", text)
	return nil
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// Message is a recorded notification.
type Message struct {
	Channel string
	Text    string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Notify calls return err (nil restores success).
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Notify records the message unless a failure is configured.
func (r *Recorder) Notify(ctx context.Context, channel, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, Message{Channel: channel, Text: text})
	return nil
}

// Messages returns a copy of the recorded notifications.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
