package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"MedScanner/internal/ports"
)

// maxMessageRunes is Telegram's limit for one text message.
const maxMessageRunes = 4096

// Sender is the subset of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends digests to a Telegram chat or channel via the bot API.
type Notifier struct {
	sender Sender
	chatID string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier authenticates the bot token and remembers the default chat.
func NewNotifier(botToken, chatID string) (*Notifier, error) {
	if botToken == "" || chatID == "" {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return NewNotifierWithSender(api, chatID), nil
}

// NewNotifierWithSender wires an existing sender.
func NewNotifierWithSender(sender Sender, chatID string) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

// Post sends message to channelRef (a numeric chat id or an @channel name), falling back
// to the default chat. Long messages are split on line boundaries.
func (n *Notifier) Post(ctx context.Context, channelRef, message string) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	target := strings.TrimSpace(channelRef)
	if target == "" {
		target = n.chatID
	}
	if target == "" {
		return fmt.Errorf("telegram notifier has no chat")
	}

	for _, chunk := range Split(message, maxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := newMessage(target, chunk)
		if err != nil {
			return err
		}
		msg.DisableWebPagePreview = true
		if _, err := n.sender.Send(msg); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func newMessage(target, text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(target, "@") {
		return tgbotapi.NewMessageToChannel(target, text), nil
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid telegram chat id %q", target)
	}
	return tgbotapi.NewMessage(id, text), nil
}

// Split cuts text into pieces of at most limit runes, preferring newline boundaries.
func Split(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
			current = current[:0]
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(current)+len(runes) > limit {
			flush()
		}
		current = append(current, runes...)
	}
	flush()
	return chunks
}
