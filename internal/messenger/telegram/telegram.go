// Package telegram implements the messenger provider backed by the Telegram
// Bot API.
package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relaydesk/relaydesk/internal/messenger"
)

const sendInterval = time.Second

// Bot clients hold a long-lived HTTP client and are created with a getMe
// round trip, so they are cached per token across providers. The send
// limiter is cached the same way: providers are rebuilt per send, and the
// per-recipient spacing must survive across instances.
var (
	botsMu sync.RWMutex
	bots   = make(map[string]*tgbotapi.BotAPI)

	limitersMu sync.Mutex
	limiters   = make(map[string]*limiter)
)

func getOrCreateBot(token string) (*tgbotapi.BotAPI, error) {
	botsMu.RLock()
	bot, ok := bots[token]
	botsMu.RUnlock()
	if ok {
		return bot, nil
	}

	botsMu.Lock()
	defer botsMu.Unlock()
	if bot, ok := bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bots[token] = bot
	return bot, nil
}

func limiterForToken(token string) *limiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()
	l, ok := limiters[token]
	if !ok {
		l = newLimiter(sendInterval)
		limiters[token] = l
	}
	return l
}

// Provider is the Telegram messenger variant.
type Provider struct {
	token   string
	limiter *limiter
	logger  *slog.Logger
}

// New creates a Telegram provider for the given bot token. The underlying
// bot client is created lazily on first send.
func New(log *slog.Logger, token string) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		token:   token,
		limiter: limiterForToken(token),
		logger:  log.With(slog.String("provider", "telegram")),
	}
}

// SendMessage delivers text to the Telegram chat identified by
// externalUserID, waiting out the per-recipient rate limit first.
func (p *Provider) SendMessage(ctx context.Context, externalUserID, text string, options map[string]any) error {
	chatID, err := strconv.ParseInt(externalUserID, 10, 64)
	if err != nil {
		return p.deliveryError(err)
	}
	if err := p.limiter.wait(ctx, externalUserID); err != nil {
		return p.deliveryError(err)
	}
	bot, err := getOrCreateBot(p.token)
	if err != nil {
		return p.deliveryError(err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if mode, ok := options["parse_mode"].(string); ok {
		msg.ParseMode = mode
	}
	if _, err := bot.Send(msg); err != nil {
		return p.deliveryError(err)
	}
	p.logger.Debug("message sent", slog.Int64("chat_id", chatID))
	return nil
}

// ValidateWebhook requires a Bot API update carrying a message or a
// callback query.
func (p *Provider) ValidateWebhook(payload map[string]any) bool {
	if _, ok := payload["message"]; ok {
		return true
	}
	if _, ok := payload["callback_query"]; ok {
		return true
	}
	return false
}

func (p *Provider) deliveryError(err error) error {
	return &messenger.DeliveryError{Provider: "telegram", Err: err}
}
