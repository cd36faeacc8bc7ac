// Package factory builds the messenger provider matching a source's
// channel type. It lives outside the messenger package so the provider
// variants can import the shared interfaces without a cycle.
package factory

import (
	"fmt"
	"log/slog"

	"github.com/relaydesk/relaydesk/internal/messenger"
	"github.com/relaydesk/relaydesk/internal/messenger/telegram"
	"github.com/relaydesk/relaydesk/internal/messenger/vk"
	"github.com/relaydesk/relaydesk/internal/messenger/web"
	"github.com/relaydesk/relaydesk/internal/source"
)

// Factory builds the provider matching a source's channel type.
type Factory struct {
	logger *slog.Logger
}

// New creates a provider factory.
func New(log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{logger: log}
}

// ForSource returns the provider for the source's channel. VK sources read
// the community access_token from settings, Telegram sources the bot_token;
// web sources deliver through the event stream and need no credentials.
func (f *Factory) ForSource(src source.Source) (messenger.Provider, error) {
	switch src.Type {
	case source.TypeVk:
		token := src.Setting("access_token")
		if token == "" {
			return nil, fmt.Errorf("source %d: missing access_token setting", src.ID)
		}
		return vk.New(f.logger, token), nil
	case source.TypeTg:
		token := src.Setting("bot_token")
		if token == "" {
			return nil, fmt.Errorf("source %d: missing bot_token setting", src.ID)
		}
		return telegram.New(f.logger, token), nil
	case source.TypeWeb:
		return web.New(), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}
}
