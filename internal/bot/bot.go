package bot

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
)

const (
	openText     = "Open the Mini App below"
	openButton   = "Open Mini App"
	missingURL   = "MINIAPP_URL is not set on the server, the Mini App cannot be opened."
	webAppPrefix = "Got data from Mini App:\n\n"
)

// API is the part of the Bot API the bot uses
type API interface {
	Poll(ctx context.Context, handle func(context.Context, *models.Update))
	SendMessage(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) error
}

// Bot answers /start with the Mini App button and acknowledges Mini App data
type Bot struct {
	l          *util.StandardLogger
	api        API
	miniAppURL string
}

func New(l *util.StandardLogger, api API, miniAppURL string) *Bot {
	return &Bot{
		l:          l,
		api:        api,
		miniAppURL: miniAppURL,
	}
}

// Run polls for updates until ctx is cancelled. Failures are logged and
// polling resumes.
func (b *Bot) Run(ctx context.Context) error {
	b.l.Info("Bot polling started")
	b.api.Poll(ctx, func(ctx context.Context, u *models.Update) {
		if err := b.Handle(ctx, u); err != nil {
			b.l.WithFields(logrus.Fields{
				"update_id": u.ID,
				"error":     err,
			}).Error("Unable to handle update")
		}
	})
	b.l.Info("Bot polling stopped")
	return nil
}

// Handle dispatches a single update
func (b *Bot) Handle(ctx context.Context, u *models.Update) error {
	if u == nil || u.Message == nil {
		return nil
	}
	m := u.Message

	switch {
	case m.WebAppData != nil:
		b.l.WithFields(logrus.Fields{
			"chat_id": m.Chat.ID,
			"button":  m.WebAppData.ButtonText,
		}).Info("Received Mini App data")
		return b.api.SendMessage(ctx, m.Chat.ID, webAppPrefix+m.WebAppData.Data, nil)
	case isCommand(m.Text, "start"):
		return b.start(ctx, m.Chat.ID)
	}
	return nil
}

func (b *Bot) start(ctx context.Context, chatID int64) error {
	if b.miniAppURL == "" {
		b.l.Warn("Received /start without MINIAPP_URL")
		return b.api.SendMessage(ctx, chatID, missingURL, nil)
	}

	markup := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: openButton, WebApp: &models.WebAppInfo{URL: b.miniAppURL}},
		}},
	}
	return b.api.SendMessage(ctx, chatID, openText, markup)
}

// isCommand matches "/name", "/name args" and "/name@botname"
func isCommand(text, name string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd := strings.SplitN(fields[0], "@", 2)[0]
	return cmd == "/"+name
}
