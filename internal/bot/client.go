// Package bot is the Telegram side of the Mini App: a long-polling client
// built on go-telegram/bot and the handlers for /start and Mini App data
// messages.
package bot

import (
	"context"
	"net/http"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/metrics"
	"github.com/iantal/miniapp/internal/util"
	"golang.org/x/xerrors"
)

const provider = "telegram"

// Client calls the Telegram Bot API
type Client struct {
	l      *util.StandardLogger
	b      *tgbot.Bot
	token  string
	handle func(context.Context, *models.Update)
}

// NewClient connects to apiURL and checks the token with getMe.
// pollTimeout is the long-poll duration in seconds.
func NewClient(l *util.StandardLogger, apiURL, token string, pollTimeout int) (*Client, error) {
	c := &Client{l: l, token: token}

	hc := &http.Client{
		// leave room for the server to hold the long poll
		Timeout: time.Duration(pollTimeout+10) * time.Second,
	}

	b, err := tgbot.New(token,
		tgbot.WithServerURL(strings.TrimRight(apiURL, "/")),
		tgbot.WithHTTPClient(time.Duration(pollTimeout+1)*time.Second, hc),
		tgbot.WithDefaultHandler(c.dispatch),
		tgbot.WithErrorsHandler(c.pollError),
	)
	if err != nil {
		err = c.providerError("getMe", err)
		metrics.ProviderCall(provider, "getMe", err)
		return nil, err
	}
	metrics.ProviderCall(provider, "getMe", nil)

	c.b = b
	return c, nil
}

// Poll long-polls for updates and calls handle for each one until ctx is
// cancelled
func (c *Client) Poll(ctx context.Context, handle func(context.Context, *models.Update)) {
	c.handle = handle
	c.b.Start(ctx)
}

// SendMessage posts text to a chat with an optional inline keyboard
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) error {
	params := &tgbot.SendMessageParams{ChatID: chatID, Text: text}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	_, err := c.b.SendMessage(ctx, params)
	if err != nil {
		err = c.providerError("sendMessage", err)
	}
	metrics.ProviderCall(provider, "sendMessage", err)
	return err
}

func (c *Client) dispatch(ctx context.Context, _ *tgbot.Bot, u *models.Update) {
	if c.handle != nil {
		c.handle(ctx, u)
	}
}

func (c *Client) pollError(err error) {
	metrics.ProviderCall(provider, "getUpdates", err)
	c.l.WithField("error", redact(err.Error(), c.token)).Error("Unable to fetch updates")
}

// providerError maps a Bot API failure to *domain.ErrProvider. The request
// url carries the token, so it never reaches the message.
func (c *Client) providerError(method string, err error) error {
	msg := method + " failed: " + redact(err.Error(), c.token)

	var tmr *tgbot.TooManyRequestsError
	if xerrors.As(err, &tmr) {
		return &domain.ErrProvider{Provider: provider, Status: http.StatusTooManyRequests, Message: msg}
	}

	status := http.StatusBadGateway
	switch {
	case xerrors.Is(err, tgbot.ErrorForbidden):
		status = http.StatusForbidden
	case xerrors.Is(err, tgbot.ErrorUnauthorized):
		status = http.StatusUnauthorized
	case xerrors.Is(err, tgbot.ErrorBadRequest):
		status = http.StatusBadRequest
	case xerrors.Is(err, tgbot.ErrorNotFound):
		status = http.StatusNotFound
	case xerrors.Is(err, tgbot.ErrorConflict):
		status = http.StatusConflict
	}
	return &domain.ErrProvider{Provider: provider, Status: status, Message: msg}
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}
