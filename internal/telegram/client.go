// Package telegram wraps the Bot API client used to deliver replies. Inbound
// updates reuse the library's Update type directly; this package only owns
// the outbound side.
package telegram

import (
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the seam between Client and the Bot API, so tests can capture
// outbound messages without the network.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

// Client sends text messages on behalf of the bot.
type Client struct {
	s sender
}

// NewClient builds a client for the given bot token. The BotAPI struct is
// assembled directly instead of via tgbotapi.NewBotAPI, which would issue a
// getMe call on construction; a webhook-driven process has no use for that
// round-trip at startup.
func NewClient(token string) *Client {
	api := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: 30 * time.Second},
		Buffer: 100,
	}
	api.SetAPIEndpoint(tgbotapi.APIEndpoint)
	return &Client{s: botAPISender{api: api}}
}

func newClientWithSender(s sender) *Client { return &Client{s: s} }

// SendText delivers text to the given chat. Parse mode is left unset so the
// model output is never misinterpreted as markup.
func (c *Client) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.s.Send(msg); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}
