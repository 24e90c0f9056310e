// Telegram webhook handler.
//
// This file exposes the single inbound endpoint:
//   - POST {WEBHOOK_PATH}   (receive a Telegram Update, run the pipeline)
//
// The handler is transport-thin: it authenticates the webhook secret when
// one is configured, classifies the body (empty / malformed / valid), and
// delegates to the pipeline service. Response policy: empty bodies and
// non-text updates are 200 no-ops so Telegram never retries them; malformed
// JSON is a 400; only a fatal pipeline error (user resolution) produces a 500.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-telegram-bridge/internal/http/middleware"
	"github.com/tbourn/go-telegram-bridge/internal/services"
)

// secretTokenHeader is set by Telegram on every webhook call when the
// webhook was registered with a secret_token.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookService runs the bridge pipeline for one update.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type WebhookService interface {
	Process(ctx context.Context, upd *tgbotapi.Update) (*services.Outcome, error)
}

// Handlers groups the webhook endpoints and their dependencies.
type Handlers struct {
	svc    WebhookService
	secret string
}

// New constructs a Handlers instance bound to the pipeline service. secret
// may be empty to disable webhook authentication.
func New(svc WebhookService, secret string) *Handlers {
	return &Handlers{svc: svc, secret: secret}
}

// TelegramWebhook receives one Telegram Update and runs it through the
// pipeline. It always answers a structured JSON envelope; Telegram only
// needs the 2xx.
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	if h.secret != "" && c.GetHeader(secretTokenHeader) != h.secret {
		fail(c, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "unable to read request body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// Health probes and misconfigured callers; nothing to process.
		okStatus(c, "empty update")
		return
	}

	var upd tgbotapi.Update
	if err := json.Unmarshal(body, &upd); err != nil {
		fail(c, http.StatusBadRequest, "malformed update payload")
		return
	}

	out, err := h.svc.Process(c.Request.Context(), &upd)
	if err != nil {
		// Store errors can carry backend response text; keep that in the
		// logs and hand the caller a generic envelope.
		middleware.LoggerFrom(c).Error().Err(err).Msg("pipeline failed")
		fail(c, http.StatusInternalServerError, "failed to process update")
		return
	}
	if out.Filtered {
		okStatus(c, out.Reason)
		return
	}

	lg := middleware.LoggerFrom(c)
	lg.Info().
		Bool("fallback", out.Fallback).
		Int("reply_len", len(out.Reply)).
		Msg("update processed")
	okStatus(c, "")
}
