// Package services – BridgeService
//
// This file implements the webhook pipeline: resolve the Telegram user,
// load the recent history window, query the language model, deliver the
// reply, and persist both turns. The pipeline is strictly sequential; each
// stage has a fixed failure policy instead of ad hoc exception handling:
//
//	filtered update   → no-op Outcome (no side effects)
//	user lookup/create → fatal (error return, nothing persisted)
//	history fetch      → non-fatal (continue with empty window)
//	language model     → non-fatal (fallback reply, continue)
//	Telegram delivery  → non-fatal (log, still persist)
//	persistence        → non-fatal (log, still acknowledge)
//
// Observability: Process is OpenTelemetry-instrumented; non-fatal stage
// failures are logged and counted, never surfaced to the chat user.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-telegram-bridge/internal/domain"
	"github.com/tbourn/go-telegram-bridge/internal/llm"
	"github.com/tbourn/go-telegram-bridge/internal/metrics"
	"github.com/tbourn/go-telegram-bridge/internal/store"
)

// defaultHistoryLimit bounds the history window when no limit is configured.
const defaultHistoryLimit = 10

// Messenger delivers the reply text to a chat. Implemented by
// telegram.Client; faked in tests.
type Messenger interface {
	SendText(chatID int64, text string) error
}

// Outcome describes what the pipeline did with an update. A nil error with
// Filtered=true means the update was a valid but non-text payload (sticker,
// join event, edited message) and nothing was written anywhere.
type Outcome struct {
	// Filtered is true when the update was skipped without side effects.
	Filtered bool
	// Reason is the informational status for filtered updates.
	Reason string
	// Reply is the text sent to the chat and persisted as the model turn.
	Reply string
	// Fallback is true when the language model failed and the configured
	// fallback text was used instead.
	Fallback bool
}

// BridgeService orchestrates the webhook pipeline against its injected
// collaborators. All fields are required except HistoryLimit (defaults to 10)
// and FallbackReply (defaults are applied by config, not here).
type BridgeService struct {
	Store     store.Store
	LLM       llm.Client
	Messenger Messenger

	// HistoryLimit caps the number of prior turns sent to the model.
	HistoryLimit int
	// FallbackReply is sent when the model call fails; it is also what
	// gets persisted, so history matches what the user actually saw.
	FallbackReply string
}

// Process runs the pipeline for one update. The returned error is fatal
// (user resolution failed); every other failure mode is absorbed per the
// stage policy above.
func (s *BridgeService) Process(ctx context.Context, upd *tgbotapi.Update) (*Outcome, error) {
	tr := otel.Tracer("services/BridgeService")
	ctx, span := tr.Start(ctx, "Process")
	defer span.End()

	metrics.UpdatesReceived.Inc()

	msg := userTextMessage(upd)
	if msg == nil {
		metrics.UpdatesFiltered.Inc()
		return &Outcome{Filtered: true, Reason: "not a user message"}, nil
	}
	text := strings.TrimSpace(msg.Text)
	span.SetAttributes(
		attribute.Int64("telegram.user_id", msg.From.ID),
		attribute.Int64("telegram.chat_id", msg.Chat.ID),
	)

	user, err := s.resolveUser(ctx, msg.From)
	if err != nil {
		return nil, err
	}

	window := s.historyWindow(ctx, user.ID)

	reply, fellBack := s.generateReply(ctx, window, text)

	if err := s.Messenger.SendText(msg.Chat.ID, reply); err != nil {
		metrics.TelegramSendFailures.Inc()
		log.Warn().Err(err).
			Int64("chat_id", msg.Chat.ID).
			Msg("telegram delivery failed, persisting turns anyway")
	}

	// Both turns are appended best-effort; losing one must not cost the
	// user their acknowledgement.
	s.appendTurn(ctx, user.ID, domain.RoleUser, text)
	s.appendTurn(ctx, user.ID, domain.RoleModel, reply)

	return &Outcome{Reply: reply, Fallback: fellBack}, nil
}

// userTextMessage returns the inner message when the update is a plain text
// message from an identifiable user, nil otherwise.
func userTextMessage(upd *tgbotapi.Update) *tgbotapi.Message {
	if upd == nil || upd.Message == nil {
		return nil
	}
	m := upd.Message
	if m.From == nil || m.Chat == nil || strings.TrimSpace(m.Text) == "" {
		return nil
	}
	return m
}

// resolveUser finds the user record for the sender or creates it on first
// contact. Failure here is fatal: without a user id nothing downstream can
// be attributed or persisted.
func (s *BridgeService) resolveUser(ctx context.Context, from *tgbotapi.User) (*domain.User, error) {
	user, err := s.Store.FindUserByTelegramID(ctx, from.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		metrics.StoreErrors.WithLabelValues("find_user").Inc()
		return nil, fmt.Errorf("look up user %d: %w", from.ID, err)
	}

	user = &domain.User{
		TelegramID: from.ID,
		FirstName:  from.FirstName,
		Username:   from.UserName,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		metrics.StoreErrors.WithLabelValues("create_user").Inc()
		return nil, fmt.Errorf("create user %d: %w", from.ID, err)
	}
	metrics.UsersCreated.Inc()
	log.Info().Int64("telegram_id", from.ID).Str("user_id", user.ID).Msg("created user on first contact")
	return user, nil
}

// historyWindow loads the most recent turns and reverses them into
// chronological order for the model. A fetch failure degrades to an empty
// window rather than aborting the pipeline.
func (s *BridgeService) historyWindow(ctx context.Context, userID string) []llm.Message {
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	turns, err := s.Store.ListRecentTurns(ctx, userID, limit)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list_turns").Inc()
		log.Warn().Err(err).Str("user_id", userID).Msg("history fetch failed, continuing with empty window")
		return nil
	}
	out := make([]llm.Message, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		out = append(out, llm.Message{Role: turns[i].Role, Text: turns[i].OptimizedContent})
	}
	return out
}

// generateReply asks the model for a reply to the history window plus the
// new prompt. On failure it substitutes the fallback text so the user always
// receives something and the persisted history stays consistent.
func (s *BridgeService) generateReply(ctx context.Context, window []llm.Message, prompt string) (reply string, fellBack bool) {
	tr := otel.Tracer("services/BridgeService")
	ctx, span := tr.Start(ctx, "generateReply",
		trace.WithAttributes(attribute.Int("history.len", len(window))),
	)
	defer span.End()

	msgs := append(window, llm.Message{Role: domain.RoleUser, Text: prompt})
	reply, err := s.LLM.Generate(ctx, msgs)
	if err != nil {
		metrics.LLMFailures.Inc()
		log.Warn().Err(err).Msg("language model call failed, using fallback reply")
		return s.FallbackReply, true
	}
	return reply, false
}

// appendTurn persists one turn best-effort. OptimizedContent mirrors Content
// until a real optimization pass exists.
func (s *BridgeService) appendTurn(ctx context.Context, userID, role, text string) {
	t := &domain.ChatTurn{
		UserID:           userID,
		Role:             role,
		Content:          text,
		OptimizedContent: text,
	}
	if err := s.Store.AppendTurn(ctx, t); err != nil {
		metrics.StoreErrors.WithLabelValues("append_turn").Inc()
		log.Warn().Err(err).Str("user_id", userID).Str("role", role).Msg("failed to persist turn")
		return
	}
	metrics.TurnsPersisted.WithLabelValues(role).Inc()
}
