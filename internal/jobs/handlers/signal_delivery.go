package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot"
	"github.com/Proton-105/sigmapips-bot/internal/jobs"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
)

// MessageSender publishes a signal message.
type MessageSender interface {
	Send(ctx context.Context, msg bot.OutboundMessage) (*telebot.Message, error)
}

type SignalDeliveryHandler struct {
	sender MessageSender
	log    *slog.Logger
}

func NewSignalDeliveryHandler(sender MessageSender, log *slog.Logger) *SignalDeliveryHandler {
	if log == nil {
		log = slog.Default()
	}

	return &SignalDeliveryHandler{sender: sender, log: log}
}

func (h *SignalDeliveryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.ParseSignalDeliveryPayload(t)
	if err != nil {
		h.log.ErrorContext(ctx, "signal delivery: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithCorrelationID(ctx, payload.CorrelationID)

	msg, err := h.sender.Send(ctx, payload.Message)
	if err != nil {
		return fmt.Errorf("deliver signal %s: %w", payload.Message.Symbol, err)
	}

	attrs := []any{
		slog.String("symbol", payload.Message.Symbol),
		slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
	}
	if msg != nil {
		attrs = append(attrs, slog.Int("message_id", msg.ID))
	}
	h.log.InfoContext(ctx, "signal delivered", attrs...)

	return nil
}
