package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/sigmapips-bot/internal/jobs"
	"github.com/Proton-105/sigmapips-bot/internal/signal"
	"github.com/Proton-105/sigmapips-bot/internal/subscribers"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
)

// Broadcaster fans a signal out to its subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, sig signal.Signal) (subscribers.Result, error)
}

type SignalBroadcastHandler struct {
	broadcaster Broadcaster
	log         *slog.Logger
}

func NewSignalBroadcastHandler(broadcaster Broadcaster, log *slog.Logger) *SignalBroadcastHandler {
	if log == nil {
		log = slog.Default()
	}

	return &SignalBroadcastHandler{broadcaster: broadcaster, log: log}
}

func (h *SignalBroadcastHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.ParseSignalBroadcastPayload(t)
	if err != nil {
		h.log.ErrorContext(ctx, "signal broadcast: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithCorrelationID(ctx, payload.CorrelationID)

	result, err := h.broadcaster.Broadcast(ctx, payload.Signal)
	if err != nil {
		return fmt.Errorf("broadcast signal %s: %w", payload.Signal.Symbol, err)
	}

	if len(result.Failed) > 0 {
		h.log.WarnContext(ctx, "signal broadcast partially failed",
			slog.String("symbol", payload.Signal.Symbol),
			slog.Int("failed", len(result.Failed)),
			slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
		)
	}

	return nil
}
