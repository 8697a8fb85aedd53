package subscribers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot"
	"github.com/Proton-105/sigmapips-bot/internal/signal"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
	"github.com/Proton-105/sigmapips-bot/pkg/metrics"
)

// ChatSender delivers a signal message to an arbitrary chat.
type ChatSender interface {
	SendTo(ctx context.Context, chatID int64, msg bot.OutboundMessage) (*telebot.Message, error)
}

// Result summarizes one fan-out.
type Result struct {
	SentTo           int     `json:"sent_to"`
	TotalSubscribers int     `json:"total_subscribers"`
	Failed           []int64 `json:"failed,omitempty"`
}

// Broadcaster sends a signal to every matched subscriber, one platform request each.
type Broadcaster struct {
	matcher Matcher
	sender  ChatSender
	log     *slog.Logger
}

func NewBroadcaster(matcher Matcher, sender ChatSender, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}

	return &Broadcaster{
		matcher: matcher,
		sender:  sender,
		log:     log.With(slog.String("component", "broadcaster")),
	}
}

// Broadcast matches sig and delivers it. A failed delivery does not stop the others; the sender
// has already reported it. Only a matching failure or cancellation is returned as an error.
func (b *Broadcaster) Broadcast(ctx context.Context, sig signal.Signal) (Result, error) {
	subs, err := b.matcher.Match(ctx, sig)
	if err != nil {
		return Result{}, err
	}

	msg := sig.Message()
	result := Result{TotalSubscribers: len(subs)}

	seen := make(map[int64]struct{}, len(subs))
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			metrics.RecordBroadcast(result.SentTo, len(result.Failed))
			return result, err
		}
		if _, dup := seen[sub.ChatID]; dup {
			continue
		}
		seen[sub.ChatID] = struct{}{}

		if _, err := b.sender.SendTo(ctx, sub.ChatID, msg); err != nil {
			result.Failed = append(result.Failed, sub.ChatID)
			continue
		}
		result.SentTo++
	}

	metrics.RecordBroadcast(result.SentTo, len(result.Failed))
	b.log.InfoContext(ctx, "signal broadcast",
		slog.String("symbol", sig.Symbol),
		slog.Int("sent_to", result.SentTo),
		slog.Int("total_subscribers", result.TotalSubscribers),
		slog.Int("failed", len(result.Failed)),
		slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
	)

	return result, nil
}
