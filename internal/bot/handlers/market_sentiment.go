package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

const sentimentUnavailableText = "Market sentiment is not available yet."

// NewMarketSentimentHandler acknowledges market sentiment presses. No analysis is produced here.
func NewMarketSentimentHandler(log *slog.Logger) TopicHandler {
	if log == nil {
		log = slog.Default()
	}

	return TopicHandlerFunc(func(ctx context.Context, c telebot.Context, symbol string) error {
		if c == nil {
			return nil
		}

		log.InfoContext(ctx, "market sentiment requested", slog.String("symbol", symbol))
		return c.Respond(&telebot.CallbackResponse{Text: sentimentUnavailableText})
	})
}
