package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot/callback"
)

const (
	TextTechnicalAnalysis = "📊 Technical Analysis"
	TextMarketSentiment   = "📰 Market Sentiment"
	TextEconomicCalendar  = "📅 Economic Calendar"
)

// SignalKeyboard builds the two-row keyboard attached to every signal message.
func SignalKeyboard(symbol string) (*telebot.ReplyMarkup, error) {
	return NewInlineKeyboard().
		AddRow(
			InlineButton{Text: TextTechnicalAnalysis, Topic: callback.TopicTechnicalAnalysis, Symbol: symbol},
			InlineButton{Text: TextMarketSentiment, Topic: callback.TopicMarketSentiment, Symbol: symbol},
		).
		AddRow(
			InlineButton{Text: TextEconomicCalendar, Topic: callback.TopicEconomicCalendar, Symbol: symbol},
		).
		Build()
}
