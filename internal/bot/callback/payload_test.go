package callback_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sigmapips-bot/internal/bot/callback"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantTopic     callback.Topic
		wantSymbol    string
		wantHasSymbol bool
	}{
		{
			name:          "technical analysis",
			input:         "technical_analysis_EURUSD",
			wantTopic:     callback.TopicTechnicalAnalysis,
			wantSymbol:    "EURUSD",
			wantHasSymbol: true,
		},
		{
			name:          "market sentiment",
			input:         "market_sentiment_XAUUSD",
			wantTopic:     callback.TopicMarketSentiment,
			wantSymbol:    "XAUUSD",
			wantHasSymbol: true,
		},
		{
			name:          "economic calendar",
			input:         "economic_calendar_GBPUSD",
			wantTopic:     callback.TopicEconomicCalendar,
			wantSymbol:    "GBPUSD",
			wantHasSymbol: true,
		},
		{
			name:          "symbol with underscore keeps full symbol",
			input:         "market_sentiment_EUR_USD",
			wantTopic:     callback.TopicMarketSentiment,
			wantSymbol:    "EUR_USD",
			wantHasSymbol: true,
		},
		{
			name:          "known topic without symbol",
			input:         "technical_analysis_",
			wantTopic:     callback.TopicTechnicalAnalysis,
			wantSymbol:    "",
			wantHasSymbol: false,
		},
		{
			name:          "unknown topic positional symbol",
			input:         "a_b_SYM",
			wantTopic:     callback.TopicUnknown,
			wantSymbol:    "SYM",
			wantHasSymbol: true,
		},
		{
			name:          "too few segments",
			input:         "a_b",
			wantTopic:     callback.TopicUnknown,
			wantSymbol:    "",
			wantHasSymbol: false,
		},
		{
			name:          "topic name without trailing separator",
			input:         "technical_analysis",
			wantTopic:     callback.TopicUnknown,
			wantHasSymbol: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := callback.Decode(tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.input, payload.Raw)
			assert.Equal(t, tt.wantTopic, payload.Topic)
			assert.Equal(t, tt.wantSymbol, payload.Symbol)
			assert.Equal(t, tt.wantHasSymbol, payload.HasSymbol)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	_, err := callback.Decode("")
	assert.ErrorIs(t, err, callback.ErrEmptyPayload)
}

func TestExtractSymbol(t *testing.T) {
	symbol, ok := callback.ExtractSymbol("technical_analysis_EURUSD")
	assert.True(t, ok)
	assert.Equal(t, "EURUSD", symbol)

	symbol, ok = callback.ExtractSymbol("x_y_BTCUSD_extra")
	assert.True(t, ok)
	assert.Equal(t, "BTCUSD", symbol)

	_, ok = callback.ExtractSymbol("a_b")
	assert.False(t, ok)

	_, ok = callback.ExtractSymbol("")
	assert.False(t, ok)
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, topic := range callback.Topics {
		data := callback.Encode(topic, "USDJPY")

		payload, err := callback.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, topic, payload.Topic, data)
		assert.Equal(t, "USDJPY", payload.Symbol)
	}
}

func TestTopicString(t *testing.T) {
	assert.Equal(t, "technical_analysis", callback.TopicTechnicalAnalysis.String())
	assert.Equal(t, "unknown", callback.TopicUnknown.String())
	assert.Equal(t, "", callback.TopicUnknown.Prefix())
}
