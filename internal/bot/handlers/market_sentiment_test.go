package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sigmapips-bot/internal/bot/handlers"
	"github.com/Proton-105/sigmapips-bot/internal/testutil"
)

func TestMarketSentimentHandler(t *testing.T) {
	for _, symbol := range []string{"GBPUSD", ""} {
		c := testutil.NewCallbackContext("cb-2", "market_sentiment_"+symbol)

		require.NoError(t, handlers.NewMarketSentimentHandler(nil).Handle(context.Background(), c, symbol))

		assert.Empty(t, c.Sent)
		require.Len(t, c.Responses, 1)
		assert.NotEmpty(t, c.Responses[0].Text)
	}
}
