package keyboard

import (
	"fmt"

	"github.com/Proton-105/sigmapips-bot/internal/bot/callback"
)

// EncodeCallback renders callback data for topic and symbol, enforcing Telegram's size limit.
func EncodeCallback(topic callback.Topic, symbol string) (string, error) {
	if topic == callback.TopicUnknown {
		return "", fmt.Errorf("cannot encode callback for unknown topic")
	}

	payload := callback.Encode(topic, symbol)
	if len(payload) > callback.DataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", callback.DataLimitBytes, len(payload))
	}

	return payload, nil
}
