// Package callback decodes the payloads carried by signal keyboard buttons.
//
// Payloads use the `<topic>_<symbol>` convention where a topic may itself contain
// underscores (technical_analysis, market_sentiment, economic_calendar). Known topics
// are matched by prefix so a symbol may contain underscores too; payloads of unknown
// topics fall back to the positional rule (third `_`-delimited segment).
package callback

import (
	"errors"
	"strings"
)

const (
	// Separator joins a topic and the symbol in callback data.
	Separator = "_"
	// DataLimitBytes is Telegram's upper bound for callback_data.
	DataLimitBytes = 64

	symbolSegment = 2
)

// ErrEmptyPayload is returned when a callback carries no data at all.
var ErrEmptyPayload = errors.New("callback data is empty")

// Topic is the closed set of actions offered by the signal keyboard.
type Topic int

const (
	TopicUnknown Topic = iota
	TopicTechnicalAnalysis
	TopicMarketSentiment
	TopicEconomicCalendar
)

// Topics lists every known topic in keyboard order.
var Topics = []Topic{
	TopicTechnicalAnalysis,
	TopicMarketSentiment,
	TopicEconomicCalendar,
}

var topicNames = map[Topic]string{
	TopicTechnicalAnalysis: "technical_analysis",
	TopicMarketSentiment:   "market_sentiment",
	TopicEconomicCalendar:  "economic_calendar",
}

// String returns the wire name of the topic.
func (t Topic) String() string {
	if name, ok := topicNames[t]; ok {
		return name
	}
	return "unknown"
}

// Prefix returns the string a payload for t starts with.
func (t Topic) Prefix() string {
	if t == TopicUnknown {
		return ""
	}
	return t.String() + Separator
}

// Payload is a decoded callback.
type Payload struct {
	Raw       string
	Topic     Topic
	Symbol    string
	HasSymbol bool
}

// Encode renders the callback data for topic and symbol.
func Encode(topic Topic, symbol string) string {
	return topic.Prefix() + symbol
}

// Decode parses callback data. Only an empty payload is an error; unknown topics and
// missing symbols are reported through the returned Payload.
func Decode(data string) (Payload, error) {
	if data == "" {
		return Payload{}, ErrEmptyPayload
	}

	for _, topic := range Topics {
		if rest, ok := strings.CutPrefix(data, topic.Prefix()); ok {
			return Payload{
				Raw:       data,
				Topic:     topic,
				Symbol:    rest,
				HasSymbol: rest != "",
			}, nil
		}
	}

	symbol, ok := ExtractSymbol(data)
	return Payload{
		Raw:       data,
		Topic:     TopicUnknown,
		Symbol:    symbol,
		HasSymbol: ok,
	}, nil
}

// ExtractSymbol returns the third underscore-delimited segment of data.
// ok is false when data has fewer than three segments.
func ExtractSymbol(data string) (symbol string, ok bool) {
	segments := strings.Split(data, Separator)
	if len(segments) <= symbolSegment {
		return "", false
	}
	return segments[symbolSegment], true
}
