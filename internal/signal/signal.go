// Package signal models trading signals received over the HTTP API.
package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"unicode"

	validator "github.com/go-playground/validator/v10"

	"github.com/Proton-105/sigmapips-bot/internal/bot"
	"github.com/Proton-105/sigmapips-bot/internal/bot/callback"
)

const (
	unknownValue     = "Unknown"
	noAnalysisText   = "No analysis available"
	signalHeaderText = "🔔 <b>New Trading Signal</b>"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// maxSymbolBytes keeps economic_calendar_<symbol>, the longest keyboard payload, within
// Telegram's callback data limit.
var maxSymbolBytes = callback.DataLimitBytes - len(callback.TopicEconomicCalendar.Prefix())

// Level is a price level that may arrive as a JSON number or string.
type Level string

func (l *Level) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Level(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("price level must be a number or string: %w", err)
	}
	*l = Level(n.String())
	return nil
}

// Signal is a trading signal published by the upstream signal generator.
type Signal struct {
	Symbol     string `json:"symbol" validate:"required"`
	Action     string `json:"action" validate:"required"`
	Price      Level  `json:"price"`
	StopLoss   Level  `json:"stopLoss"`
	TakeProfit Level  `json:"takeProfit"`
	Interval   string `json:"interval"`
	Analysis   string `json:"aiAnalysis"`
}

// Validate checks required fields and the symbol shape.
func (s Signal) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}
	if strings.ContainsFunc(s.Symbol, unicode.IsSpace) {
		return fmt.Errorf("invalid signal: symbol %q contains whitespace", s.Symbol)
	}
	// callback data is measured in bytes, a rune count lets multibyte symbols through
	if len(s.Symbol) > maxSymbolBytes {
		return fmt.Errorf("invalid signal: symbol is %d bytes, limit is %d", len(s.Symbol), maxSymbolBytes)
	}
	return nil
}

// Message renders the signal as an HTML chat message with its symbol attached.
func (s Signal) Message() bot.OutboundMessage {
	var b strings.Builder

	b.WriteString(signalHeaderText)
	b.WriteString("\n")
	writeField(&b, "Symbol", s.Symbol)
	writeField(&b, "Action", strings.ToUpper(s.Action))
	writeField(&b, "Entry", string(s.Price))
	writeField(&b, "SL", string(s.StopLoss))
	writeField(&b, "TP", string(s.TakeProfit))
	writeField(&b, "Timeframe", s.Interval)

	analysis := strings.TrimSpace(s.Analysis)
	if analysis == "" {
		analysis = noAnalysisText
	}
	b.WriteString("\n<b>Analysis:</b> ")
	b.WriteString(html.EscapeString(analysis))

	return bot.OutboundMessage{
		Message: b.String(),
		Symbol:  s.Symbol,
	}
}

func writeField(b *strings.Builder, name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = unknownValue
	}
	fmt.Fprintf(b, "<b>%s:</b> %s\n", name, html.EscapeString(value))
}
