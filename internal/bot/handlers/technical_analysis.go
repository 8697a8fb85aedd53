package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

const (
	chartCaptionFormat   = "📊 Technical Analysis for %s"
	ChartFailedText      = "⚠️ Could not generate chart"
	MissingSymbolText    = "Invalid request"
	chartUnavailableText = "Technical analysis is not available yet."
)

// ChartProvider returns a rendered chart image for a symbol.
type ChartProvider interface {
	Chart(ctx context.Context, symbol, timeframe string) ([]byte, error)
}

// TechnicalAnalysisHandler relays a rendered chart for the pressed symbol into the chat.
type TechnicalAnalysisHandler struct {
	charts    ChartProvider
	timeframe string
	log       *slog.Logger
}

// NewTechnicalAnalysisHandler creates the handler. charts may be nil, in which case the
// button only acknowledges the press.
func NewTechnicalAnalysisHandler(charts ChartProvider, timeframe string, log *slog.Logger) *TechnicalAnalysisHandler {
	if log == nil {
		log = slog.Default()
	}

	return &TechnicalAnalysisHandler{
		charts:    charts,
		timeframe: timeframe,
		log:       log,
	}
}

func (h *TechnicalAnalysisHandler) Handle(ctx context.Context, c telebot.Context, symbol string) error {
	if c == nil {
		return nil
	}

	h.log.InfoContext(ctx, "technical analysis requested", slog.String("symbol", symbol))

	if symbol == "" {
		return c.Respond(&telebot.CallbackResponse{Text: MissingSymbolText, ShowAlert: true})
	}

	if h.charts == nil {
		return c.Respond(&telebot.CallbackResponse{Text: chartUnavailableText})
	}

	png, err := h.charts.Chart(ctx, symbol, h.timeframe)
	if err != nil {
		h.log.WarnContext(ctx, "chart unavailable", slog.String("symbol", symbol), slog.Any("error", err))
		if sendErr := c.Send(ChartFailedText); sendErr != nil {
			_ = c.Respond()
			return fmt.Errorf("send chart failure notice: %w", sendErr)
		}
		return c.Respond()
	}

	photo := &telebot.Photo{
		File:    telebot.FromReader(bytes.NewReader(png)),
		Caption: fmt.Sprintf(chartCaptionFormat, symbol),
	}
	if err := c.Send(photo); err != nil {
		_ = c.Respond()
		return fmt.Errorf("send chart: %w", err)
	}

	return c.Respond()
}
