// Package chart fetches rendered price charts from the chart service.
package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/pkg/config"
)

const (
	serviceName      = "chart-service"
	chartBytesPath   = "/chart/bytes"
	defaultTimeframe = "15"
	defaultTimeout   = 10 * time.Second
)

// ErrEmptyChart is returned when the service answers 200 without an image.
var ErrEmptyChart = errors.New("chart service returned an empty body")

// Client talks to the chart rendering service.
type Client struct {
	http      *resty.Client
	breaker   *apperrors.CircuitBreaker
	timeframe string
	log       *slog.Logger
}

// NewClient builds a chart client for cfg.BaseURL. It returns nil when no base URL is configured.
func NewClient(cfg config.ChartConfig, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	timeframe := cfg.Timeframe
	if timeframe == "" {
		timeframe = defaultTimeframe
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "image/png")

	return &Client{
		http:      httpClient,
		breaker:   apperrors.NewCircuitBreaker(apperrors.DefaultBreakerSettings),
		timeframe: timeframe,
		log:       log.With(slog.String("component", "chart_client")),
	}
}

// Timeframe returns the timeframe requested when callers pass an empty one.
func (c *Client) Timeframe() string {
	return c.timeframe
}

// Chart downloads the PNG chart for symbol.
func (c *Client) Chart(ctx context.Context, symbol, timeframe string) ([]byte, error) {
	if timeframe == "" {
		timeframe = c.timeframe
	}

	var body []byte
	err := c.breaker.Call(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":    symbol,
				"timeframe": timeframe,
			}).
			Get(chartBytesPath)
		if err != nil {
			return err
		}

		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode())
		}

		body = resp.Body()
		if len(body) == 0 {
			return ErrEmptyChart
		}

		return nil
	})
	if err != nil {
		c.log.Warn("chart request failed",
			slog.String("symbol", symbol),
			slog.String("timeframe", timeframe),
			slog.String("breaker", c.breaker.State().String()),
			slog.Any("error", err),
		)
		return nil, apperrors.NewExternalAPIError(serviceName, err)
	}

	c.log.Debug("chart fetched", slog.String("symbol", symbol), slog.Int("bytes", len(body)))
	return body, nil
}
