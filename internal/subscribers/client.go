package subscribers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/internal/signal"
	"github.com/Proton-105/sigmapips-bot/pkg/config"
)

const (
	matcherServiceName = "subscriber-matcher"
	matchPath          = "/match"
	defaultTimeout     = 10 * time.Second
)

type matchResponse struct {
	MatchedSubscribers []Subscriber `json:"matched_subscribers"`
}

// HTTPMatcher asks the external subscriber matcher service who should receive a signal.
type HTTPMatcher struct {
	http    *resty.Client
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

// NewHTTPMatcher returns nil when no matcher URL is configured.
func NewHTTPMatcher(cfg config.SubscribersConfig, log *slog.Logger) *HTTPMatcher {
	if cfg.MatcherURL == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPMatcher{
		http: resty.New().
			SetBaseURL(cfg.MatcherURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		breaker: apperrors.NewCircuitBreaker(apperrors.DefaultBreakerSettings),
		log:     log.With(slog.String("component", "subscriber_matcher")),
	}
}

// Match posts the signal to /match and returns the matched subscribers.
func (m *HTTPMatcher) Match(ctx context.Context, sig signal.Signal) ([]Subscriber, error) {
	var result matchResponse
	err := m.breaker.Call(func() error {
		resp, err := m.http.R().
			SetContext(ctx).
			SetBody(sig).
			SetResult(&result).
			Post(matchPath)
		if err != nil {
			return err
		}

		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode())
		}

		return nil
	})
	if err != nil {
		m.log.Warn("subscriber matching failed",
			slog.String("symbol", sig.Symbol),
			slog.String("breaker", m.breaker.State().String()),
			slog.Any("error", err),
		)
		return nil, apperrors.NewExternalAPIError(matcherServiceName, err)
	}

	m.log.Debug("subscribers matched", slog.String("symbol", sig.Symbol), slog.Int("count", len(result.MatchedSubscribers)))
	return result.MatchedSubscribers, nil
}
