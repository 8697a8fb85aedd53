package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot/callback"
	"github.com/Proton-105/sigmapips-bot/internal/bot/handlers"
	errors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
	"github.com/Proton-105/sigmapips-bot/pkg/metrics"
)

const (
	statusOK        = "ok"
	statusError     = "error"
	statusPanic     = "panic"
	statusMalformed = "malformed"
	statusIgnored   = "ignored"
)

// Router dispatches signal keyboard callbacks to topic handlers.
type Router struct {
	mu         sync.RWMutex
	topics     map[callback.Topic]handlers.TopicHandler
	errHandler *errors.Handler
	log        *slog.Logger
}

// NewRouter builds a Router with an empty topic registry.
func NewRouter(log *slog.Logger, errHandler *errors.Handler) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		topics:     make(map[callback.Topic]handlers.TopicHandler),
		errHandler: errHandler,
		log:        log,
	}
}

// RegisterTopic registers the handler invoked for callbacks of topic.
func (r *Router) RegisterTopic(topic callback.Topic, h handlers.TopicHandler) {
	if topic == callback.TopicUnknown || h == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[topic] = h
}

// Handle is the telebot OnCallback endpoint. Failures are logged and reported but never
// returned, so one bad callback cannot affect the polling loop.
func (r *Router) Handle(c telebot.Context) error {
	if c == nil || c.Callback() == nil {
		return nil
	}

	start := time.Now()
	ctx := logger.WithCorrelationID(context.Background(), correlationIDFor(c))

	topic, status := r.route(ctx, c, c.Callback().Data)
	metrics.RecordCallback(topic.String(), status, time.Since(start))

	return nil
}

func (r *Router) route(ctx context.Context, c telebot.Context, data string) (callback.Topic, string) {
	log := r.log.With(slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)))

	payload, err := callback.Decode(data)
	if err != nil {
		r.report(ctx, errors.NewParseError(data, err))
		return callback.TopicUnknown, statusMalformed
	}

	log.InfoContext(ctx, "callback received",
		slog.String("data", payload.Raw),
		slog.String("topic", payload.Topic.String()),
		slog.String("symbol", payload.Symbol),
		slog.Bool("has_symbol", payload.HasSymbol),
	)

	var handler handlers.TopicHandler
	switch payload.Topic {
	case callback.TopicTechnicalAnalysis,
		callback.TopicMarketSentiment,
		callback.TopicEconomicCalendar:
		handler = r.handlerFor(payload.Topic)
		if handler == nil {
			log.InfoContext(ctx, "no handler registered for topic", slog.String("topic", payload.Topic.String()))
			return payload.Topic, statusIgnored
		}
	case callback.TopicUnknown:
		r.report(ctx, errors.NewUnrecognizedTopicError(payload.Raw))
		return payload.Topic, statusIgnored
	default:
		r.report(ctx, errors.NewUnrecognizedTopicError(payload.Raw))
		return callback.TopicUnknown, statusIgnored
	}

	if panicked, err := r.invoke(ctx, handler, c, payload.Symbol); err != nil {
		if panicked {
			r.report(ctx, err)
			return payload.Topic, statusPanic
		}

		r.report(ctx, errors.NewPlatformRequestError(payload.Topic.String(), err))
		return payload.Topic, statusError
	}

	return payload.Topic, statusOK
}

func (r *Router) invoke(ctx context.Context, h handlers.TopicHandler, c telebot.Context, symbol string) (panicked bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.ErrorContext(ctx, "panic recovered in topic handler",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			panicked = true
			err = fmt.Errorf("panic recovered: %v", rec)
		}
	}()

	return false, h.Handle(ctx, c, symbol)
}

func (r *Router) handlerFor(topic callback.Topic) handlers.TopicHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topics[topic]
}

func (r *Router) report(ctx context.Context, err error) {
	if r.errHandler != nil {
		r.errHandler.Handle(ctx, err)
		return
	}

	r.log.WarnContext(ctx, "callback handling failed", slog.Any("error", err))
}

func correlationIDFor(c telebot.Context) string {
	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return "cb-" + cb.ID
	}
	return ""
}
