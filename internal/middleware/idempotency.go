package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/idempotency"
	"github.com/Proton-105/sigmapips-bot/pkg/metrics"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Idempotency ensures callback handlers execute at most once per callback query id.
// When the store is unreachable the update is processed anyway.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) telebot.MiddlewareFunc {
	if manager == nil {
		return func(next telebot.HandlerFunc) telebot.HandlerFunc {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			key := extractIdempotencyKey(c)
			if key == "" {
				return next(c)
			}

			ran := false
			result, err := manager.Execute(context.Background(), key, ttl, func(context.Context) error {
				ran = true
				return next(c)
			})

			switch {
			case err == nil:
				if result != nil && result.Duplicate {
					metrics.RecordDuplicate()
					log.Info("duplicate callback skipped", slog.String("callback_id", c.Callback().ID))
				}
				return nil
			case errors.Is(err, idempotency.ErrRequestInProgress):
				metrics.RecordDuplicate()
				return nil
			case errors.Is(err, idempotency.ErrStoreUnavailable) && !ran:
				log.Warn("idempotency store unavailable, processing callback anyway", slog.Any("error", err))
				return next(c)
			default:
				return err
			}
		}
	}
}

func extractIdempotencyKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return idempotency.CallbackKey(cb.ID)
	}

	return ""
}
