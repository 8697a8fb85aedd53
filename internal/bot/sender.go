package bot

import (
	"context"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
	"github.com/Proton-105/sigmapips-bot/pkg/metrics"
)

// OutboundMessage is a signal to publish in the destination chat.
type OutboundMessage struct {
	Message string `json:"message"`
	Symbol  string `json:"symbol"`
}

// Transport is the part of *telebot.Bot the sender needs.
type Transport interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Sender posts signal messages with the signal keyboard attached.
type Sender struct {
	transport  Transport
	chat       telebot.Recipient
	errHandler *errors.Handler
	log        *slog.Logger
}

// NewSender binds a sender to the destination chat.
func NewSender(transport Transport, chatID int64, log *slog.Logger, errHandler *errors.Handler) *Sender {
	if log == nil {
		log = slog.Default()
	}

	return &Sender{
		transport:  transport,
		chat:       telebot.ChatID(chatID),
		errHandler: errHandler,
		log:        log,
	}
}

// Send issues exactly one platform request. On failure the transport error is returned as is;
// there is no retry and no de-duplication.
func (s *Sender) Send(ctx context.Context, msg OutboundMessage) (*telebot.Message, error) {
	return s.send(ctx, s.chat, msg)
}

// SendTo posts msg to chatID instead of the configured chat, with the same keyboard and
// single-attempt semantics as Send.
func (s *Sender) SendTo(ctx context.Context, chatID int64, msg OutboundMessage) (*telebot.Message, error) {
	return s.send(ctx, telebot.ChatID(chatID), msg)
}

func (s *Sender) send(ctx context.Context, chat telebot.Recipient, msg OutboundMessage) (*telebot.Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	log := s.log
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		log = log.With(slog.String("correlation_id", correlationID))
	}

	log.InfoContext(ctx, "sending signal message",
		slog.String("chat", chat.Recipient()),
		slog.String("symbol", msg.Symbol),
		slog.String("message", msg.Message),
	)

	markup, err := keyboard.SignalKeyboard(msg.Symbol)
	if err != nil {
		s.fail(ctx, log, time.Time{}, errors.NewValidationError(err.Error()))
		return nil, err
	}

	start := time.Now()
	sent, err := s.transport.Send(chat, msg.Message, &telebot.SendOptions{
		ParseMode:   telebot.ModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		s.fail(ctx, log, start, errors.NewPlatformRequestError("sendMessage", err))
		return nil, err
	}

	metrics.RecordSend(statusOK, time.Since(start))

	attrs := []any{slog.String("symbol", msg.Symbol)}
	if sent != nil {
		attrs = append(attrs, slog.Int("message_id", sent.ID))
	}
	log.InfoContext(ctx, "signal message sent", attrs...)

	return sent, nil
}

func (s *Sender) fail(ctx context.Context, log *slog.Logger, start time.Time, err *errors.AppError) {
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}
	metrics.RecordSend(statusError, elapsed)

	if s.errHandler != nil {
		s.errHandler.Handle(ctx, err)
		return
	}

	log.ErrorContext(ctx, "failed to send signal message", slog.Any("error", err))
}
