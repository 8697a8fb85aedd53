package errors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sigmapips-bot/pkg/config"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
)

// recordingTransport keeps events in memory instead of shipping them.
type recordingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *recordingTransport) Configure(sentry.ClientOptions) {}
func (t *recordingTransport) Flush(time.Duration) bool { return true }
func (t *recordingTransport) FlushWithContext(context.Context) bool { return true }
func (t *recordingTransport) Close() {}
func (t *recordingTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *recordingTransport) drain() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := t.events
	t.events = nil
	return events
}

func newSentryContext(t *testing.T) (context.Context, *recordingTransport) {
	t.Helper()

	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@sentry.example.com/1",
		Transport: transport,
	})
	require.NoError(t, err)

	hub := sentry.NewHub(client, sentry.NewScope())
	ctx := sentry.SetHubOnContext(context.Background(), hub)
	return logger.WithCorrelationID(ctx, "corr-sentry"), transport
}

func TestHandler_ReportsEachErrorToSentryOnce(t *testing.T) {
	cfg := config.Config{
		AppEnv: "test",
		Logger: config.LoggerConfig{Level: "info", Format: "text"},
		Sentry: config.SentryConfig{Enabled: true, DSN: "https://public@sentry.example.com/1"},
	}
	log, _ := logger.New(cfg)
	h := NewHandler(log, true)

	ctx, transport := newSentryContext(t)

	t.Run("high severity app error", func(t *testing.T) {
		h.Handle(ctx, NewPlatformRequestError("sendMessage", errBoom))

		events := transport.drain()
		require.Len(t, events, 1)
		require.NotEmpty(t, events[0].Exception)
		assert.Equal(t, CodePlatformRequest, events[0].Tags["code"])
		assert.Equal(t, "corr-sentry", events[0].Tags["correlation_id"])
	})

	t.Run("unknown error", func(t *testing.T) {
		h.Handle(ctx, errBoom)
		assert.Len(t, transport.drain(), 1)
	})

	t.Run("medium severity goes through the log branch", func(t *testing.T) {
		h.Handle(ctx, NewExternalAPIError("chart", errBoom))
		assert.Len(t, transport.drain(), 1)
	})

	t.Run("low severity is not reported", func(t *testing.T) {
		h.Handle(ctx, NewUnrecognizedTopicError("economic_calendar"))
		assert.Empty(t, transport.drain())
	})

	t.Run("plain error logs still reach sentry", func(t *testing.T) {
		log.ErrorContext(ctx, "redis unavailable")
		assert.Len(t, transport.drain(), 1)
	})
}
