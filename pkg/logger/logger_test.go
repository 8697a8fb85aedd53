package logger

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}

	for input, want := range testCases {
		assert.Equal(t, want, ParseLevel(input), "input %q", input)
	}
}

func TestMaskingHandler_MasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil)))

	log.Info("connecting",
		slog.String("token", "123:ABC"),
		slog.Group("redis", slog.String("password", "hunter2"), slog.String("addr", "localhost")),
		slog.String("symbol", "EURUSD"),
	)

	out := buf.String()
	assert.NotContains(t, out, "123:ABC")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "token=***")
	assert.Contains(t, out, "redis.password=***")
	assert.Contains(t, out, "redis.addr=localhost")
	assert.Contains(t, out, "symbol=EURUSD")
}

func TestMaskingHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil))).With(slog.String("secret", "s3cr3t"))

	log.Info("hello")

	assert.NotContains(t, buf.String(), "s3cr3t")
}

func TestNotReportedToSentry(t *testing.T) {
	plain := slog.NewRecord(time.Now(), slog.LevelError, "broken", 0)
	assert.True(t, notReportedToSentry(context.Background(), plain))

	reported := slog.NewRecord(time.Now(), slog.LevelError, "broken", 0)
	reported.AddAttrs(slog.Bool(SentryReportedKey, true))
	assert.False(t, notReportedToSentry(context.Background(), reported))

	explicitFalse := slog.NewRecord(time.Now(), slog.LevelError, "broken", 0)
	explicitFalse.AddAttrs(slog.Bool(SentryReportedKey, false))
	assert.True(t, notReportedToSentry(context.Background(), explicitFalse))
}

func TestWithCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc")
	assert.Equal(t, "abc", CorrelationIDFromContext(ctx))

	generated := WithCorrelationID(context.Background(), "")
	assert.NotEmpty(t, CorrelationIDFromContext(generated))

	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestMiddleware_PropagatesHeader(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(CorrelationIDHeader, "upstream-id")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", rec.Header().Get(CorrelationIDHeader))
}
