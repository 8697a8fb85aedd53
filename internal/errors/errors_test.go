package errors

import (
	"bytes"
	"context"
	stdErrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sigmapips-bot/pkg/logger"
)

var errBoom = stdErrors.New("boom")

func TestPlatformRequestError_UnwrapsCause(t *testing.T) {
	err := NewPlatformRequestError("sendMessage", errBoom)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, CodePlatformRequest, err.Code)
	assert.Contains(t, err.Error(), "sendMessage")
	assert.True(t, err.Retryable)
}

func TestStorageError_UnwrapsCause(t *testing.T) {
	err := NewStorageError("add preference", errBoom)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, CodeStorage, err.Code)
	assert.Equal(t, SeverityHigh, err.Severity)
	assert.Contains(t, err.Error(), "add preference")
}

func TestParseError_WithoutCause(t *testing.T) {
	err := NewParseError("a_b", nil)

	assert.Nil(t, err.Unwrap())
	assert.Contains(t, err.Error(), `"a_b"`)
	assert.Equal(t, SeverityLow, err.Severity)
}

func TestHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := NewHandler(log, false)

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	msg, retryable := h.Handle(ctx, NewUnrecognizedTopicError("economic_calendar"))
	assert.Equal(t, "This action is not available yet.", msg)
	assert.False(t, retryable)
	assert.Contains(t, buf.String(), "code=E110")
	assert.Contains(t, buf.String(), "correlation_id=corr-1")
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	msg, retryable = h.Handle(ctx, errBoom)
	assert.Equal(t, defaultUserMessageText, msg)
	assert.False(t, retryable)
	assert.Contains(t, buf.String(), "unknown error")
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestHandler_NilError(t *testing.T) {
	msg, retryable := NewHandler(nil, false).Handle(context.Background(), nil)
	assert.Empty(t, msg)
	assert.False(t, retryable)
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(BreakerSettings{
		ErrorThreshold:      0.5,
		MinRequests:         2,
		OpenTimeout:         time.Minute,
		HalfOpenMaxRequests: 1,
	})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	fail := func() error { return errBoom }
	ok := func() error { return nil }

	require.ErrorIs(t, cb.Call(fail), errBoom)
	require.ErrorIs(t, cb.Call(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Call(ok), ErrCircuitOpen)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(BreakerSettings{MinRequests: 1, OpenTimeout: time.Second, HalfOpenMaxRequests: 2})
	now := time.Now()
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	_ = cb.Call(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "open", cb.State().String())
}
