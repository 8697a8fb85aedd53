package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot"
	apperrors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/internal/health"
	"github.com/Proton-105/sigmapips-bot/internal/jobs"
	"github.com/Proton-105/sigmapips-bot/internal/lifecycle"
	"github.com/Proton-105/sigmapips-bot/internal/signal"
	"github.com/Proton-105/sigmapips-bot/internal/subscribers"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
)

type senderMock struct {
	mock.Mock
}

func (m *senderMock) Send(ctx context.Context, msg bot.OutboundMessage) (*telebot.Message, error) {
	args := m.Called(ctx, msg)
	sent, _ := args.Get(0).(*telebot.Message)
	return sent, args.Error(1)
}

type queueMock struct {
	mock.Mock
}

func (m *queueMock) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

type broadcasterMock struct {
	mock.Mock
}

func (m *broadcasterMock) Broadcast(ctx context.Context, sig signal.Signal) (subscribers.Result, error) {
	args := m.Called(ctx, sig)
	return args.Get(0).(subscribers.Result), args.Error(1)
}

func newTestServer(sender MessageSender, opts Options) http.Handler {
	return NewServer(sender, apperrors.NewHandler(logger.Discard(), false), logger.Discard(), opts).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSend_Success(t *testing.T) {
	sender := new(senderMock)
	sender.On("Send", mock.Anything, bot.OutboundMessage{Message: "hi", Symbol: "EURUSD"}).
		Return(&telebot.Message{ID: 77}, nil).Once()

	rec := do(t, newTestServer(sender, Options{}), http.MethodPost, "/send", `{"message":"hi","symbol":"EURUSD"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(77), decode(t, rec)["message_id"])
	assert.NotEmpty(t, rec.Header().Get(logger.CorrelationIDHeader))
	sender.AssertExpectations(t)
}

func TestSend_PlatformFailure(t *testing.T) {
	sender := new(senderMock)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("chat not found")).Once()

	rec := do(t, newTestServer(sender, Options{}), http.MethodPost, "/send", `{"message":"hi","symbol":"EURUSD"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "chat not found", decode(t, rec)["error"])
}

func TestSend_InvalidJSON(t *testing.T) {
	sender := new(senderMock)

	rec := do(t, newTestServer(sender, Options{}), http.MethodPost, "/send", `{`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSend_MethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(new(senderMock), Options{}), http.MethodGet, "/send", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSignals_SendsSynchronouslyWithoutQueue(t *testing.T) {
	sender := new(senderMock)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg bot.OutboundMessage) bool {
		return msg.Symbol == "EURUSD" && strings.Contains(msg.Message, "<b>Action:</b> BUY")
	})).Return(&telebot.Message{ID: 5}, nil).Once()

	rec := do(t, newTestServer(sender, Options{}), http.MethodPost, "/signals",
		`{"symbol":"EURUSD","action":"buy","price":1.085,"stopLoss":1.08,"takeProfit":1.09,"interval":"15m"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	sender.AssertExpectations(t)
}

func TestSignals_BroadcastsAfterChannelDelivery(t *testing.T) {
	sender := new(senderMock)
	sender.On("Send", mock.Anything, mock.Anything).Return(&telebot.Message{ID: 6}, nil).Once()
	broadcaster := new(broadcasterMock)
	broadcaster.On("Broadcast", mock.Anything, mock.MatchedBy(func(sig signal.Signal) bool {
		return sig.Symbol == "EURUSD" && sig.Interval == "15"
	})).Return(subscribers.Result{SentTo: 2, TotalSubscribers: 3, Failed: []int64{9}}, nil).Once()

	rec := do(t, newTestServer(sender, Options{Broadcaster: broadcaster}), http.MethodPost, "/signals",
		`{"symbol":"EURUSD","action":"buy","interval":"15"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(6), body["message_id"])
	result := body["broadcast"].(map[string]any)
	assert.Equal(t, float64(2), result["sent_to"])
	assert.Equal(t, float64(3), result["total_subscribers"])
	broadcaster.AssertExpectations(t)
}

func TestSignals_BroadcastFailureKeepsChannelResult(t *testing.T) {
	sender := new(senderMock)
	sender.On("Send", mock.Anything, mock.Anything).Return(&telebot.Message{ID: 7}, nil).Once()
	broadcaster := new(broadcasterMock)
	broadcaster.On("Broadcast", mock.Anything, mock.Anything).
		Return(subscribers.Result{}, apperrors.NewExternalAPIError("subscriber-matcher", errors.New("timeout"))).Once()

	rec := do(t, newTestServer(sender, Options{Broadcaster: broadcaster}), http.MethodPost, "/signals", `{"symbol":"EURUSD","action":"buy"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(7), body["message_id"])
	assert.NotEmpty(t, body["broadcast_error"])
	assert.Nil(t, body["broadcast"])
}

func TestSignals_ChannelFailureSkipsBroadcast(t *testing.T) {
	sender := new(senderMock)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("telegram down")).Once()
	broadcaster := new(broadcasterMock)

	rec := do(t, newTestServer(sender, Options{Broadcaster: broadcaster}), http.MethodPost, "/signals", `{"symbol":"EURUSD","action":"buy"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}

func TestSignals_EnqueuesBroadcastTask(t *testing.T) {
	queue := new(queueMock)
	queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == jobs.TaskTypeSignalDeliver
	})).Return(&asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueCritical}, nil).Once()
	queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		payload, err := jobs.ParseSignalBroadcastPayload(task)
		return err == nil && task.Type() == jobs.TaskTypeSignalBroadcast && payload.Signal.Symbol == "GBPUSD"
	})).Return(&asynq.TaskInfo{ID: "task-2", Queue: jobs.QueueDefault}, nil).Once()
	broadcaster := new(broadcasterMock)

	rec := do(t, newTestServer(new(senderMock), Options{Queue: queue, Broadcaster: broadcaster}), http.MethodPost, "/signals",
		`{"symbol":"GBPUSD","action":"sell"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "task-1", body["task_id"])
	assert.Equal(t, "task-2", body["broadcast_task_id"])
	queue.AssertExpectations(t)
	broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}

func TestSignals_Enqueues(t *testing.T) {
	sender := new(senderMock)
	queue := new(queueMock)
	queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		payload, err := jobs.ParseSignalDeliveryPayload(task)
		return err == nil && task.Type() == jobs.TaskTypeSignalDeliver &&
			payload.Message.Symbol == "GBPUSD" && payload.CorrelationID == "corr-42"
	})).Return(&asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueCritical}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader(`{"symbol":"GBPUSD","action":"sell"}`))
	req.Header.Set(logger.CorrelationIDHeader, "corr-42")
	rec := httptest.NewRecorder()
	newTestServer(sender, Options{Queue: queue}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "task-1", decode(t, rec)["task_id"])
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	queue.AssertExpectations(t)
}

func TestSignals_QueueUnavailable(t *testing.T) {
	queue := new(queueMock)
	queue.On("Enqueue", mock.Anything, mock.Anything).Return(nil, errors.New("redis down")).Once()

	rec := do(t, newTestServer(new(senderMock), Options{Queue: queue}), http.MethodPost, "/signals", `{"symbol":"GBPUSD","action":"sell"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSignals_ValidationFailure(t *testing.T) {
	sender := new(senderMock)

	for _, body := range []string{`{"action":"buy"}`, `{"symbol":"EURUSD"}`, `not json`} {
		rec := do(t, newTestServer(sender, Options{}), http.MethodPost, "/signals", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotEmpty(t, decode(t, rec)["error"])
	}

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSignals_RejectsSymbolThatCannotFitKeyboard(t *testing.T) {
	queue := new(queueMock)
	body := `{"symbol":"` + strings.Repeat("€", 46) + `","action":"buy"}`

	rec := do(t, newTestServer(new(senderMock), Options{Queue: queue}), http.MethodPost, "/signals", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestHealth(t *testing.T) {
	checker := health.NewChecker(logger.Discard())
	up := true
	checker.AddCheck("redis", health.CheckFunc(func(context.Context) error {
		if up {
			return nil
		}
		return errors.New("connection refused")
	}))
	h := newTestServer(new(senderMock), Options{Checker: checker, Health: lifecycle.NewProcessHealth(checker, logger.Discard())})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)

	up = false
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["components"].(map[string]any)["redis"])

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/livez", "").Code)
}

func TestMetrics(t *testing.T) {
	rec := do(t, newTestServer(new(senderMock), Options{}), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
