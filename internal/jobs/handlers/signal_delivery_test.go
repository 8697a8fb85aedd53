package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot"
	"github.com/Proton-105/sigmapips-bot/internal/jobs"
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

func TestSignalDeliveryHandler_Delivers(t *testing.T) {
	msg := bot.OutboundMessage{Message: "hello", Symbol: "EURUSD"}
	task, err := jobs.NewSignalDeliveryTask(msg, "corr-7")
	require.NoError(t, err)

	sender := new(senderMock)
	sender.On("Send", mock.MatchedBy(func(ctx context.Context) bool {
		return logger.CorrelationIDFromContext(ctx) == "corr-7"
	}), msg).Return(&telebot.Message{ID: 10}, nil).Once()

	require.NoError(t, NewSignalDeliveryHandler(sender, logger.Discard()).ProcessTask(context.Background(), task))
	sender.AssertExpectations(t)
}

func TestSignalDeliveryHandler_SendFailure(t *testing.T) {
	task, err := jobs.NewSignalDeliveryTask(bot.OutboundMessage{Message: "hello", Symbol: "EURUSD"}, "")
	require.NoError(t, err)

	sendErr := errors.New("telegram down")
	sender := new(senderMock)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil, sendErr).Once()

	err = NewSignalDeliveryHandler(sender, nil).ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, sendErr)
}

func TestSignalDeliveryHandler_BadPayloadSkipsRetry(t *testing.T) {
	sender := new(senderMock)

	err := NewSignalDeliveryHandler(sender, nil).ProcessTask(context.Background(), asynq.NewTask(jobs.TaskTypeSignalDeliver, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
