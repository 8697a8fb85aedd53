package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/sigmapips-bot/internal/bot"
	"github.com/Proton-105/sigmapips-bot/internal/signal"
)

const (
	TaskTypeSignalDeliver   = "signal:deliver"
	TaskTypeSignalBroadcast = "signal:broadcast"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// DefaultQueues weights the queues consumed by the worker.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
}

const (
	signalDeliverTimeout   = 30 * time.Second
	signalBroadcastTimeout = 5 * time.Minute
)

type SignalDeliveryPayload struct {
	Message       bot.OutboundMessage `json:"message"`
	CorrelationID string              `json:"correlation_id,omitempty"`
}

// NewSignalDeliveryTask wraps msg into a task. Delivery is attempted once; a failed
// task is archived for inspection rather than retried.
func NewSignalDeliveryTask(msg bot.OutboundMessage, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SignalDeliveryPayload{Message: msg, CorrelationID: correlationID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeSignalDeliver, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
		asynq.Timeout(signalDeliverTimeout),
	), nil
}

// ParseSignalDeliveryPayload decodes the payload of a signal delivery task.
func ParseSignalDeliveryPayload(t *asynq.Task) (SignalDeliveryPayload, error) {
	var payload SignalDeliveryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return SignalDeliveryPayload{}, err
	}
	return payload, nil
}

type SignalBroadcastPayload struct {
	Signal        signal.Signal `json:"signal"`
	CorrelationID string        `json:"correlation_id,omitempty"`
}

// NewSignalBroadcastTask wraps sig for fan-out to its subscribers. Like delivery it is not
// retried, so subscribers already reached never receive a duplicate.
func NewSignalBroadcastTask(sig signal.Signal, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SignalBroadcastPayload{Signal: sig, CorrelationID: correlationID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeSignalBroadcast, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(signalBroadcastTimeout),
	), nil
}

func ParseSignalBroadcastPayload(t *asynq.Task) (SignalBroadcastPayload, error) {
	var payload SignalBroadcastPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return SignalBroadcastPayload{}, err
	}
	return payload, nil
}
