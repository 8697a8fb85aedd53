package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_callbacks_total",
			Help: "Total number of callback queries labeled by topic and status",
		},
		[]string{"topic", "status"},
	)
	callbackDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callback_duration_seconds",
			Help:    "Duration of callback handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
	messagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_sent_total",
			Help: "Total number of outbound signal messages by status",
		},
		[]string{"status"},
	)
	sendDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "send_duration_seconds",
			Help:    "Duration of outbound send requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	broadcastRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_broadcast_recipients_total",
			Help: "Total number of subscriber deliveries attempted during signal fan-out by status",
		},
		[]string{"status"},
	)
	duplicateUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_duplicate_updates_total",
			Help: "Total number of redelivered updates skipped by the idempotency guard",
		},
	)
)

// RecordCallback increments callback counters and records duration.
func RecordCallback(topic, status string, duration time.Duration) {
	if topic == "" {
		topic = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	callbacksTotal.WithLabelValues(topic, status).Inc()
	callbackDurationSeconds.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordSend tracks outbound send attempts.
func RecordSend(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}

	messagesSentTotal.WithLabelValues(status).Inc()
	sendDurationSeconds.Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordDuplicate counts an update dropped as already processed.
func RecordDuplicate() {
	duplicateUpdatesTotal.Inc()
}

// RecordBroadcast counts fan-out deliveries that succeeded and failed for one signal.
func RecordBroadcast(sent, failed int) {
	broadcastRecipientsTotal.WithLabelValues("ok").Add(float64(sent))
	broadcastRecipientsTotal.WithLabelValues("error").Add(float64(failed))
}
