package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "juno",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka messages by topic and outcome (handled, skipped, undecodable, failed).",
	}, []string{"topic", "outcome"})

	skippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "juno",
		Subsystem: "consumer",
		Name:      "events_skipped_total",
		Help:      "Log events left out of the profile projection, by reason.",
	}, []string{"reason"})

	handleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "juno",
		Subsystem: "consumer",
		Name:      "handle_duration_seconds",
		Help:      "Time spent applying one log event.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"event_type"})

	eventLagGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "juno",
		Subsystem: "consumer",
		Name:      "event_lag_seconds",
		Help:      "Delay between publishing and handling of the latest log event per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(messagesCounter, skippedCounter, handleDuration, eventLagGauge)
}

func observeOutcome(topic string, o outcome) {
	messagesCounter.WithLabelValues(topic, o.String()).Inc()
}

func observeHandled(msg Message, took time.Duration, now time.Time) {
	handleDuration.WithLabelValues(msg.EventType).Observe(took.Seconds())
	if !msg.Timestamp.IsZero() {
		eventLagGauge.WithLabelValues(msg.Topic).Set(max(now.Sub(msg.Timestamp).Seconds(), 0))
	}
}

func recordSkipped(reason string) {
	skippedCounter.WithLabelValues(reason).Inc()
}
