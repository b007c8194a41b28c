package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	logPersistGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "juno",
		Subsystem: "persistence",
		Name:      "last_log_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent log persisted, by kind.",
	}, []string{"kind"})
	undatedFallbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "juno",
		Subsystem: "aggregate",
		Name:      "undated_records_total",
		Help:      "Records without a timestamp grouped under the processing date.",
	}, []string{"kind"})
	profileProjectedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "juno",
		Subsystem: "profile",
		Name:      "last_projection_timestamp_seconds",
		Help:      "Unix timestamp of the most recent profile projection.",
	})
)

func init() {
	prometheus.MustRegister(logPersistGauge, undatedFallbackCounter, profileProjectedGauge)
}

// RecordLogPersisted updates the persistence watermark gauge.
func RecordLogPersisted(kind string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	logPersistGauge.WithLabelValues(kind).Set(float64(ts.Unix()))
}

// RecordUndatedFallback counts records that used the missing-timestamp fallback.
func RecordUndatedFallback(kind string, n int) {
	if n <= 0 {
		return
	}
	undatedFallbackCounter.WithLabelValues(kind).Add(float64(n))
}

// RecordProfileProjected updates the projection watermark gauge.
func RecordProfileProjected(ts time.Time) {
	if ts.IsZero() {
		return
	}
	profileProjectedGauge.Set(float64(ts.Unix()))
}
