package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Exposure history metrics
	ExposureEventsReceived prometheus.Counter
	ExposuresCurrent       prometheus.Gauge
	HistoryRefreshes       prometheus.Counter

	// Permission metrics
	PermissionRefreshes prometheus.Counter

	// Verification metrics
	VerificationRequests *prometheus.CounterVec

	// Publish metrics
	PublishOutcomes *prometheus.CounterVec
	PublishDuration prometheus.Histogram

	// Reporting pipeline metrics
	ReportSessions prometheus.Counter
	ReportFailures *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ExposureEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
				Name: "enclient_exposure_events_received_total",
				Help: "Total exposure-record update events received from the platform layer",
			}),
			ExposuresCurrent: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "enclient_exposures_current",
				Help: "Number of exposures in the current derived history",
			}),
			HistoryRefreshes: promauto.NewCounter(prometheus.CounterOpts{
				Name: "enclient_history_refreshes_total",
				Help: "Total explicit exposure history refreshes",
			}),
			PermissionRefreshes: promauto.NewCounter(prometheus.CounterOpts{
				Name: "enclient_permission_refreshes_total",
				Help: "Total permission state refreshes from events and checks",
			}),
			VerificationRequests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "enclient_verification_requests_total",
				Help: "Verification server requests by operation and outcome",
			}, []string{"operation", "outcome"}),
			PublishOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "enclient_publish_outcomes_total",
				Help: "Diagnosis key submissions by outcome kind",
			}, []string{"outcome"}),
			PublishDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "enclient_publish_duration_seconds",
				Help:    "Duration of diagnosis key submissions including retries",
				Buckets: prometheus.DefBuckets,
			}),
			ReportSessions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "enclient_report_sessions_total",
				Help: "Total diagnosis reporting sessions started",
			}),
			ReportFailures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "enclient_report_failures_total",
				Help: "Reporting pipeline failures by phase",
			}, []string{"phase"}),
		}
	})
	return metricsInstance
}
