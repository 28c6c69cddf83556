package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	gateScansTotal             *prometheus.CounterVec
	releasesCompletedTotal     prometheus.Counter
	releaseCompletionFailures  *prometheus.CounterVec
	lostFoundTransitionsTotal  *prometheus.CounterVec
	reaperPurgedTotal          prometheus.Counter
	reaperErrorsTotal          prometheus.Counter
	realtimeSubscribersActive  *prometheus.GaugeVec
	realtimeEventsDroppedTotal *prometheus.CounterVec
	notificationsPublished     prometheus.Counter
	gateSessionsActive         prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the gate service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gate_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gateScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_scans_total",
			Help: "Scanned credentials by outcome.",
		}, []string{"outcome"})

		releasesCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_releases_completed_total",
			Help: "Authorized releases moved to released.",
		})

		releaseCompletionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_release_completion_failures_total",
			Help: "Release completion failures by step.",
		}, []string{"step"})

		lostFoundTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_lost_found_transitions_total",
			Help: "Lost and found registry writes by operation.",
		}, []string{"operation"})

		reaperPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_lost_found_reaper_purged_total",
			Help: "Delivered lost and found items purged after retention.",
		})

		reaperErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_lost_found_reaper_errors_total",
			Help: "Per-item failures while purging delivered lost and found items.",
		})

		realtimeSubscribersActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gate_realtime_subscribers_active",
			Help: "Active realtime subscriptions by collection.",
		}, []string{"collection"})

		realtimeEventsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_realtime_events_dropped_total",
			Help: "Change events dropped because a subscriber was not keeping up.",
		}, []string{"collection"})

		notificationsPublished = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_notifications_published_total",
			Help: "Notifications appended to student feeds.",
		})

		gateSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gate_sessions_active",
			Help: "Connected gate devices.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			gateScansTotal, releasesCompletedTotal, releaseCompletionFailures,
			lostFoundTransitionsTotal, reaperPurgedTotal, reaperErrorsTotal,
			realtimeSubscribersActive, realtimeEventsDroppedTotal,
			notificationsPublished, gateSessionsActive,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GateScans counts scans labelled by outcome (released, not_found, no_match, cancelled, error, dropped).
func GateScans() *prometheus.CounterVec {
	RegisterMetrics()
	return gateScansTotal
}

// ReleasesCompleted counts successful status flips.
func ReleasesCompleted() prometheus.Counter {
	RegisterMetrics()
	return releasesCompletedTotal
}

// ReleaseCompletionFailures counts completion failures labelled by step.
func ReleaseCompletionFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return releaseCompletionFailures
}

// LostFoundTransitions counts registry writes.
func LostFoundTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lostFoundTransitionsTotal
}

// ReaperPurged counts items removed by the expiry reaper.
func ReaperPurged() prometheus.Counter {
	RegisterMetrics()
	return reaperPurgedTotal
}

// ReaperErrors counts per-item reaper failures.
func ReaperErrors() prometheus.Counter {
	RegisterMetrics()
	return reaperErrorsTotal
}

// RealtimeSubscribers tracks open hub subscriptions.
func RealtimeSubscribers() *prometheus.GaugeVec {
	RegisterMetrics()
	return realtimeSubscribersActive
}

// RealtimeEventsDropped counts events dropped on slow subscribers.
func RealtimeEventsDropped() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeEventsDroppedTotal
}

// NotificationsPublished counts notifications written to feeds.
func NotificationsPublished() prometheus.Counter {
	RegisterMetrics()
	return notificationsPublished
}

// GateSessions tracks connected gate devices.
func GateSessions() prometheus.Gauge {
	RegisterMetrics()
	return gateSessionsActive
}
