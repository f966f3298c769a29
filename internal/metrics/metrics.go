package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway metrics
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirechat_connections_open",
			Help: "Currently open realtime connections on this instance",
		},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_events_delivered_total",
			Help: "Events delivered to local connections",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_events_dropped_total",
			Help: "Events dropped due to slow consumers",
		},
	)

	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_presence_transitions_total",
			Help: "Presence online/offline transitions observed",
		},
		[]string{"direction"}, // "online" or "offline"
	)

	// Broadcast adapter metrics
	PubSubPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_pubsub_published_total",
			Help: "Frames published to the shared channel",
		},
	)

	PubSubReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_pubsub_received_total",
			Help: "Frames received from the shared channel",
		},
	)

	PubSubPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_pubsub_publish_errors_total",
			Help: "Failed publishes to the shared channel",
		},
	)

	// Job metrics
	JobsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_jobs_consumed_total",
			Help: "Jobs consumed from the broker",
		},
		[]string{"kind"},
	)

	JobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_jobs_failed_total",
			Help: "Jobs whose handler returned an error or panicked",
		},
		[]string{"kind"},
	)

	// Scan pipeline metrics
	ScanCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_scan_cache_hits_total",
			Help: "Scan jobs answered from the verdict cache",
		},
	)

	ScanCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_scan_cache_misses_total",
			Help: "Scan jobs that required an external classification",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wirechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)
)
