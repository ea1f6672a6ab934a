package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Readings        *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	Retries         prometheus.Counter
	TrackersFailed  prometheus.Counter
	ActiveSessions  prometheus.Gauge
	OpenWatches     prometheus.Gauge
	GeocodeSeconds  *prometheus.HistogramVec
	PersistFailures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Readings: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "compass_tracker_readings_total",
			Help: "Total number of location readings received by trackers.",
		}, []string{"result"}),
		Errors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "compass_tracker_errors_total",
			Help: "Total number of tracker errors by kind.",
		}, []string{"kind"}),
		Retries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "compass_tracker_retries_total",
			Help: "Total number of scheduled watch re-subscriptions.",
		}),
		TrackersFailed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "compass_tracker_failed_total",
			Help: "Total number of trackers that entered the failed state.",
		}),
		ActiveSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "compass_sessions_active",
			Help: "Current number of open tracking sessions.",
		}),
		OpenWatches: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "compass_hub_watches_open",
			Help: "Current number of open location watches on the device hub.",
		}),
		GeocodeSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compass_reverse_geocode_duration_seconds",
			Help:    "Duration of reverse geocoding requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		PersistFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "compass_persist_failures_total",
			Help: "Total number of failed writes to the database.",
		}, []string{"table"}),
	}
}
