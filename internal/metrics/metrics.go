package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	// BidsTotal counts bid attempts by outcome ("accepted" or a rejection reason code).
	BidsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_bids_total",
			Help: "Bid attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// SettlementsTotal counts ACTIVE -> ENDED transitions by trigger ("sweep", "bid" or "cancel").
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_settlements_total",
			Help: "Auctions settled, by trigger.",
		},
		[]string{"trigger"},
	)

	CancellationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auction_cancellations_total",
		Help: "Auctions cancelled by an administrator.",
	})

	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "auction_sweep_duration_seconds",
		Help:    "Duration of a single expiry sweep pass.",
		Buckets: prometheus.DefBuckets,
	})

	SweepFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auction_sweep_failures_total",
		Help: "Auctions the sweep failed to settle.",
	})

	// NotificationsTotal counts publishes by result ("published", "failed", "dropped").
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_notifications_total",
			Help: "Notification publishes by result.",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Register adds every collector to the default registry; repeated calls are no-ops
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			BidsTotal,
			SettlementsTotal,
			CancellationsTotal,
			SweepDuration,
			SweepFailuresTotal,
			NotificationsTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
