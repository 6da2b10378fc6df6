// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcampus_http_requests_total",
		Help: "Total HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartcampus_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcampus_auth_events_total",
		Help: "Authentication events by kind and outcome",
	}, []string{"event", "outcome"})

	mailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcampus_mail_deliveries_total",
		Help: "Outbound mail hand-offs by transport and outcome",
	}, []string{"transport", "outcome"})

	queueDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcampus_queue_dropped_total",
		Help: "Stream entries discarded without successful handling, by stream and reason",
	}, []string{"stream", "reason"})

	tokensPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartcampus_tokens_purged_total",
		Help: "Expired pending tokens removed by the purge job",
	})
)

// Auth event names.
const (
	EventLogin         = "login"
	EventRegister      = "register"
	EventVerifyEmail   = "verify_email"
	EventResetPassword = "reset_password"
	EventTokenIssued   = "token_issued"
)

// ObserveHTTP records one finished request. route is the matched gin route
// template, not the raw path.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordAuth(event, outcome string) {
	authEvents.WithLabelValues(event, outcome).Inc()
}

func RecordMail(transport string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	mailDeliveries.WithLabelValues(transport, outcome).Inc()
}

// Queue drop reasons.
const (
	DropPermanent     = "permanent"
	DropMaxDeliveries = "max_deliveries"
)

func RecordQueueDrop(stream, reason string) {
	queueDropped.WithLabelValues(stream, reason).Inc()
}

func RecordPurged(n int64) {
	if n > 0 {
		tokensPurged.Add(float64(n))
	}
}
