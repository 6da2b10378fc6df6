package metrics

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	ObserveHTTP(http.MethodGet, "/api/healthz", http.StatusOK, time.Millisecond)
	RecordAuth(EventLogin, "success")
	RecordMail("smtp", nil)
	RecordQueueDrop("mail:outbound", DropPermanent)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	registered := make(map[string]bool)
	for _, family := range families {
		registered[family.GetName()] = true
	}

	for _, name := range []string{
		"smartcampus_http_requests_total",
		"smartcampus_http_request_duration_seconds",
		"smartcampus_auth_events_total",
		"smartcampus_mail_deliveries_total",
		"smartcampus_queue_dropped_total",
		"smartcampus_tokens_purged_total",
	} {
		assert.True(t, registered[name], "metric %q should be registered", name)
	}
}

func TestObserveHTTP(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404"))
	ObserveHTTP("GET", "", http.StatusNotFound, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestRecordMail(t *testing.T) {
	ok := testutil.ToFloat64(mailDeliveries.WithLabelValues("queue", "ok"))
	failed := testutil.ToFloat64(mailDeliveries.WithLabelValues("queue", "error"))

	RecordMail("queue", nil)
	RecordMail("queue", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(mailDeliveries.WithLabelValues("queue", "ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(mailDeliveries.WithLabelValues("queue", "error")))
}

func TestRecordPurged(t *testing.T) {
	before := testutil.ToFloat64(tokensPurged)
	RecordPurged(0)
	RecordPurged(4)
	assert.Equal(t, before+4, testutil.ToFloat64(tokensPurged))
}
