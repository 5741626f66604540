package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
)

func TestDetectorMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewDetectorMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveQuery("Post", 4)
	m.ObserveQuery("Post", 1)
	m.ObserveQuery("", 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.QueriesObserved.WithLabelValues("Post")), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.RowsObserved.WithLabelValues("Post")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.QueriesObserved.WithLabelValues(LabelUnknown)), 0)

	m.RecordUnitOfWork(detector.Stats{TrackedObjects: 12}, []detector.Notice{
		{Kind: detector.KindUnpreloaded, Class: "Post", Associations: []string{"Comments"}},
		{Kind: detector.KindUnusedPreload, Class: "Post", Associations: []string{"Writer"}},
		{Kind: detector.KindUnpreloaded, Class: "Post", Associations: []string{"Category"}},
	})
	m.RecordUnitOfWork(detector.Stats{}, nil)

	assert.InDelta(t, 2, testutil.ToFloat64(m.UnitsOfWorkTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.NoticesTotal.WithLabelValues("n_plus_one_query", "Post")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.NoticesTotal.WithLabelValues("unused_eager_loading", "Post")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.TrackedObjects))
}

func TestDetectorMetricsDoubleRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewDetectorMetrics(registry)
	require.NoError(t, err)
	_, err = NewDetectorMetrics(registry)
	require.Error(t, err)
}

func TestNotificationMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewNotificationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveDelivery("webhook", nil)
	m.ObserveDelivery("webhook", errors.New(errors.NewStd("timeout")).Category(errors.CategoryNetwork).Build())
	m.ObserveDelivery("mqtt", errors.NewStd("plain"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("webhook", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("webhook", StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveryErrors.WithLabelValues("webhook", "network")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveryErrors.WithLabelValues("mqtt", "generic")), 0)
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	m.RequestStarted()
	m.RequestStarted()
	assert.InDelta(t, 2, m.InFlight(), 0)

	m.RecordRequest("GET", "/posts", 200, 15*time.Millisecond, 2)
	m.RecordRequest("GET", "/posts/:id", 404, time.Millisecond, 0)
	assert.InDelta(t, 0, m.InFlight(), 0)

	expected := `
# HELP preloadwatch_http_request_notices_total Total number of notices raised while serving requests, by route
# TYPE preloadwatch_http_request_notices_total counter
preloadwatch_http_request_notices_total{method="GET",path="/posts"} 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"preloadwatch_http_request_notices_total"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/posts/:id", "404")), 0)
}
