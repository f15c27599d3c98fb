package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.UploadsTotal.WithLabelValues(UploadRecorded).Inc()
	m.UploadsTotal.WithLabelValues(UploadRecorded).Inc()
	m.UploadsTotal.WithLabelValues(UploadRejected).Inc()
	m.DetectionsRecorded.Add(3)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(UploadRecorded)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(UploadRejected)), 1e-9)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.DetectionsRecorded), 1e-9)
}

func TestObserveQuery(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveQuery("list", time.Now())
	m.ObserveQuery("get", time.Now())

	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.FeedClients.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "visionqa_feed_clients 2")
}

func TestRegistry_IsolatedPerInstance(t *testing.T) {
	first, err := New()
	require.NoError(t, err)
	second, err := New()
	require.NoError(t, err)

	first.UploadsTotal.WithLabelValues(UploadRecorded).Inc()
	first.UploadsTotal.WithLabelValues(UploadStorage).Inc()

	count, err := testutil.GatherAndCount(first.Registry(), "visionqa_uploads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(second.Registry(), "visionqa_uploads_total")
	require.NoError(t, err)
	assert.Zero(t, count)
}
