package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveAnalysis(t *testing.T) {
	m := New()
	m.ObserveAnalysis("text", "ok", 1200*time.Millisecond)
	m.ObserveAnalysis("text", "ok", 800*time.Millisecond)
	m.ObserveAnalysis("image", "invalid_input", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Analyses.WithLabelValues("text", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("image", "invalid_input")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.AnalysisDuration))
}

func TestMetrics_ObserveCacheAndHistory(t *testing.T) {
	m := New()
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.ObserveHistory(nil)
	m.ObserveHistory(errors.New("disk full"))
	m.ObserveRateLimited()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryRecorded.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
}

func TestMetrics_Handler_ExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "/api/v1/diagnoses", http.StatusOK, 30*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cropdoctor_http_requests_total{method="POST",route="/api/v1/diagnoses",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_WatchEventBus(t *testing.T) {
	m := New()
	var dropped uint64 = 2
	m.WatchEventBus(func() uint64 { return dropped })
	dropped = 5

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), "cropdoctor_events_dropped_total 5")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveRateLimited()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RateLimited))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RateLimited))
}
