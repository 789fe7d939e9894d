package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordOptimization(t *testing.T) {
	m := New()

	m.RecordOptimization("converged", 2*time.Second, 150, 87.5, 0.9)
	m.RecordOptimization("timed_out", time.Second, 50, 60, 0.7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.optimizeTotal.WithLabelValues("converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.optimizeTotal.WithLabelValues("timed_out")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.iterations))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.coverageRate))
	assert.Equal(t, 0.7, testutil.ToFloat64(m.fairnessScore))
}

func TestMetrics_CacheEventsAndJobs(t *testing.T) {
	m := New()

	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(false)
	m.RecordEvent(nil)
	m.RecordEvent(errors.New("broker down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("error")))

	done := m.JobStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeJobs))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeJobs))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordRequest(http.MethodPost, "/api/v1/schedules/optimize", 200, 30*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shiftopt_http_requests_total{method="POST",path="/api/v1/schedules/optimize",status="200"} 1`)
}

func TestDefault_Singleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
