package monitoring

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector()

	c.RecordExtraction("ok", 120*time.Millisecond)
	c.RecordExtraction("ok", 0)
	c.RecordExtraction("unavailable", 0)
	c.RecordUpsell("rule", "shown")
	c.RecordConflict()
	c.SetActiveSessions(4)
	c.RecordAccuracy("demo", 0.75)

	extractions := c.metrics["extractions"].(*prometheus.CounterVec)
	assert.Equal(t, 2.0, testutil.ToFloat64(extractions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(extractions.WithLabelValues("unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics["conflicts"]))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.metrics["sessions"]))

	accuracy := c.metrics["accuracy"].(*prometheus.GaugeVec)
	assert.Equal(t, 0.75, testutil.ToFloat64(accuracy.WithLabelValues("demo")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTurn("text", "IDLE", time.Second)
		c.RecordExtraction("ok", time.Second)
		c.RecordUpsell("rule", "shown")
		c.RecordConflict()
		c.SetActiveSessions(1)
		c.RecordAccuracy("demo", 1)
	})
	assert.Equal(t, time.Duration(0), c.Uptime())
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordTurn("text", "BUILDING_ORDER", 30*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "maitred_turn_duration_seconds_bucket"))
	assert.True(t, strings.Contains(body, "maitred_active_sessions"))
}
