package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRunRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("auth.event").End(nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, m.Track("auth.event").End(boom))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("auth.event", statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("auth.event", statusFailure)))
}

func TestEventCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddEvent("login.failed")
	m.AddEvent("login.failed")
	m.AddEvent("")
	m.AddPurged(5)
	m.AddPurged(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("login.failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.purged))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddEvent("logout")
	m.AddPurged(3)
	assert.NoError(t, m.Track("auth.event").End(nil))
}

func TestDefaultRegistererIsShared(t *testing.T) {
	assert.Same(t, NewMetrics(nil), NewMetrics(nil))
}
