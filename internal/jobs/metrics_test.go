package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("overview:warm").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("overview:warm").End(boom), boom)
	m.SetRecords("overview:warm", 42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("overview:warm", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("overview:warm", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("overview:warm")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.records.WithLabelValues("overview:warm")))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("x").End(boom), boom)
	m.SetRecords("x", 1)
}
