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

	assert.NoError(t, m.Track("payables:refresh-overdue").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("payables:refresh-overdue").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("payables:refresh-overdue", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("payables:refresh-overdue", "failure")))
}

func TestNilTrackerIsNoop(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.Track("x").End(nil))
}
