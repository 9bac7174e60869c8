package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLookup("found", time.Now())
		m.ObserveImport("invalid")
		m.ObserveImportCommit(1, 2, time.Now())
		m.ObserveSweep(1, 2, 3)
		m.SetDBAvailable(true)
		m.ObserveInitAttempt(nil)
		m.IncrementPoolRecreations()
		m.ObserveCache("hit")
	})
}

func TestObserveImportCommit(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveImportCommit(3, 2, time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues("committed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ImportRows.WithLabelValues("inserted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImportRows.WithLabelValues("skipped")))
}

func TestDatabaseGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetDBAvailable(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBAvailable))
	m.SetDBAvailable(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DBAvailable))

	m.ObserveInitAttempt(errors.New("refused"))
	m.ObserveInitAttempt(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBInitAttempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBInitAttempts.WithLabelValues("success")))
}
