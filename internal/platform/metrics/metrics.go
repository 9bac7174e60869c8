package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is valid and
// records nothing, which keeps tests and optional wiring simple.
type Metrics struct {
	Lookups          *prometheus.CounterVec
	LookupDuration   prometheus.Histogram
	Imports          *prometheus.CounterVec
	ImportRows       *prometheus.CounterVec
	ImportDuration   prometheus.Histogram
	SweepRowsDeleted prometheus.Counter
	SweepFiles       prometheus.Counter
	SweepErrors      prometheus.Counter
	DBAvailable      prometheus.Gauge
	DBInitAttempts   *prometheus.CounterVec
	PoolRecreations  prometheus.Counter
	CacheRequests    *prometheus.CounterVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certhub_lookups_total",
			Help: "Certificate lookups by result (found, not_found, unavailable, error)",
		}, []string{"result"}),
		LookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "certhub_lookup_duration_seconds",
			Help:    "Duration of certificate lookups",
			Buckets: durationBuckets,
		}),
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certhub_imports_total",
			Help: "Spreadsheet imports by result (committed, invalid, failed, unavailable)",
		}, []string{"result"}),
		ImportRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certhub_import_rows_total",
			Help: "Imported rows by outcome (inserted, skipped)",
		}, []string{"outcome"}),
		ImportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "certhub_import_duration_seconds",
			Help:    "Duration of the import write phase",
			Buckets: durationBuckets,
		}),
		SweepRowsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "certhub_retention_rows_deleted_total",
			Help: "Certificate rows removed by the retention sweeper",
		}),
		SweepFiles: f.NewCounter(prometheus.CounterOpts{
			Name: "certhub_retention_files_deleted_total",
			Help: "Stale upload files removed by the retention sweeper",
		}),
		SweepErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "certhub_retention_errors_total",
			Help: "Errors logged by the retention sweeper",
		}),
		DBAvailable: f.NewGauge(prometheus.GaugeOpts{
			Name: "certhub_database_available",
			Help: "1 when the connection manager holds a working pool",
		}),
		DBInitAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certhub_database_init_attempts_total",
			Help: "Pool initialization attempts by result (success, failure)",
		}, []string{"result"}),
		PoolRecreations: f.NewCounter(prometheus.CounterOpts{
			Name: "certhub_database_pool_recreations_total",
			Help: "Pools torn down after a fatal driver error",
		}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certhub_cache_requests_total",
			Help: "Lookup cache requests by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

// ObserveLookup records a lookup result and its duration.
func (m *Metrics) ObserveLookup(result string, start time.Time) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(result).Inc()
	m.LookupDuration.Observe(time.Since(start).Seconds())
}

// ObserveImport records an import result.
func (m *Metrics) ObserveImport(result string) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues(result).Inc()
}

// ObserveImportCommit records row outcomes and write-phase duration of a committed import.
func (m *Metrics) ObserveImportCommit(inserted, skipped int, start time.Time) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues("committed").Inc()
	m.ImportRows.WithLabelValues("inserted").Add(float64(inserted))
	m.ImportRows.WithLabelValues("skipped").Add(float64(skipped))
	m.ImportDuration.Observe(time.Since(start).Seconds())
}

// ObserveSweep records the outcome of one retention pass.
func (m *Metrics) ObserveSweep(rows int64, files int, errs int) {
	if m == nil {
		return
	}
	m.SweepRowsDeleted.Add(float64(rows))
	m.SweepFiles.Add(float64(files))
	m.SweepErrors.Add(float64(errs))
}

// SetDBAvailable mirrors the connection manager availability flag.
func (m *Metrics) SetDBAvailable(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.DBAvailable.Set(1)
		return
	}
	m.DBAvailable.Set(0)
}

// ObserveInitAttempt records one pool initialization attempt.
func (m *Metrics) ObserveInitAttempt(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DBInitAttempts.WithLabelValues("failure").Inc()
		return
	}
	m.DBInitAttempts.WithLabelValues("success").Inc()
}

// IncrementPoolRecreations records a pool torn down after a fatal error.
func (m *Metrics) IncrementPoolRecreations() {
	if m == nil {
		return
	}
	m.PoolRecreations.Inc()
}

// ObserveCache records a cache hit, miss or error.
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}
