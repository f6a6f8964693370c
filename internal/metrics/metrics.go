// Package metrics exposes the process's Prometheus registry: job-registry
// state gauges and a counter of rows ingested. This is ambient
// observability, carried the way the teacher instruments long-running
// repository operations, not a core analytics concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/importly/health-dashboard-backend/internal/jobs"
)

var (
	JobsByState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_backend_jobs",
		Help: "Number of ingestion jobs currently in each state.",
	}, []string{"state"})

	RowsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "health_backend_rows_ingested_total",
		Help: "Total number of rows staged for insertion by the XML ingester.",
	})

	ExternalFilesImported = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "health_backend_external_files_imported_total",
		Help: "Total number of external source files (ECG, GPX) imported.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(JobsByState, RowsIngested, ExternalFilesImported)
}

// RefreshJobGauges sets the job-state gauges from the registry's current
// counts. Nothing in this module calls it (the scheduler runs only the
// external import scan), so the gauges change only when a caller invokes it.
func RefreshJobGauges(reg *jobs.Registry) {
	counts := reg.CountByStage()
	for state, count := range counts {
		JobsByState.WithLabelValues(string(state)).Set(float64(count))
	}
}
