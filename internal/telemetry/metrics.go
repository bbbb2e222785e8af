package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsCreated        = prometheus.NewCounter(prometheus.CounterOpts{Name: "cinescribe_jobs_created_total", Help: "Jobs admitted into the queue"})
	JobsCompleted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "cinescribe_jobs_completed_total", Help: "Jobs that produced a script"})
	JobsFailed         = prometheus.NewCounter(prometheus.CounterOpts{Name: "cinescribe_jobs_failed_total", Help: "Jobs that ended in error"})
	JobsCancelled      = prometheus.NewCounter(prometheus.CounterOpts{Name: "cinescribe_jobs_cancelled_total", Help: "Queued jobs cancelled before processing"})
	AdmissionRejects   = prometheus.NewCounter(prometheus.CounterOpts{Name: "cinescribe_admission_rejects_total", Help: "Submissions rejected because the queue was full"})
	StageFailures      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cinescribe_stage_failures_total", Help: "Per-stage failures, including recovered partial ones"}, []string{"stage"})
	AssemblyFallbacks  = prometheus.NewCounter(prometheus.CounterOpts{Name: "cinescribe_assembly_fallbacks_total", Help: "Scripts produced by the deterministic fallback formatter"})
	JobsProcessing     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "cinescribe_jobs_processing", Help: "Jobs currently holding a processing slot"})
	SweptJobs          = prometheus.NewCounter(prometheus.CounterOpts{Name: "cinescribe_swept_jobs_total", Help: "Expired terminal jobs removed by the sweeper"})
	SweptFiles         = prometheus.NewCounter(prometheus.CounterOpts{Name: "cinescribe_swept_files_total", Help: "Orphaned temp files removed by the sweeper"})
)

// RegisterQueueDepth exposes the live queued-job count as a gauge. The
// count is read from the source of truth on every scrape instead of
// being tracked through transitions.
func RegisterQueueDepth(count func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "cinescribe_jobs_queued", Help: "Jobs currently waiting for a processing slot"},
		func() float64 { return float64(count()) },
	))
}

// Handler exposes the /metrics endpoint with a singleton registration.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsCreated,
			JobsCompleted,
			JobsFailed,
			JobsCancelled,
			AdmissionRejects,
			StageFailures,
			AssemblyFallbacks,
			JobsProcessing,
			SweptJobs,
			SweptFiles,
		)
	})
	return promhttp.Handler()
}
