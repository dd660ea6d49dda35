package ingestion

import (
	"github.com/poiesic/repoingest/core"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "repoingest"

// Run results recorded in the runs counter.
const (
	resultCompleted = "completed"
	resultDegraded  = "degraded"
	resultFailed    = "failed"
)

type metrics struct {
	files    *prometheus.CounterVec
	chunks   prometheus.Counter
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// newMetrics builds the pipeline collectors and registers them when reg is not nil.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_total",
			Help:      "Files processed, by outcome.",
		}, []string{"status"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "chunks_stored_total",
			Help:      "Chunks accepted by the sink.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Ingestion runs, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.files, m.chunks, m.runs, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observeFile(outcome core.FileOutcome) {
	m.files.WithLabelValues(outcome.Status.String()).Inc()
	if outcome.Status == core.StatusSuccess {
		m.chunks.Add(float64(outcome.ChunkCount))
	}
}

func (m *metrics) observeRun(report *core.IngestionReport) {
	result := resultCompleted
	switch {
	case report.Error != "":
		result = resultFailed
	case report.Degraded():
		result = resultDegraded
	}
	m.runs.WithLabelValues(result).Inc()
	if !report.FinishedAt.IsZero() {
		m.duration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
}
