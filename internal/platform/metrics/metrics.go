package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "contest_judge"

var (
	// 10ms -> 60s
	gradingBuckets = []float64{
		0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60,
	}

	verdictCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "submissions_graded_total",
		Help:      "Number of submissions that reached a terminal status",
	}, []string{"status"})

	gradingTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "grading_duration_seconds",
		Help:      "Histogram for the time spent grading one submission",
		Buckets:   gradingBuckets,
	}, []string{"status"})

	runTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "executor",
		Name:      "run_seconds",
		Help:      "Histogram for a single sandboxed step",
		Buckets:   gradingBuckets,
	}, []string{"step", "status"})

	submissionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "submissions_created_total",
		Help:      "Number of accepted submit requests",
	})

	scheduleErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "schedule_errors_total",
		Help:      "Number of submissions that could not be scheduled for grading",
	})

	poolQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "pool",
		Name:      "queue_depth",
		Help:      "Grading tasks waiting for a worker",
	})

	poolBusy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "pool",
		Name:      "busy_workers",
		Help:      "Workers currently grading",
	})
)

func init() {
	prometheus.MustRegister(verdictCount, gradingTimeHist, runTimeHist)
	prometheus.MustRegister(submissionsCreated, scheduleErrors)
	prometheus.MustRegister(poolQueueDepth, poolBusy)
}

func ObserveVerdict(status string, d time.Duration) {
	verdictCount.WithLabelValues(status).Inc()
	gradingTimeHist.WithLabelValues(status).Observe(d.Seconds())
}

func ObserveRun(step, status string, d time.Duration) {
	runTimeHist.WithLabelValues(step, status).Observe(d.Seconds())
}

func SubmissionCreated() {
	submissionsCreated.Inc()
}

func ScheduleFailed() {
	scheduleErrors.Inc()
}

func SetPoolQueueDepth(n int) {
	poolQueueDepth.Set(float64(n))
}

func SetPoolBusy(n int) {
	poolBusy.Set(float64(n))
}
