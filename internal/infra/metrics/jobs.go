package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		researchJobsTotal,
		researchJobsInFlight,
		researchJobsCancelled,
	)
}

var researchJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "research_jobs_total",
		Help: "Total number of research jobs reaching a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var researchJobsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "research_jobs_in_flight",
		Help: "Research jobs currently queued or running.",
	},
)

var researchJobsCancelled = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "research_jobs_cancelled_total",
		Help: "Cancellation requests accepted for running jobs.",
	},
)

func IncJob(status string) {
	researchJobsTotal.WithLabelValues(norm(status)).Inc()
}

func JobStarted()  { researchJobsInFlight.Inc() }
func JobFinished() { researchJobsInFlight.Dec() }

func IncJobCancelled() { researchJobsCancelled.Inc() }
