package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(stageDurationSeconds)
}

var stageDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Pipeline stage execution time, labeled by stage and outcome.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	},
	[]string{"stage", "status"},
)

func ObserveStage(stage, status string, d time.Duration) {
	stageDurationSeconds.WithLabelValues(norm(stage), norm(status)).Observe(d.Seconds())
}
