// Package metrics holds the Prometheus collectors for the analysis pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytvision_tasks_total",
		Help: "Total number of analysis tasks, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytvision_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytvision_frames_sampled_total",
		Help: "Total number of frames sampled across all tasks",
	})

	BatchCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytvision_description_batches_total",
		Help: "Description service calls, by outcome",
	}, []string{"outcome"})

	PublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytvision_publish_attempts_total",
		Help: "Frame publish attempts, by backend and outcome",
	}, []string{"backend", "outcome"})

	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytvision_active_tasks",
		Help: "Number of tasks currently running",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
