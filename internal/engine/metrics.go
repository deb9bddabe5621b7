package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_tasks_submitted_total",
			Help: "Total number of tasks submitted, by submission mode.",
		},
		[]string{"mode"},
	)

	tasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_tasks_finished_total",
			Help: "Total number of tasks reaching a terminal status.",
		},
		[]string{"status"},
	)

	tasksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskgate_tasks_active",
			Help: "Number of tasks currently executing.",
		},
	)

	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskgate_task_duration_seconds",
			Help:    "Task execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(tasksSubmitted)
	prometheus.MustRegister(tasksFinished)
	prometheus.MustRegister(tasksActive)
	prometheus.MustRegister(taskDuration)
}
