package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration     *prom.HistogramVec
	taskResults      *prom.CounterVec
	fileErrors       *prom.CounterVec
	phaseDuration    *prom.HistogramVec
	pipelineOutcomes *prom.CounterVec
	watchTriggers    *prom.CounterVec
	reloads          prom.Counter
	reloadClients    prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "sitepipe",
			Name:      "task_duration_seconds",
			Help:      "Duration of individual task runs",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitepipe",
			Name:      "task_results_total",
			Help:      "Task result counts by outcome",
		}, []string{"task", "result"}),
		fileErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitepipe",
			Name:      "file_errors_total",
			Help:      "Files that failed their adapter chain",
		}, []string{"task"}),
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "sitepipe",
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline phases, barrier to barrier",
			Buckets:   prom.DefBuckets,
		}, []string{"pipeline", "phase"}),
		pipelineOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitepipe",
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline runs by final status",
		}, []string{"pipeline", "outcome"}),
		watchTriggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitepipe",
			Name:      "watch_triggers_total",
			Help:      "Task reruns triggered by source changes",
		}, []string{"task"}),
		reloads: prom.NewCounter(prom.CounterOpts{
			Namespace: "sitepipe",
			Name:      "livereload_broadcasts_total",
			Help:      "Reload notifications sent to browsers",
		}),
		reloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: "sitepipe",
			Name:      "livereload_clients",
			Help:      "Connected live reload clients",
		}),
	}
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.fileErrors, pr.phaseDuration,
		pr.pipelineOutcomes, pr.watchTriggers, pr.reloads, pr.reloadClients)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	if p == nil {
		return
	}
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(task string, result ResultLabel) {
	if p == nil {
		return
	}
	p.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) AddFileErrors(task string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.fileErrors.WithLabelValues(task).Add(float64(n))
}

func (p *PrometheusRecorder) ObservePhaseDuration(pipeline, phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.phaseDuration.WithLabelValues(pipeline, phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPipelineOutcome(pipeline, outcome string) {
	if p == nil {
		return
	}
	p.pipelineOutcomes.WithLabelValues(pipeline, outcome).Inc()
}

func (p *PrometheusRecorder) IncWatchTrigger(task string) {
	if p == nil {
		return
	}
	p.watchTriggers.WithLabelValues(task).Inc()
}

func (p *PrometheusRecorder) IncReloadBroadcast() {
	if p == nil {
		return
	}
	p.reloads.Inc()
}

func (p *PrometheusRecorder) SetReloadClients(n int) {
	if p == nil {
		return
	}
	p.reloadClients.Set(float64(n))
}
