package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "wpdeploy"

	subsystemPipeline = "pipeline"
	subsystemUAPI     = "uapi"

	labelStage     = "stage"
	labelStatus    = "status"
	labelOperation = "operation"
	labelOutcome   = "outcome"

	JobName = "wpdeploy"
)

// Metrics collects pipeline and hosting API measurements for one process.
// A nil *Metrics discards everything.
type Metrics struct {
	registry *prometheus.Registry

	deployments   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageResults  *prometheus.CounterVec
	remoteCalls   *prometheus.CounterVec
	remoteRetries *prometheus.CounterVec
	uploadedBytes prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "deployments_total",
			Help:      "number of finished deployments by overall status",
			Namespace: namespace,
			Subsystem: subsystemPipeline,
		}, []string{labelStatus}),

		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "stage_duration_seconds",
			Help:      "time spent in each pipeline stage",
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{labelStage, labelStatus}),

		stageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "stage_results_total",
			Help:      "number of recorded stage results by stage and status",
			Namespace: namespace,
			Subsystem: subsystemPipeline,
		}, []string{labelStage, labelStatus}),

		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "calls_total",
			Help:      "number of hosting API calls by operation and outcome",
			Namespace: namespace,
			Subsystem: subsystemUAPI,
		}, []string{labelOperation, labelOutcome}),

		remoteRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "retries_total",
			Help:      "number of hosting API calls retried after a transient failure",
			Namespace: namespace,
			Subsystem: subsystemUAPI,
		}, []string{labelOperation}),

		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "uploaded_bytes_total",
			Help:      "bytes uploaded to the hosting account",
			Namespace: namespace,
			Subsystem: subsystemUAPI,
		}),
	}

	m.registry.MustRegister(
		m.deployments,
		m.stageDuration,
		m.stageResults,
		m.remoteCalls,
		m.remoteRetries,
		m.uploadedBytes,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) DeploymentFinished(status string) {
	if m == nil {
		return
	}
	m.deployments.With(prometheus.Labels{labelStatus: status}).Inc()
}

func (m *Metrics) StageFinished(stage, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{labelStage: stage, labelStatus: status}
	m.stageDuration.With(labels).Observe(elapsed.Seconds())
}

func (m *Metrics) StageResult(stage, status string) {
	if m == nil {
		return
	}
	m.stageResults.With(prometheus.Labels{labelStage: stage, labelStatus: status}).Inc()
}

func (m *Metrics) RemoteCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.remoteCalls.With(prometheus.Labels{labelOperation: operation, labelOutcome: outcome}).Inc()
}

func (m *Metrics) RemoteRetry(operation string) {
	if m == nil {
		return
	}
	m.remoteRetries.With(prometheus.Labels{labelOperation: operation}).Inc()
}

func (m *Metrics) Uploaded(bytes int64) {
	if m == nil {
		return
	}
	m.uploadedBytes.Add(float64(bytes))
}

// Push sends all collected metrics to a Prometheus Pushgateway.
func (m *Metrics) Push(url, instance string) error {
	if m == nil || url == "" {
		return nil
	}
	return push.New(url, JobName).
		Gatherer(m.registry).
		Grouping("instance", instance).
		Push()
}
