package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "exposetext"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	loadDuration  *prom.HistogramVec
	applyDuration *prom.HistogramVec
	alterations   *prom.CounterVec
	operations    *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		loadDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of parsing and distilling a document",
			Buckets:   prom.DefBuckets,
		}, []string{"format", "result"}),
		applyDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Duration of applying queued alterations",
			Buckets:   prom.DefBuckets,
		}, []string{"format", "result"}),
		alterations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "alterations_applied_total",
			Help:      "Alterations applied by format",
		}, []string{"format"}),
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operations by name and outcome",
		}, []string{"operation", "result"}),
	}
	reg.MustRegister(pr.loadDuration, pr.applyDuration, pr.alterations, pr.operations)
	return pr
}

func (p *PrometheusRecorder) ObserveLoad(format string, d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.loadDuration.WithLabelValues(format, string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveApply(format string, alterations int, d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.applyDuration.WithLabelValues(format, string(result)).Observe(d.Seconds())
	if result == ResultSuccess {
		p.alterations.WithLabelValues(format).Add(float64(alterations))
	}
}

func (p *PrometheusRecorder) IncOperation(operation string, result ResultLabel) {
	if p == nil {
		return
	}
	p.operations.WithLabelValues(operation, string(result)).Inc()
}
