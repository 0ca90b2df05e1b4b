// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. Observations accumulate in a private registry and are sent on
// Flush, normally once at the end of a run.
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"dwh/internal/metrics"
)

// Backend pushes the pipeline metrics under one Pushgateway job.
type Backend struct {
	pusher *push.Pusher

	steps     *prometheus.CounterVec
	records   *prometheus.CounterVec
	durations *prometheus.HistogramVec
	tableRows *prometheus.GaugeVec
}

// NewBackend registers the collectors and prepares a pusher for url.
func NewBackend(job, url string) (*Backend, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	if job == "" {
		job = "dwh"
	}

	b := &Backend{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline steps finished, by step and status.",
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows written, by target table.",
		}, []string{"kind"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Step wall time in seconds.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"step", "status"}),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.TableRows,
			Help: "Row count of each warehouse table after the run.",
		}, []string{"table"}),
	}

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{b.steps, b.records, b.durations, b.tableRows} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}
	b.pusher = push.New(url, job).Gatherer(reg)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, l metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(l["step"], status(l)).Add(delta)
	case metrics.RecordsTotal:
		if l["kind"] == "" {
			return
		}
		b.records.WithLabelValues(l["kind"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, v float64, l metrics.Labels) {
	if v < 0 || name != metrics.StepDurationSeconds {
		return
	}
	b.durations.WithLabelValues(l["step"], status(l)).Observe(v)
}

// SetGauge implements metrics.Gauger.
func (b *Backend) SetGauge(name string, v float64, l metrics.Labels) {
	if name != metrics.TableRows || l["table"] == "" {
		return
	}
	b.tableRows.WithLabelValues(l["table"]).Set(v)
}

// Flush replaces the job's metric group on the gateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

func status(l metrics.Labels) string {
	if s := l["status"]; s != "" {
		return s
	}
	return "unknown"
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Gauger  = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
