// Package metrics is the process-wide metrics facade used by the pipeline.
//
// Core code records through the package functions below and never imports a
// concrete backend. main selects one (Datadog, Pushgateway or none) and
// installs it with SetBackend before the run starts.
package metrics

import (
	"sync"
	"time"
)

// Metric names. Backends translate them into their own naming scheme.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	RecordsTotal        = "etl_records_total"
	TableRows           = "etl_table_rows"
)

// Labels are metric dimensions such as step, status or table.
type Labels map[string]string

// Backend receives every observation.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Gauger is implemented by backends that can hold a point-in-time value.
type Gauger interface {
	SetGauge(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// SetGauge sets a gauge if the backend supports gauges; otherwise it is dropped.
func SetGauge(name string, value float64, labels Labels) {
	if g, ok := current().(Gauger); ok {
		g.SetGauge(name, value, labels)
	}
}

// Flush pushes buffered observations, if the backend buffers any.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one finished step and its duration. status is "ok" or
// the error kind of the failure.
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRows counts rows written to table by one statement.
func RecordRows(table string, n int64) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": table})
}

// RecordTableRows publishes the row count of table at the end of a run.
func RecordTableRows(table string, n int64) {
	SetGauge(TableRows, float64(n), Labels{"table": table})
}
