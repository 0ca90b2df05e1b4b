package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	gauges   map[string]float64
	flushes  int
	flushErr error
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		counters: map[string]float64{},
		samples:  map[string][]float64{},
		gauges:   map[string]float64{},
	}
}

func key(name string, l Labels) string {
	return name + "|" + l["step"] + "|" + l["status"] + "|" + l["kind"] + "|" + l["table"]
}

func (r *recordingBackend) IncCounter(name string, delta float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key(name, l)] += delta
}

func (r *recordingBackend) ObserveHistogram(name string, v float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[key(name, l)] = append(r.samples[key(name, l)], v)
}

func (r *recordingBackend) SetGauge(name string, v float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[key(name, l)] = v
}

func (r *recordingBackend) Flush() error {
	r.flushes++
	return r.flushErr
}

// Tests in this file swap the global backend and must not run in parallel.

func TestRecordStepAndRows(t *testing.T) {
	rb := newRecordingBackend()
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("populate_users", "ok", 1500*time.Millisecond)
	RecordStep("populate_users", "ok", 500*time.Millisecond)
	RecordRows("users", 7)
	RecordRows("users", 0)
	RecordTableRows("songplays", 42)

	if got := rb.counters[key(StepTotal, Labels{"step": "populate_users", "status": "ok"})]; got != 2 {
		t.Fatalf("step counter=%v, want 2", got)
	}
	if got := rb.samples[key(StepDurationSeconds, Labels{"step": "populate_users", "status": "ok"})]; len(got) != 2 || got[0] != 1.5 {
		t.Fatalf("duration samples=%v", got)
	}
	if got := rb.counters[key(RecordsTotal, Labels{"kind": "users"})]; got != 7 {
		t.Fatalf("records=%v, want 7", got)
	}
	if got := rb.gauges[key(TableRows, Labels{"table": "songplays"})]; got != 42 {
		t.Fatalf("gauge=%v, want 42", got)
	}
}

func TestFlushDelegatesToBackend(t *testing.T) {
	rb := newRecordingBackend()
	rb.flushErr = errors.New("push failed")
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	if err := Flush(); err == nil || rb.flushes != 1 {
		t.Fatalf("Flush err=%v flushes=%d", err, rb.flushes)
	}

	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush err=%v", err)
	}
	// Gauges on a backend without gauge support are dropped silently.
	SetGauge(TableRows, 1, Labels{"table": "users"})
}
