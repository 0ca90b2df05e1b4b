package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dwh/internal/logging"
	"dwh/internal/metrics"
	"dwh/internal/schema"
)

// StatementResult is the outcome of one executed statement.
type StatementResult struct {
	Step      string
	Statement string
	Table     string
	Rows      int64
	Duration  time.Duration
	// Status is "ok" or the error kind.
	Status string
}

// Report summarises a run.
type Report struct {
	Started    time.Time
	Finished   time.Time
	Statements []StatementResult
	// Counts holds the final row count of every catalog table.
	Counts map[string]int64
}

// Duration is the wall time between the first and last statement.
func (r Report) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Fields renders the report as structured log fields.
func (r Report) Fields() []zap.Field {
	fields := []zap.Field{
		zap.Duration("duration", r.Duration()),
		zap.Int("statements", len(r.Statements)),
	}
	for _, t := range schema.Catalog() {
		if n, ok := r.Counts[t.Name]; ok {
			fields = append(fields, zap.Int64("rows_"+t.Name, n))
		}
	}
	return fields
}

// collectCounts counts the rows of all seven tables and publishes them. The
// counts are informational: a failed count is logged and leaves that table
// out of Counts, and never fails a run whose statements all committed.
func (d *Driver) collectCounts(ctx context.Context) {
	counts := make(map[string]int64, len(schema.Catalog()))
	for _, t := range schema.Catalog() {
		n, err := d.session.Count(ctx, t.Name)
		if err != nil {
			d.log.Warn("row count failed", zap.String("table", t.Name), logging.Err(err))
			continue
		}
		counts[t.Name] = n
		metrics.RecordTableRows(t.Name, n)
	}
	d.report.Counts = counts
}
