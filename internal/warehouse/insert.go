package warehouse

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBatchSize is the number of rows per multi-row INSERT when the caller
// does not configure one.
const DefaultBatchSize = 500

// RowSource streams rows into Session.CopyRows. Its method set matches
// pgx.CopyFromSource so the Postgres session can hand it to CopyFrom as is.
type RowSource interface {
	Next() bool
	Values() ([]any, error)
	Err() error
}

// ExecFunc executes one statement with bind arguments and reports rows
// affected. It is usually bound to an open transaction.
type ExecFunc func(ctx context.Context, query string, args ...any) (int64, error)

// BuildInsertSQL constructs a single multi-row INSERT statement and its args.
//
// It is pure and deterministic, so placeholder numbering and quoting can be
// unit tested without a database.
//
// Constraints:
//   - rows must have the same length as columns for every row.
//   - columns must be non-empty.
func BuildInsertSQL(d Dialect, table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("insert into ")
	b.WriteString(d.Quote(table))
	b.WriteString(" (")
	b.WriteString(QuoteList(d, columns))
	b.WriteString(") values ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// RowsPerStatement caps batchSize so one statement never exceeds the
// dialect's bind parameter limit.
func RowsPerStatement(d Dialect, columns, batchSize int) int {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if columns <= 0 {
		return batchSize
	}
	if limit := d.MaxBindParams() / columns; limit > 0 && limit < batchSize {
		return limit
	}
	return batchSize
}

// InsertBatches drains src into table with multi-row INSERT statements.
//
// It does not manage transactions; callers bind exec to a transaction when
// the load must be all-or-nothing.
func InsertBatches(ctx context.Context, d Dialect, exec ExecFunc, table string, columns []string, src RowSource, batchSize int) (int64, error) {
	per := RowsPerStatement(d, len(columns), batchSize)
	batch := make([][]any, 0, per)
	var total int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		query, args := BuildInsertSQL(d, table, columns, batch)
		n, err := exec(ctx, query, args...)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return total, err
		}
		if len(vals) != len(columns) {
			return total, fmt.Errorf("insert %s: row has %d values, want %d", table, len(vals), len(columns))
		}
		batch = append(batch, vals)
		if len(batch) >= per {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := src.Err(); err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// SliceSource adapts in-memory rows to RowSource.
type SliceSource struct {
	rows [][]any
	idx  int
}

// NewSliceSource returns a RowSource over rows.
func NewSliceSource(rows [][]any) *SliceSource {
	return &SliceSource{rows: rows, idx: -1}
}

func (s *SliceSource) Next() bool {
	s.idx++
	return s.idx < len(s.rows)
}

func (s *SliceSource) Values() ([]any, error) { return s.rows[s.idx], nil }
func (s *SliceSource) Err() error             { return nil }
